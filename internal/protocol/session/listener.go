package session

import "github.com/danmuck/wsocket/internal/protocol/frame"

// Listener receives session events synchronously, in registration order.
// Text and binary views alias the receive buffer and are only valid during the call.
type Listener interface {
	OnError(err error)
	OnConnected()
	OnClose(code frame.CloseCode, reason string)
	OnPing()
	OnPong()
	OnText(text []byte, fin bool)
	OnBinary(p []byte, fin bool)
}

// NopListener ignores every event. Embed it to implement a subset of Listener.
type NopListener struct{}

func (NopListener) OnError(error)                   {}
func (NopListener) OnConnected()                    {}
func (NopListener) OnClose(frame.CloseCode, string) {}
func (NopListener) OnPing()                         {}
func (NopListener) OnPong()                         {}
func (NopListener) OnText([]byte, bool)             {}
func (NopListener) OnBinary([]byte, bool)           {}

// AddListener registers l once. Listeners must be comparable, usually pointers.
func (s *Session) AddListener(l Listener) {
	if l == nil {
		return
	}
	for _, have := range s.listeners {
		if have == l {
			return
		}
	}
	next := make([]Listener, 0, len(s.listeners)+1)
	next = append(next, s.listeners...)
	s.listeners = append(next, l)
}

func (s *Session) RemoveListener(l Listener) {
	next := make([]Listener, 0, len(s.listeners))
	for _, have := range s.listeners {
		if have != l {
			next = append(next, have)
		}
	}
	s.listeners = next
}

func (s *Session) emitError(err error) {
	s.log.Debug().Err(err).Str("code", CodeOf(err).String()).Msg("session error")
	for _, l := range s.listeners {
		l.OnError(err)
	}
}

func (s *Session) emitConnected() {
	for _, l := range s.listeners {
		l.OnConnected()
	}
}

func (s *Session) emitClose(code frame.CloseCode, reason string) {
	for _, l := range s.listeners {
		l.OnClose(code, reason)
	}
}

func (s *Session) emitPing() {
	for _, l := range s.listeners {
		l.OnPing()
	}
}

func (s *Session) emitPong() {
	for _, l := range s.listeners {
		l.OnPong()
	}
}

func (s *Session) emitText(p []byte, fin bool) {
	for _, l := range s.listeners {
		l.OnText(p, fin)
	}
}

func (s *Session) emitBinary(p []byte, fin bool) {
	for _, l := range s.listeners {
		l.OnBinary(p, fin)
	}
}
