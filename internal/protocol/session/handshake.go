package session

import (
	"slices"
	"strings"

	"github.com/danmuck/wsocket/internal/compress"
)

const (
	HandshakePayload = "hello"
	// codecListSeparator splits the handshake greeting from the codec advertisement.
	codecListSeparator = "|"
)

// handshakePayload advertises every allowed codec before negotiation and only
// the chosen one afterwards.
func (s *Session) handshakePayload() string {
	if s.registry == nil || len(s.allowed) == 0 {
		return HandshakePayload
	}
	advertise := s.allowed
	if s.negotiated {
		advertise = nil
		if t := s.Codec(); t != compress.None {
			advertise = []compress.Type{t}
		}
	}
	list := s.registry.SupportedFor(advertise)
	if list == "" {
		return HandshakePayload
	}
	return HandshakePayload + codecListSeparator + list
}

// peerCodecs extracts the advertised codec types from a System payload.
func (s *Session) peerCodecs(p []byte) []compress.Type {
	if s.registry == nil {
		return nil
	}
	_, list, ok := strings.Cut(string(p), codecListSeparator)
	if !ok {
		return nil
	}
	return s.registry.ParseAdvertisedList(list)
}

// onSystem drives the session to Connected. A repeat while Connected
// re-confirms the state and raises the connected event again. A closing
// session is never reopened.
func (s *Session) onSystem(p []byte) {
	switch state := s.State(); {
	case state == StateInit:
		s.negotiate(s.respondCodec(s.peerCodecs(p)))
		s.Handshake()
	case state == StateConnecting:
		s.negotiate(s.adoptCodec(s.peerCodecs(p)))
	case state == StateClosing || state.Terminal():
		return
	}
	s.setState(StateConnected)
	s.emitConnected()
}

// respondCodec honors the initiator's preference order.
func (s *Session) respondCodec(peer []compress.Type) compress.Type {
	if s.registry == nil {
		return compress.None
	}
	t, _ := s.registry.Negotiate(peer, s.allowed)
	return t
}

// adoptCodec picks the lowest shared type. A responder reply carries a single
// type; when both ends initiated, each sees the other's full list and the
// lowest shared type is the same on both sides.
func (s *Session) adoptCodec(peer []compress.Type) compress.Type {
	best := compress.None
	for _, t := range peer {
		if !slices.Contains(s.allowed, t) {
			continue
		}
		if best == compress.None || t < best {
			best = t
		}
	}
	return best
}

func (s *Session) negotiate(t compress.Type) {
	s.negotiated = true
	if t == compress.None {
		return
	}
	codec, err := s.registry.Lookup(t)
	if err != nil {
		s.emitError(err)
		return
	}
	s.codec = codec
	s.codecType.Store(uint32(t))
	s.log.Debug().Str("codec", t.String()).Msg("session codec negotiated")
}
