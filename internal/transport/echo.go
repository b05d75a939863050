package transport

import (
	"github.com/danmuck/wsocket/internal/protocol/session"
)

// Echo is a Handler that sends every data frame back to its peer unchanged.
func Echo(c *Conn) {
	c.AddListener(&echoListener{c: c})
}

type echoListener struct {
	session.NopListener
	c *Conn
}

func (e *echoListener) OnText(text []byte, fin bool) {
	if s := e.c.Session(); s.State() == session.StateConnected {
		s.SendText(string(text), fin)
	}
}

func (e *echoListener) OnBinary(p []byte, fin bool) {
	if s := e.c.Session(); s.State() == session.StateConnected {
		s.SendBinary(p, fin)
	}
}
