package observability

import (
	"strconv"
	"time"

	"github.com/danmuck/wsocket/internal/protocol/frame"
	"github.com/danmuck/wsocket/internal/protocol/session"
	"github.com/danmuck/wsocket/internal/transport"
)

// SessionMetrics is a session.Listener that counts events for one node.
type SessionMetrics struct {
	node string
}

func NewSessionMetrics(node string) *SessionMetrics {
	RegisterMetrics()
	return &SessionMetrics{node: node}
}

func (m *SessionMetrics) OnError(err error) {
	sessionErrors.WithLabelValues(m.node, session.CodeOf(err).String()).Inc()
}

func (m *SessionMetrics) OnConnected() {
	sessionEvents.WithLabelValues(m.node, "connected").Inc()
}

func (m *SessionMetrics) OnClose(code frame.CloseCode, reason string) {
	sessionEvents.WithLabelValues(m.node, "close").Inc()
	sessionCloses.WithLabelValues(m.node, closeLabel(code)).Inc()
}

// closeLabel folds peer-chosen codes into one series.
func closeLabel(code frame.CloseCode) string {
	if !code.Known() {
		return "other"
	}
	return strconv.Itoa(int(code))
}

func (m *SessionMetrics) OnPing() {
	sessionEvents.WithLabelValues(m.node, "ping").Inc()
}

func (m *SessionMetrics) OnPong() {
	sessionEvents.WithLabelValues(m.node, "pong").Inc()
}

func (m *SessionMetrics) OnText(text []byte, fin bool) {
	sessionEvents.WithLabelValues(m.node, "text").Inc()
	messageBytes.WithLabelValues(m.node, "text").Observe(float64(len(text)))
}

func (m *SessionMetrics) OnBinary(p []byte, fin bool) {
	sessionEvents.WithLabelValues(m.node, "binary").Inc()
	messageBytes.WithLabelValues(m.node, "binary").Observe(float64(len(p)))
}

// Instrument wraps a transport handler so every connection reports session
// events while open and its traffic totals once closed.
func Instrument(node string, next transport.Handler) transport.Handler {
	RegisterMetrics()
	return func(c *transport.Conn) {
		connsTotal.WithLabelValues(node).Inc()
		connsActive.WithLabelValues(node).Inc()
		c.AddListener(NewSessionMetrics(node))
		go func() {
			<-c.Done()
			RecordConnClosed(node, c.Stats(), time.Since(c.CreatedAt()))
		}()
		if next != nil {
			next(c)
		}
	}
}

// RecordConnClosed folds a finished connection into the transport counters.
func RecordConnClosed(node string, stats session.Stats, lifetime time.Duration) {
	RegisterMetrics()
	connsActive.WithLabelValues(node).Dec()
	connFrames.WithLabelValues(node, "in").Add(float64(stats.FramesIn))
	connFrames.WithLabelValues(node, "out").Add(float64(stats.FramesOut))
	connBytes.WithLabelValues(node, "in").Add(float64(stats.BytesIn))
	connBytes.WithLabelValues(node, "out").Add(float64(stats.BytesOut))
	connDuration.WithLabelValues(node).Observe(lifetime.Seconds())
}
