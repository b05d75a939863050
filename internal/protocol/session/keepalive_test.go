package session

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/danmuck/wsocket/internal/keepalive"
	"github.com/danmuck/wsocket/internal/protocol/frame"
	"github.com/danmuck/wsocket/internal/testutil/testlog"
)

type timedSession struct {
	s    *Session
	rec  *recorder
	seq  *keepalive.MutexSequencer
	mock *clock.Mock
	out  chan []byte
}

func newTimedSession(t *testing.T, expiry time.Duration) *timedSession {
	t.Helper()
	ts := &timedSession{
		rec:  &recorder{},
		seq:  &keepalive.MutexSequencer{},
		mock: clock.NewMock(),
		out:  make(chan []byte, 64),
	}
	cfg := quietConfig()
	cfg.KeepAlive = keepalive.Config{Expiry: expiry}
	s, err := New(cfg,
		WithSendHook(func(b []byte) { ts.out <- b }),
		WithListener(ts.rec),
		WithClock(ts.mock),
		WithSequencer(ts.seq),
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	ts.s = s
	ts.seq.Run(func() {
		s.Handshake()
		s.Feed(frame.AppendFrame(nil, frame.Header{Fin: true, Opcode: frame.OpcodeSystem}, []byte(HandshakePayload)))
		s.Start()
	})
	ts.next(t)
	return ts
}

func (ts *timedSession) next(t *testing.T) frame.Frame {
	t.Helper()
	select {
	case raw := <-ts.out:
		return decodeOne(t, raw)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for outbound frame")
		return frame.Frame{}
	}
}

func (ts *timedSession) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case raw := <-ts.out:
		t.Fatalf("unexpected outbound frame %s", decodeOne(t, raw).Header.Opcode)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKeepAliveProbesThenTimesOut(t *testing.T) {
	testlog.Start(t)
	ts := newTimedSession(t, 10*time.Second)

	for i := 0; i < 2; i++ {
		ts.mock.Add(10 * time.Second)
		if f := ts.next(t); f.Header.Opcode != frame.OpcodePing {
			t.Fatalf("probe %d opcode=%s", i, f.Header.Opcode)
		}
	}

	ts.mock.Add(10 * time.Second)
	deadline := time.After(2 * time.Second)
	for closed := false; !closed; {
		select {
		case raw := <-ts.out:
			f := decodeOne(t, raw)
			if f.Header.Opcode == frame.OpcodeClose {
				if code := closeCodeOf(t, raw); code != frame.CloseProtocolError {
					t.Fatalf("close code=%d", code)
				}
				closed = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for keep-alive close")
		}
	}

	var state State
	var errs []error
	ts.seq.Run(func() {
		state = ts.s.State()
		errs = append(errs, ts.rec.errs...)
		ts.s.Feed(frame.AppendFrame(nil, frame.Header{Fin: true, Opcode: frame.OpcodeText}, []byte("late")))
	})
	if state != StateError {
		t.Fatalf("state=%s", state)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrKeepAliveTimeout) {
		t.Fatalf("expected ErrKeepAliveTimeout, got %v", errs)
	}
	ts.seq.Run(func() {
		if len(ts.rec.texts) != 0 {
			t.Errorf("data processed after timeout")
		}
	})
}

func TestInboundBytesFlushKeepAlive(t *testing.T) {
	testlog.Start(t)
	ts := newTimedSession(t, 10*time.Second)

	for i := 0; i < 4; i++ {
		ts.mock.Add(8 * time.Second)
		ts.seq.Run(func() {
			ts.s.Feed(frame.AppendFrame(nil, frame.Header{Fin: true, Opcode: frame.OpcodePong}, []byte(PongPayload)))
		})
	}
	ts.mock.Add(9 * time.Second)
	ts.expectSilence(t)

	ts.mock.Add(time.Second)
	if f := ts.next(t); f.Header.Opcode != frame.OpcodePing {
		t.Fatalf("opcode=%s", f.Header.Opcode)
	}
	ts.seq.Run(func() {
		if ts.s.State() != StateConnected || ts.rec.pongs != 4 {
			t.Errorf("state=%s pongs=%d", ts.s.State(), ts.rec.pongs)
		}
	})
}

func TestCloseStopsKeepAlive(t *testing.T) {
	testlog.Start(t)
	ts := newTimedSession(t, 10*time.Second)
	ts.seq.Run(func() {
		ts.s.Close(frame.CloseNormal)
		ts.s.Feed(frame.AppendFrame(nil, frame.Header{Fin: true, Opcode: frame.OpcodeClose}, []byte{0x03, 0xE8}))
	})
	if f := ts.next(t); f.Header.Opcode != frame.OpcodeClose {
		t.Fatalf("opcode=%s", f.Header.Opcode)
	}
	ts.mock.Add(time.Hour)
	ts.expectSilence(t)
}
