package parser

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/wsocket/internal/protocol/frame"
)

type collector struct {
	frames []frame.Frame
}

func (c *collector) OnFrame(f frame.Frame) {
	c.frames = append(c.frames, frame.Frame{
		Header:  f.Header,
		Payload: append([]byte(nil), f.Payload...),
	})
}

func encode(t *testing.T, op frame.Opcode, fin bool, payload []byte) []byte {
	t.Helper()
	return frame.AppendFrame(nil, frame.Header{Fin: fin, Opcode: op}, payload)
}

func drain(t *testing.T, p *Parser) int {
	t.Helper()
	count := 0
	for {
		ok, err := p.ParseOne()
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if !ok {
			return count
		}
		count++
	}
}

func TestParseOneByteAtATime(t *testing.T) {
	c := &collector{}
	p := New(c, 4, frame.DefaultLimits())
	payload := bytes.Repeat([]byte("x"), 300)
	raw := encode(t, frame.OpcodeBinary, true, payload)

	for i := range raw {
		p.Feed(raw[i : i+1])
		n := drain(t, p)
		if i < len(raw)-1 && n != 0 {
			t.Fatalf("frame emitted early at byte %d", i)
		}
	}
	if len(c.frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(c.frames))
	}
	if !bytes.Equal(c.frames[0].Payload, payload) || !c.frames[0].Header.Fin {
		t.Fatalf("unexpected frame %+v", c.frames[0].Header)
	}
	if p.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", p.Buffered())
	}
}

func TestParseDrainsAllCompleteFramesAndKeepsTail(t *testing.T) {
	c := &collector{}
	p := New(c, 0, frame.Limits{})
	var raw []byte
	raw = append(raw, encode(t, frame.OpcodeSystem, true, []byte("hello"))...)
	raw = append(raw, encode(t, frame.OpcodeText, false, []byte("abc"))...)
	raw = append(raw, encode(t, frame.OpcodeText, true, []byte("def"))...)
	tail := encode(t, frame.OpcodePing, true, []byte("ping"))
	raw = append(raw, tail[:3]...)

	p.Feed(raw)
	if n := drain(t, p); n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}
	if p.Buffered() != 3 {
		t.Fatalf("expected partial tail buffered, got %d", p.Buffered())
	}
	p.Feed(tail[3:])
	if n := drain(t, p); n != 1 {
		t.Fatalf("expected tail frame, got %d", n)
	}
	want := []frame.Opcode{frame.OpcodeSystem, frame.OpcodeText, frame.OpcodeText, frame.OpcodePing}
	for i, op := range want {
		if c.frames[i].Header.Opcode != op {
			t.Fatalf("frame %d opcode=%s want=%s", i, c.frames[i].Header.Opcode, op)
		}
	}
	if c.frames[1].Header.Fin || !c.frames[2].Header.Fin {
		t.Fatalf("fragment fin flags not preserved")
	}
}

func TestParseRejectsOversizedBeforeBuffering(t *testing.T) {
	c := &collector{}
	p := New(c, 16, frame.Limits{MaxPayloadBytes: 1024})
	p.Feed(frame.Header{Fin: true, Opcode: frame.OpcodeBinary, Length: 1 << 40}.Encode())

	_, err := p.ParseOne()
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if got := len(p.PrepareWrite()); got >= 1<<20 {
		t.Fatalf("buffer grew for rejected frame: free=%d", got)
	}
	if len(c.frames) != 0 {
		t.Fatalf("listener called for rejected frame")
	}
}

func TestUnboundedLimitIsClampedToAddressableSize(t *testing.T) {
	c := &collector{}
	p := New(c, 16, frame.Limits{MaxPayloadBytes: ^uint64(0)})
	if got := p.Limits().MaxPayloadBytes; got != frame.MaxPayloadLimit {
		t.Fatalf("limit=%d want=%d", got, uint64(frame.MaxPayloadLimit))
	}

	p.Feed(frame.Header{Fin: true, Opcode: frame.OpcodeBinary, Length: 1 << 63}.Encode())
	_, err := p.ParseOne()
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if got := len(p.PrepareWrite()); got >= 1<<20 {
		t.Fatalf("buffer grew for rejected frame: free=%d", got)
	}
	if len(c.frames) != 0 {
		t.Fatalf("listener called for rejected frame")
	}
}

func TestParseReportsMalformedHeader(t *testing.T) {
	p := New(&collector{}, 16, frame.DefaultLimits())
	p.Feed([]byte{0x81, 126, 0x00, 0x01})
	if _, err := p.ParseOne(); !errors.Is(err, frame.ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestPrepareWriteGrowsToPendingFrame(t *testing.T) {
	c := &collector{}
	p := New(c, 8, frame.DefaultLimits())
	p.SetMinRead(4)
	payload := bytes.Repeat([]byte("z"), 20000)
	raw := encode(t, frame.OpcodeBinary, true, payload)

	for len(raw) > 0 {
		span := p.PrepareWrite()
		if len(span) < 4 {
			t.Fatalf("span smaller than min read: %d", len(span))
		}
		n := copy(span, raw)
		p.CommitWrite(n)
		raw = raw[n:]
		drain(t, p)
	}
	if len(c.frames) != 1 || !bytes.Equal(c.frames[0].Payload, payload) {
		t.Fatalf("expected reassembled frame, got %d frames", len(c.frames))
	}
}

func TestListenerFuncAdapter(t *testing.T) {
	var got frame.Opcode
	p := New(ListenerFunc(func(f frame.Frame) { got = f.Header.Opcode }), 0, frame.DefaultLimits())
	p.Feed(encode(t, frame.OpcodePong, true, []byte("pong")))
	if ok, err := p.ParseOne(); !ok || err != nil {
		t.Fatalf("parse ok=%v err=%v", ok, err)
	}
	if got != frame.OpcodePong {
		t.Fatalf("unexpected opcode %s", got)
	}
	p.Feed([]byte{0x89})
	p.Reset()
	if p.Buffered() != 0 {
		t.Fatalf("reset left %d bytes", p.Buffered())
	}
}
