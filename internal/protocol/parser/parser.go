// Package parser extracts complete frames from a sliding receive buffer.
package parser

import (
	"errors"
	"fmt"

	"github.com/danmuck/wsocket/internal/protocol/buffer"
	"github.com/danmuck/wsocket/internal/protocol/frame"
)

const (
	DefaultCapacity = 8 * 1024
	DefaultMinRead  = 512
)

// Listener receives each complete frame. The payload view is only valid for the duration of the call.
type Listener interface {
	OnFrame(f frame.Frame)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(f frame.Frame)

func (fn ListenerFunc) OnFrame(f frame.Frame) { fn(f) }

type Parser struct {
	buf      *buffer.Sliding
	listener Listener
	limits   frame.Limits
	minRead  int
}

// New builds a parser over a buffer of the given initial capacity.
// A zero MaxPayloadBytes falls back to frame.DefaultLimits; larger values are
// clamped to frame.MaxPayloadLimit.
func New(l Listener, capacity int, limits frame.Limits) *Parser {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if limits.MaxPayloadBytes == 0 {
		limits = frame.DefaultLimits()
	}
	if limits.MaxPayloadBytes > frame.MaxPayloadLimit {
		limits.MaxPayloadBytes = frame.MaxPayloadLimit
	}
	return &Parser{
		buf:      buffer.New(capacity),
		listener: l,
		limits:   limits,
		minRead:  DefaultMinRead,
	}
}

// SetMinRead sets the smallest free span PrepareWrite hands out.
func (p *Parser) SetMinRead(n int) {
	if n > 0 {
		p.minRead = n
	}
}

func (p *Parser) Limits() frame.Limits { return p.limits }

// ParseOne extracts at most one frame. It returns false with a nil error when
// the buffered bytes do not yet hold a complete frame.
func (p *Parser) ParseOne() (bool, error) {
	live := p.buf.Bytes()
	h, n, err := frame.Decode(live)
	if errors.Is(err, frame.ErrNeedMoreData) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if h.Length > p.limits.MaxPayloadBytes {
		return false, fmt.Errorf("%w: length=%d max=%d", frame.ErrPayloadTooLarge, h.Length, p.limits.MaxPayloadBytes)
	}
	total := n + int(h.Length)
	if len(live) < total {
		return false, nil
	}
	p.listener.OnFrame(frame.Frame{Header: h, Payload: live[n:total:total]})
	p.buf.Consume(total)
	return true, nil
}

// PrepareWrite returns a writable span of at least the configured minimum read size.
// When a header is already buffered the span is large enough for the rest of that frame.
func (p *Parser) PrepareWrite() []byte {
	want := p.minRead
	if h, n, err := frame.Decode(p.buf.Bytes()); err == nil && h.Length <= p.limits.MaxPayloadBytes {
		if rest := n + int(h.Length) - p.buf.Len(); rest > want {
			want = rest
		}
	}
	if p.buf.Free() < want {
		p.buf.Resize(p.buf.Len() + want)
	}
	return p.buf.PrepareWrite()
}

func (p *Parser) CommitWrite(n int) { p.buf.CommitWrite(n) }

func (p *Parser) Feed(b []byte) { p.buf.Feed(b) }

// Buffered reports how many received bytes are waiting to be parsed.
func (p *Parser) Buffered() int { return p.buf.Len() }

func (p *Parser) Reset() { p.buf.Reset() }
