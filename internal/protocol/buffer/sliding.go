// Package buffer owns the receive-side byte buffer used by the frame parser.
package buffer

import "fmt"

// Sliding is a growable buffer whose live bytes always sit at [0, Len()).
// New bytes are appended at the tail; consumed bytes are removed by shifting what remains.
type Sliding struct {
	buf  []byte
	used int
}

func New(capacity int) *Sliding {
	s := &Sliding{}
	s.Resize(capacity)
	return s
}

// Resize reallocates to n bytes, never below Len(), keeping the live prefix.
func (s *Sliding) Resize(n int) {
	if n < s.used {
		n = s.used
	}
	if n == len(s.buf) {
		return
	}
	next := make([]byte, n)
	copy(next, s.buf[:s.used])
	s.buf = next
}

// Bytes returns a view of the live region. It is invalidated by any mutating call.
func (s *Sliding) Bytes() []byte { return s.buf[:s.used] }

func (s *Sliding) Len() int { return s.used }

func (s *Sliding) Cap() int { return len(s.buf) }

func (s *Sliding) Free() int { return len(s.buf) - s.used }

// PrepareWrite returns the free span after the live region for the caller to fill.
func (s *Sliding) PrepareWrite() []byte { return s.buf[s.used:] }

// CommitWrite marks n bytes written into the PrepareWrite span as live.
func (s *Sliding) CommitWrite(n int) {
	if n < 0 || n > s.Free() {
		panic(fmt.Sprintf("buffer: commit %d exceeds free %d", n, s.Free()))
	}
	s.used += n
}

// Feed grows the buffer when needed and appends p.
func (s *Sliding) Feed(p []byte) {
	if len(p) > s.Free() {
		s.Resize(s.used + len(p))
	}
	s.used += copy(s.buf[s.used:], p)
}

// Consume drops the first n live bytes.
func (s *Sliding) Consume(n int) {
	s.ConsumeRange(0, n)
}

// ConsumeRange drops the live span [start, start+n) and shifts the tail left.
func (s *Sliding) ConsumeRange(start, n int) {
	if start < 0 || n < 0 || start+n > s.used {
		panic(fmt.Sprintf("buffer: consume [%d,%d) outside live %d", start, start+n, s.used))
	}
	if n == 0 {
		return
	}
	copy(s.buf[start:], s.buf[start+n:s.used])
	s.used -= n
}

// Reset drops every live byte without releasing capacity.
func (s *Sliding) Reset() {
	s.used = 0
}
