package buffer

import (
	"bytes"
	"testing"
)

const alphabet = "abcdefghijklmnopqrst"

func TestFeedThenConsumePrefix(t *testing.T) {
	s := New(0)
	s.Feed([]byte(alphabet))
	if got := string(s.Bytes()); got != alphabet {
		t.Fatalf("unexpected live bytes %q", got)
	}
	s.Consume(3)
	if got := string(s.Bytes()); got != "defghijklmnopqrst" {
		t.Fatalf("unexpected after consume %q", got)
	}
}

func TestConsumeInteriorSpans(t *testing.T) {
	s := New(0)
	s.Feed([]byte(alphabet))
	s.ConsumeRange(4, 3)
	if got := string(s.Bytes()); got != "abcdhijklmnopqrst" {
		t.Fatalf("unexpected after first span %q", got)
	}
	s.ConsumeRange(3, 14)
	if got := string(s.Bytes()); got != "abc" {
		t.Fatalf("unexpected after second span %q", got)
	}
}

func TestConsumeEveryOffset(t *testing.T) {
	x := []byte(alphabet)
	for k := 0; k <= len(x); k++ {
		s := New(8)
		s.Feed(x)
		s.Consume(k)
		if !bytes.Equal(s.Bytes(), x[k:]) {
			t.Fatalf("k=%d got=%q want=%q", k, s.Bytes(), x[k:])
		}
	}
	for start := 0; start <= len(x); start++ {
		for n := 0; start+n <= len(x); n++ {
			s := New(len(x))
			s.Feed(x)
			s.ConsumeRange(start, n)
			want := append(append([]byte{}, x[:start]...), x[start+n:]...)
			if !bytes.Equal(s.Bytes(), want) {
				t.Fatalf("start=%d n=%d got=%q want=%q", start, n, s.Bytes(), want)
			}
		}
	}
}

func TestPrepareCommitWrite(t *testing.T) {
	s := New(16)
	span := s.PrepareWrite()
	if len(span) != 16 {
		t.Fatalf("expected 16 free bytes, got %d", len(span))
	}
	n := copy(span, "hello")
	s.CommitWrite(n)
	if s.Len() != 5 || s.Free() != 11 || string(s.Bytes()) != "hello" {
		t.Fatalf("unexpected state len=%d free=%d bytes=%q", s.Len(), s.Free(), s.Bytes())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic committing past free space")
		}
	}()
	s.CommitWrite(12)
}

func TestResizeKeepsLivePrefix(t *testing.T) {
	s := New(4)
	s.Feed([]byte("abcdef"))
	if s.Cap() < 6 {
		t.Fatalf("feed did not grow, cap=%d", s.Cap())
	}
	s.Resize(2)
	if s.Cap() != 6 || string(s.Bytes()) != "abcdef" {
		t.Fatalf("resize below used must clamp, cap=%d bytes=%q", s.Cap(), s.Bytes())
	}
	s.Resize(64)
	if s.Cap() != 64 || s.Free() != 58 || string(s.Bytes()) != "abcdef" {
		t.Fatalf("unexpected grow cap=%d free=%d bytes=%q", s.Cap(), s.Free(), s.Bytes())
	}
	s.Reset()
	if s.Len() != 0 || s.Cap() != 64 {
		t.Fatalf("reset should keep capacity, len=%d cap=%d", s.Len(), s.Cap())
	}
}
