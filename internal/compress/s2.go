package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

const s2Name = "s2"

type s2Codec struct {
	level int
	max   int
	cbuf  []byte
	dbuf  []byte
}

// S2Factory builds s2 block codecs. Level 1 is fast, 2..5 better, above 5 best.
func S2Factory(opts Options) Factory {
	opts = opts.withDefaults()
	return NewFactory(s2Name, S2, func() (Codec, error) {
		return &s2Codec{level: opts.Level, max: opts.MaxDecodedSize}, nil
	})
}

func (c *s2Codec) Name() string { return s2Name }

func (c *s2Codec) Type() Type { return S2 }

func (c *s2Codec) Compress(src []byte) ([]byte, error) {
	n := s2.MaxEncodedLen(len(src))
	if n < 0 {
		return nil, compressErr(s2Name, fmt.Errorf("source length %d too large", len(src)))
	}
	if cap(c.cbuf) < n {
		c.cbuf = make([]byte, n)
	}
	dst := c.cbuf[:cap(c.cbuf)]
	switch {
	case c.level > 5:
		c.cbuf = s2.EncodeBest(dst, src)
	case c.level > 1:
		c.cbuf = s2.EncodeBetter(dst, src)
	default:
		c.cbuf = s2.Encode(dst, src)
	}
	return c.cbuf, nil
}

func (c *s2Codec) Decompress(src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, decompressErr(s2Name, err)
	}
	if n > c.max {
		return nil, decompressErr(s2Name, fmt.Errorf("decoded length %d exceeds %d", n, c.max))
	}
	if cap(c.dbuf) < n {
		c.dbuf = make([]byte, n)
	}
	out, err := s2.Decode(c.dbuf[:n], src)
	if err != nil {
		return nil, decompressErr(s2Name, err)
	}
	return out, nil
}
