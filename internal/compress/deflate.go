package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

const deflateName = "deflate"

type deflateCodec struct {
	max  int
	w    *flate.Writer
	r    io.ReadCloser
	src  bytes.Reader
	cbuf bytes.Buffer
	dbuf bytes.Buffer
}

// DeflateFactory builds raw deflate codecs without context takeover.
func DeflateFactory(opts Options) Factory {
	opts = opts.withDefaults()
	return NewFactory(deflateName, Deflate, func() (Codec, error) {
		level := flate.DefaultCompression
		if opts.Level != 0 {
			level = opts.Level
		}
		c := &deflateCodec{max: opts.MaxDecodedSize}
		w, err := flate.NewWriter(&c.cbuf, level)
		if err != nil {
			return nil, compressErr(deflateName, err)
		}
		c.w = w
		c.r = flate.NewReader(&c.src)
		return c, nil
	})
}

func (c *deflateCodec) Name() string { return deflateName }

func (c *deflateCodec) Type() Type { return Deflate }

func (c *deflateCodec) Compress(src []byte) ([]byte, error) {
	c.cbuf.Reset()
	c.w.Reset(&c.cbuf)
	if _, err := c.w.Write(src); err != nil {
		return nil, compressErr(deflateName, err)
	}
	if err := c.w.Close(); err != nil {
		return nil, compressErr(deflateName, err)
	}
	return c.cbuf.Bytes(), nil
}

func (c *deflateCodec) Decompress(src []byte) ([]byte, error) {
	c.src.Reset(src)
	if err := c.r.(flate.Resetter).Reset(&c.src, nil); err != nil {
		return nil, decompressErr(deflateName, err)
	}
	c.dbuf.Reset()
	n, err := c.dbuf.ReadFrom(io.LimitReader(c.r, int64(c.max)+1))
	if err != nil {
		return nil, decompressErr(deflateName, err)
	}
	if n > int64(c.max) {
		return nil, decompressErr(deflateName, fmt.Errorf("decoded length exceeds %d", c.max))
	}
	return c.dbuf.Bytes(), nil
}

func (c *deflateCodec) Close() error {
	return c.r.Close()
}
