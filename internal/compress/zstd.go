package compress

import (
	"github.com/klauspost/compress/zstd"
)

const zstdName = "zstd"

type zstdCodec struct {
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	cbuf []byte
	dbuf []byte
}

// ZstdFactory builds single-threaded zstd codecs.
func ZstdFactory(opts Options) Factory {
	opts = opts.withDefaults()
	return NewFactory(zstdName, Zstd, func() (Codec, error) {
		level := zstd.SpeedDefault
		if opts.Level != 0 {
			level = zstd.EncoderLevelFromZstd(opts.Level)
		}
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(level),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, compressErr(zstdName, err)
		}
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(opts.MaxDecodedSize)),
		)
		if err != nil {
			_ = enc.Close()
			return nil, decompressErr(zstdName, err)
		}
		return &zstdCodec{enc: enc, dec: dec}, nil
	})
}

func (c *zstdCodec) Name() string { return zstdName }

func (c *zstdCodec) Type() Type { return Zstd }

func (c *zstdCodec) Compress(src []byte) ([]byte, error) {
	c.cbuf = c.enc.EncodeAll(src, c.cbuf[:0])
	return c.cbuf, nil
}

func (c *zstdCodec) Decompress(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, c.dbuf[:0])
	if err != nil {
		return nil, decompressErr(zstdName, err)
	}
	c.dbuf = out
	return out, nil
}

func (c *zstdCodec) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
