package session

import (
	"github.com/danmuck/wsocket/internal/keepalive"
)

const (
	DefaultReceiveBufferSize    = 8 * 1024
	DefaultMinReadSize          = 512
	DefaultMaxPayloadBytes      = 16 * 1024 * 1024
	DefaultCompressionThreshold = 512
)

// CompressionConfig controls handshake negotiation and per-frame compression.
type CompressionConfig struct {
	Enabled bool
	// Codecs lists allowed codec names in preference order; empty allows every registered codec.
	Codecs []string
	// Threshold is the smallest Text/Binary payload that gets compressed.
	Threshold int
}

// Config defines per-connection protocol limits and policies.
type Config struct {
	ReceiveBufferSize   int
	MinReadSize         int
	MaxPayloadBytes     uint64
	KeepAlive           keepalive.Config
	Compression         CompressionConfig
	RejectEmptyMessages bool
}

func DefaultConfig() Config {
	return Config{
		ReceiveBufferSize: DefaultReceiveBufferSize,
		MinReadSize:       DefaultMinReadSize,
		MaxPayloadBytes:   DefaultMaxPayloadBytes,
		KeepAlive:         keepalive.DefaultConfig(),
		Compression: CompressionConfig{
			Threshold: DefaultCompressionThreshold,
		},
	}
}

// WithDefaults fills zero sizes. A zero KeepAlive.Expiry stays zero and disables keep-alive.
func (c Config) WithDefaults() Config {
	if c.ReceiveBufferSize <= 0 {
		c.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if c.MinReadSize <= 0 {
		c.MinReadSize = DefaultMinReadSize
	}
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.Compression.Threshold <= 0 {
		c.Compression.Threshold = DefaultCompressionThreshold
	}
	c.KeepAlive = c.KeepAlive.WithDefaults()
	return c
}
