package transport

import (
	"time"

	"github.com/danmuck/wsocket/internal/protocol/session"
)

// Config defines connection driver defaults on top of the protocol session config.
type Config struct {
	Session      session.Config
	CloseTimeout time.Duration
	DialTimeout  time.Duration
	DialAttempts int
	NoDelay      bool
	Backoff      BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Session:      session.DefaultConfig(),
		CloseTimeout: 5 * time.Second,
		DialTimeout:  5 * time.Second,
		DialAttempts: 5,
		NoDelay:      true,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = def.CloseTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.DialAttempts <= 0 {
		c.DialAttempts = 1
	}
	c.Session = c.Session.WithDefaults()
	return c
}
