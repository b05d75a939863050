package transport

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig defines dial retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

const maxDelay = time.Duration(math.MaxInt64)

// backoff tracks the retry delay across one Dial call.
type backoff struct {
	cfg  BackoffConfig
	rng  *rand.Rand
	base time.Duration
}

func newBackoff(cfg BackoffConfig, rng *rand.Rand) *backoff {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &backoff{cfg: cfg, rng: rng, base: max(cfg.InitialDelay, 0)}
}

// Next returns the wait before the following attempt and grows the base delay
// by Multiplier, capped at MaxDelay. Jitter scales the result by [0.5, 1.5).
func (b *backoff) Next() time.Duration {
	delay := b.capped(b.base)
	b.base = b.capped(scale(b.base, b.cfg.Multiplier))
	if !b.cfg.Jitter || delay == 0 {
		return delay
	}
	f := 0.5
	if b.rng != nil {
		f += b.rng.Float64()
	}
	return scale(delay, f)
}

func scale(d time.Duration, f float64) time.Duration {
	if v := float64(d) * f; v < float64(maxDelay) {
		return time.Duration(v)
	}
	return maxDelay
}

func (b *backoff) capped(d time.Duration) time.Duration {
	if b.cfg.MaxDelay > 0 && d > b.cfg.MaxDelay {
		return b.cfg.MaxDelay
	}
	return d
}
