// Package keepalive owns the liveness policy for one connection.
//
// Two deadlines run from every Start or Flush: expiry asks the owner to probe
// the peer, timeout declares the peer dead. Flush restarts both and is called
// on inbound activity. Rearm restarts only the expiry deadline after a probe,
// so timeout still fires when probes go unanswered.
package keepalive

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultExpiry = 120 * time.Second
	// TimeoutFactor multiplies Expiry when Timeout is not set.
	TimeoutFactor = 3
)

type Config struct {
	Expiry  time.Duration
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Expiry:  DefaultExpiry,
		Timeout: TimeoutFactor * DefaultExpiry,
	}
}

// WithDefaults fills Timeout from Expiry when unset.
func (c Config) WithDefaults() Config {
	if c.Expiry > 0 && c.Timeout <= 0 {
		c.Timeout = TimeoutFactor * c.Expiry
	}
	return c
}

// Enabled reports whether the policy arms any timers.
func (c Config) Enabled() bool {
	return c.Expiry > 0
}

type Listener interface {
	OnExpired()
	OnTimedOut()
}

// Sequencer runs timer callbacks in the owner's serialized context.
type Sequencer interface {
	Run(fn func())
}

// MutexSequencer serializes callbacks behind one mutex.
type MutexSequencer struct {
	mu sync.Mutex
}

func (s *MutexSequencer) Run(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

type Option func(*Policy)

func WithClock(c clock.Clock) Option {
	return func(p *Policy) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithSequencer(s Sequencer) Option {
	return func(p *Policy) {
		if s != nil {
			p.seq = s
		}
	}
}

type event int

const (
	eventExpired event = iota
	eventTimedOut
)

type Policy struct {
	listener Listener
	clock    clock.Clock
	seq      Sequencer

	mu      sync.Mutex
	cfg     Config
	running bool
	gen     uint64
	probe   uint64
	expiry  *clock.Timer
	timeout *clock.Timer
}

func New(cfg Config, l Listener, opts ...Option) *Policy {
	p := &Policy{
		listener: l,
		clock:    clock.New(),
		seq:      &MutexSequencer{},
		cfg:      cfg.WithDefaults(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

func (p *Policy) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start arms both deadlines. It is a no-op when the policy is disabled.
func (p *Policy) Start() {
	p.Flush()
}

// Flush cancels and restarts both deadlines.
func (p *Policy) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cfg.Enabled() {
		return
	}
	p.stopTimersLocked()
	p.running = true
	p.gen++
	gen := p.gen
	p.armExpiryLocked()
	p.timeout = p.clock.AfterFunc(p.cfg.Timeout, func() {
		p.fire(eventTimedOut, gen, 0)
	})
}

// Rearm restarts the expiry deadline only.
func (p *Policy) Rearm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.armExpiryLocked()
}

// Stop cancels both deadlines. Callbacks already in flight are dropped.
func (p *Policy) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimersLocked()
	p.running = false
	p.gen++
}

// SetExpiry replaces the expiry, resets the timeout to TimeoutFactor times it,
// and flushes when running.
func (p *Policy) SetExpiry(d time.Duration) {
	p.mu.Lock()
	p.cfg = Config{Expiry: d, Timeout: TimeoutFactor * d}
	running := p.running
	p.mu.Unlock()
	if !running {
		return
	}
	if d <= 0 {
		p.Stop()
		return
	}
	p.Flush()
}

func (p *Policy) armExpiryLocked() {
	if p.expiry != nil {
		p.expiry.Stop()
	}
	p.probe++
	gen, probe := p.gen, p.probe
	p.expiry = p.clock.AfterFunc(p.cfg.Expiry, func() {
		p.fire(eventExpired, gen, probe)
	})
}

func (p *Policy) stopTimersLocked() {
	if p.expiry != nil {
		p.expiry.Stop()
		p.expiry = nil
	}
	if p.timeout != nil {
		p.timeout.Stop()
		p.timeout = nil
	}
}

func (p *Policy) fire(ev event, gen, probe uint64) {
	p.seq.Run(func() {
		p.mu.Lock()
		live := p.running && gen == p.gen
		if ev == eventExpired {
			live = live && probe == p.probe
		}
		if live && ev == eventTimedOut {
			p.stopTimersLocked()
			p.running = false
			p.gen++
		}
		p.mu.Unlock()
		if !live || p.listener == nil {
			return
		}
		switch ev {
		case eventExpired:
			p.listener.OnExpired()
		case eventTimedOut:
			p.listener.OnTimedOut()
		}
	})
}
