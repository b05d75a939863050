package keepalive

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quiet = 50 * time.Millisecond

type recorder struct {
	expired  chan struct{}
	timedOut chan struct{}
	nExpired atomic.Int32
	nTimeout atomic.Int32
	onExpire func()
}

func newRecorder() *recorder {
	return &recorder{
		expired:  make(chan struct{}, 16),
		timedOut: make(chan struct{}, 16),
	}
}

func (r *recorder) OnExpired() {
	r.nExpired.Add(1)
	if r.onExpire != nil {
		r.onExpire()
	}
	r.expired <- struct{}{}
}

func (r *recorder) OnTimedOut() {
	r.nTimeout.Add(1)
	r.timedOut <- struct{}{}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func expectNone(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(quiet):
	}
}

func newPolicy(t *testing.T, cfg Config) (*Policy, *clock.Mock, *recorder) {
	t.Helper()
	mock := clock.NewMock()
	rec := newRecorder()
	return New(cfg, rec, WithClock(mock)), mock, rec
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120*time.Second, cfg.Expiry)
	assert.Equal(t, 360*time.Second, cfg.Timeout)

	cfg = Config{Expiry: 10 * time.Second}.WithDefaults()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.False(t, Config{}.Enabled())
}

func TestExpiryFiresOnceWithoutReset(t *testing.T) {
	p, mock, rec := newPolicy(t, Config{Expiry: 10 * time.Second, Timeout: 30 * time.Second})
	p.Start()
	require.True(t, p.Running())

	mock.Add(9 * time.Second)
	expectNone(t, rec.expired, "early expiry")

	mock.Add(time.Second)
	waitFor(t, rec.expired, "expiry")

	mock.Add(15 * time.Second)
	expectNone(t, rec.expired, "second expiry")
	assert.Equal(t, int32(1), rec.nExpired.Load())
	assert.Equal(t, int32(0), rec.nTimeout.Load())
}

func TestTimeoutFiresAfterUnansweredProbes(t *testing.T) {
	p, mock, rec := newPolicy(t, Config{Expiry: 10 * time.Second})
	rec.onExpire = p.Rearm
	p.Start()

	for i := 1; i <= 2; i++ {
		mock.Add(10 * time.Second)
		waitFor(t, rec.expired, "probe expiry")
	}
	expectNone(t, rec.timedOut, "early timeout")

	mock.Add(10 * time.Second)
	waitFor(t, rec.timedOut, "timeout")
	assert.False(t, p.Running())

	mock.Add(time.Minute)
	expectNone(t, rec.timedOut, "second timeout")
	assert.Equal(t, int32(1), rec.nTimeout.Load())
}

func TestFlushRestartsBothDeadlines(t *testing.T) {
	p, mock, rec := newPolicy(t, Config{Expiry: 10 * time.Second, Timeout: 30 * time.Second})
	p.Start()

	for i := 0; i < 5; i++ {
		mock.Add(8 * time.Second)
		p.Flush()
	}
	expectNone(t, rec.expired, "expiry after flush")
	expectNone(t, rec.timedOut, "timeout after flush")

	mock.Add(10 * time.Second)
	waitFor(t, rec.expired, "expiry")
}

func TestStopSuppressesPendingCallbacks(t *testing.T) {
	p, mock, rec := newPolicy(t, Config{Expiry: time.Second, Timeout: 2 * time.Second})
	p.Start()
	p.Stop()
	require.False(t, p.Running())

	mock.Add(time.Hour)
	expectNone(t, rec.expired, "expiry after stop")
	expectNone(t, rec.timedOut, "timeout after stop")
}

func TestStopDropsCallbackQueuedBehindSequencer(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder()
	seq := &MutexSequencer{}
	p := New(Config{Expiry: time.Second}, rec, WithClock(mock), WithSequencer(seq))
	p.Start()

	seq.mu.Lock()
	mock.Add(time.Second)
	p.Stop()
	seq.mu.Unlock()

	expectNone(t, rec.expired, "expiry queued before stop")
	assert.Equal(t, int32(0), rec.nExpired.Load())
}

func TestSetExpiryResetsTimeoutAndFlushes(t *testing.T) {
	p, mock, rec := newPolicy(t, Config{Expiry: 10 * time.Second, Timeout: 100 * time.Second})
	p.Start()
	mock.Add(5 * time.Second)

	p.SetExpiry(2 * time.Second)
	assert.Equal(t, Config{Expiry: 2 * time.Second, Timeout: 6 * time.Second}, p.Config())

	mock.Add(2 * time.Second)
	waitFor(t, rec.expired, "expiry with new duration")
	mock.Add(4 * time.Second)
	waitFor(t, rec.timedOut, "timeout with new duration")
}

func TestDisabledPolicyNeverArms(t *testing.T) {
	p, mock, rec := newPolicy(t, Config{})
	p.Start()
	assert.False(t, p.Running())
	mock.Add(time.Hour)
	expectNone(t, rec.expired, "expiry while disabled")
}
