// Package transport drives protocol sessions over net.Conn.
//
// Ownership boundary:
// - read loop and queued writer per connection
// - accept loop and connection registry
// - dialing with backoff retries
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/danmuck/wsocket/internal/compress"
	"github.com/danmuck/wsocket/internal/keepalive"
	"github.com/danmuck/wsocket/internal/protocol/frame"
	"github.com/danmuck/wsocket/internal/protocol/session"
)

var (
	ErrConnClosed   = errors.New("transport: connection closed")
	ErrNotConnected = errors.New("transport: handshake not complete")
	ErrCloseTimeout = errors.New("transport: close handshake timed out")
)

// Conn owns one net.Conn and the session speaking over it. Reads, sends and
// keep-alive callbacks all run under one sequencer.
type Conn struct {
	id      uint64
	nc      net.Conn
	cfg     Config
	log     zerolog.Logger
	created time.Time

	seq  keepalive.MutexSequencer
	sess *session.Session

	wmu     sync.Mutex
	wcond   *sync.Cond
	wqueue  *queue.Queue
	wclosed bool

	connected   chan struct{}
	connectOnce sync.Once
	done        chan struct{}
	closeOnce   sync.Once
	closeTimer  atomic.Pointer[time.Timer]

	errMu sync.Mutex
	cause error
	ioErr error
}

func newConn(id uint64, nc net.Conn, cfg Config, registry *compress.Registry, log zerolog.Logger) (*Conn, error) {
	cfg = cfg.withDefaults()
	c := &Conn{
		id:        id,
		nc:        nc,
		cfg:       cfg,
		log:       log.With().Uint64("conn", id).Str("remote", nc.RemoteAddr().String()).Logger(),
		created:   time.Now(),
		wqueue:    queue.New(),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.wcond = sync.NewCond(&c.wmu)
	if cfg.NoDelay {
		if err := setNoDelay(nc); err != nil {
			c.log.Warn().Err(err).Msg("transport set nodelay")
		}
	}
	sess, err := session.New(cfg.Session,
		session.WithSendHook(c.enqueue),
		session.WithRegistry(registry),
		session.WithSequencer(&c.seq),
		session.WithLogger(c.log),
		session.WithListener(connHooks{c: c}),
	)
	if err != nil {
		return nil, err
	}
	c.sess = sess
	go c.writeLoop()
	return c, nil
}

func (c *Conn) ID() uint64 { return c.id }

func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

func (c *Conn) CreatedAt() time.Time { return c.created }

func (c *Conn) State() session.State { return c.sess.State() }

func (c *Conn) Codec() compress.Type { return c.sess.Codec() }

func (c *Conn) Stats() session.Stats { return c.sess.Stats() }

// Session exposes the protocol session for listener callbacks. Callbacks
// already run under the connection's sequencer and must send through it
// rather than through the Conn methods, which would block.
func (c *Conn) Session() *session.Session { return c.sess }

// Done is closed once the socket has been torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended, nil for a clean close handshake.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return multierr.Append(c.cause, c.ioErr)
}

func (c *Conn) AddListener(l session.Listener) {
	c.seq.Run(func() { c.sess.AddListener(l) })
}

func (c *Conn) RemoveListener(l session.Listener) {
	c.seq.Run(func() { c.sess.RemoveListener(l) })
}

// Handshake sends the local System frame.
func (c *Conn) Handshake() error {
	var err error
	c.seq.Run(func() {
		switch st := c.sess.State(); {
		case st.Terminal():
			err = ErrConnClosed
		case st == session.StateInit:
			c.sess.Handshake()
		}
	})
	return err
}

// WaitConnected blocks until both handshakes completed, the connection ended or ctx expired.
func (c *Conn) WaitConnected(ctx context.Context) error {
	select {
	case <-c.connected:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) Text(text string, fin bool) error {
	return c.connectedDo(func() { c.sess.SendText(text, fin) })
}

func (c *Conn) Binary(p []byte, fin bool) error {
	return c.connectedDo(func() { c.sess.SendBinary(p, fin) })
}

func (c *Conn) Ping() error {
	var err error
	c.seq.Run(func() {
		if c.sess.State().Terminal() {
			err = ErrConnClosed
			return
		}
		c.sess.Ping()
	})
	return err
}

func (c *Conn) Close(code frame.CloseCode) error {
	return c.CloseWithReason(code, code.Message())
}

// CloseWithReason starts the close handshake. The socket is torn down when the
// peer echoes or after CloseTimeout.
func (c *Conn) CloseWithReason(code frame.CloseCode, reason string) error {
	var err error
	c.seq.Run(func() {
		switch st := c.sess.State(); {
		case st.Terminal():
			err = ErrConnClosed
		case st == session.StateClosing:
		default:
			c.sess.CloseWithReason(code, reason)
		}
	})
	if err != nil {
		return err
	}
	t := time.AfterFunc(c.cfg.CloseTimeout, func() { c.shutdown(ErrCloseTimeout) })
	if prev := c.closeTimer.Swap(t); prev != nil {
		prev.Stop()
	}
	return nil
}

func (c *Conn) connectedDo(fn func()) error {
	var err error
	c.seq.Run(func() {
		switch st := c.sess.State(); {
		case st.Terminal():
			err = ErrConnClosed
		case st != session.StateConnected:
			err = ErrNotConnected
		default:
			fn()
		}
	})
	return err
}

// Serve runs the read loop until the connection ends or ctx is cancelled.
// Cancellation starts a going-away close handshake.
func (c *Conn) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := c.Close(frame.CloseGoingAway); err != nil {
			c.shutdown(nil)
		}
	})
	defer stop()

	c.seq.Run(func() {
		if !c.sess.State().Terminal() {
			c.sess.Start()
		}
	})
	for {
		var span []byte
		c.seq.Run(func() { span = c.sess.PrepareWrite() })
		n, err := c.nc.Read(span)
		if n > 0 {
			c.seq.Run(func() { c.sess.CommitWrite(n) })
		}
		if err != nil {
			return c.readFailed(err)
		}
		select {
		case <-c.done:
			return c.Err()
		default:
		}
	}
}

func (c *Conn) readFailed(err error) error {
	var terminal bool
	c.seq.Run(func() {
		terminal = c.sess.State().Terminal()
		if !terminal {
			c.sess.Fail(err)
		}
	})
	if terminal || errors.Is(err, net.ErrClosed) {
		c.shutdown(nil)
		<-c.done
		return c.Err()
	}
	c.shutdown(err)
	<-c.done
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (c *Conn) enqueue(b []byte) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.wclosed {
		return
	}
	c.wqueue.Add(b)
	c.wcond.Signal()
}

func (c *Conn) writeLoop() {
	defer c.teardown()
	for {
		c.wmu.Lock()
		for c.wqueue.Length() == 0 && !c.wclosed {
			c.wcond.Wait()
		}
		if c.wqueue.Length() == 0 {
			c.wmu.Unlock()
			return
		}
		bufs := make(net.Buffers, 0, c.wqueue.Length())
		for c.wqueue.Length() > 0 {
			bufs = append(bufs, c.wqueue.Remove().([]byte))
		}
		c.wmu.Unlock()

		if _, err := bufs.WriteTo(c.nc); err != nil {
			c.seq.Run(func() { c.sess.Fail(err) })
			c.shutdown(err)
			return
		}
	}
}

// shutdown stops accepting writes; the writer flushes what is queued and closes the socket.
func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.cause = cause
		c.errMu.Unlock()
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.cfg.CloseTimeout))

		c.wmu.Lock()
		c.wclosed = true
		c.wcond.Broadcast()
		c.wmu.Unlock()
	})
}

func (c *Conn) teardown() {
	c.shutdown(nil)
	if t := c.closeTimer.Load(); t != nil {
		t.Stop()
	}
	c.seq.Run(func() { c.sess.Stop() })

	err := c.nc.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	c.errMu.Lock()
	c.ioErr = err
	cause := c.cause
	c.errMu.Unlock()

	c.log.Info().AnErr("cause", cause).Str("state", c.sess.State().String()).Msg("transport connection closed")
	close(c.done)
}

// connHooks is the first listener on every session: it answers pings and
// tears the socket down once the session is terminal.
type connHooks struct {
	session.NopListener
	c *Conn
}

func (h connHooks) OnConnected() {
	h.c.connectOnce.Do(func() { close(h.c.connected) })
	h.c.log.Info().Str("codec", h.c.sess.Codec().String()).Msg("transport connection ready")
}

func (h connHooks) OnPing() {
	if !h.c.sess.State().Terminal() {
		h.c.sess.Pong()
	}
}

func (h connHooks) OnClose(code frame.CloseCode, reason string) {
	h.c.log.Debug().Uint16("code", uint16(code)).Str("reason", reason).Msg("transport close received")
	h.c.shutdown(nil)
}

func (h connHooks) OnError(err error) {
	if h.c.sess.State().Terminal() {
		h.c.shutdown(err)
		return
	}
	h.c.log.Warn().Err(err).Str("code", session.CodeOf(err).String()).Msg("transport session error")
}
