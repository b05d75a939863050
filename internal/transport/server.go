package transport

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/danmuck/wsocket/internal/compress"
	"github.com/danmuck/wsocket/internal/protocol/frame"
)

// Handler is called for every accepted connection before its read loop starts.
type Handler func(c *Conn)

type Server struct {
	cfg      Config
	registry *compress.Registry
	handler  Handler
	log      zerolog.Logger

	nextID atomic.Uint64
	ready  atomic.Bool
	wg     sync.WaitGroup

	mu    sync.RWMutex
	conns map[uint64]*Conn
	ln    net.Listener
}

func NewServer(cfg Config, registry *compress.Registry, handler Handler, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg.withDefaults(),
		registry: registry,
		handler:  handler,
		log:      log,
		conns:    make(map[uint64]*Conn),
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts until ctx is cancelled, then closes every connection with
// CloseGoingAway and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.ready.Store(true)
	defer s.ready.Store(false)
	s.log.Info().Str("addr", ln.Addr().String()).Msg("transport listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return s.drain()
			}
			return multierr.Append(err, s.drain())
		}
		s.wg.Add(1)
		go s.handleConn(ctx, nc)
	}
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()
	c, err := newConn(s.nextID.Add(1), nc, s.cfg, s.registry, s.log)
	if err != nil {
		s.log.Error().Err(err).Str("remote", nc.RemoteAddr().String()).Msg("transport session setup")
		_ = nc.Close()
		return
	}

	s.mu.Lock()
	s.conns[c.ID()] = c
	active := len(s.conns)
	s.mu.Unlock()
	c.log.Info().Int("active", active).Msg("transport client connected")
	defer func() {
		s.mu.Lock()
		delete(s.conns, c.ID())
		remaining := len(s.conns)
		s.mu.Unlock()
		c.log.Info().Int("active", remaining).Msg("transport client disconnected")
	}()

	if s.handler != nil {
		s.handler(c)
	}
	if err := c.Serve(ctx); err != nil {
		c.log.Warn().Err(err).Msg("transport read")
	}
}

// drain closes the remaining connections and waits for their handlers.
func (s *Server) drain() error {
	var err error
	for _, c := range s.Conns() {
		if closeErr := c.Close(frame.CloseGoingAway); closeErr != nil && !errors.Is(closeErr, ErrConnClosed) {
			err = multierr.Append(err, closeErr)
		}
	}
	s.wg.Wait()
	return err
}

// Conns returns the live connections ordered by id.
func (s *Server) Conns() []*Conn {
	s.mu.RLock()
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Ready reports whether the accept loop is running.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Close stops the accept loop. Serve then closes the open connections and returns.
func (s *Server) Close() error {
	s.mu.RLock()
	ln := s.ln
	s.mu.RUnlock()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
