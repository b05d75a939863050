package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/wsocket/internal/compress"
)

// Dial connects with backoff retries, starts the read loop and sends the
// local handshake. Use WaitConnected to wait for the peer's reply.
func Dial(ctx context.Context, addr string, cfg Config, registry *compress.Registry, log zerolog.Logger) (*Conn, error) {
	cfg = cfg.withDefaults()
	addr = strings.TrimSpace(addr)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	retry := newBackoff(cfg.Backoff, rng)

	var nc net.Conn
	var err error
	for attempt := 1; attempt <= cfg.DialAttempts; attempt++ {
		nc, err = dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
		if attempt == cfg.DialAttempts || ctx.Err() != nil {
			break
		}
		delay := retry.Next()
		log.Warn().Err(err).Str("addr", addr).Int("attempt", attempt).Dur("retry_in", delay).Msg("transport dial")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	c, err := newConn(0, nc, cfg, registry, log)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	if err := c.start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// start runs the read loop and sends the local handshake. A failed handshake
// tears the connection down before returning.
func (c *Conn) start(ctx context.Context) error {
	go func() {
		if err := c.Serve(ctx); err != nil {
			c.log.Warn().Err(err).Msg("transport read")
		}
	}()
	if err := c.Handshake(); err != nil {
		c.shutdown(err)
		<-c.Done()
		return err
	}
	return nil
}
