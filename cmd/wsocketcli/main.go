package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/wsocket/internal/config"
	"github.com/danmuck/wsocket/internal/observability"
	"github.com/danmuck/wsocket/internal/protocol/frame"
	"github.com/danmuck/wsocket/internal/protocol/session"
	"github.com/danmuck/wsocket/internal/transport"
)

var errEchoTimeout = errors.New("timed out waiting for echo")

// printer writes every inbound event to stdout.
type printer struct {
	session.NopListener
	echoes chan struct{}
	pongs  chan struct{}
}

func (p *printer) OnText(text []byte, fin bool) {
	fmt.Printf("< %s\n", text)
	notify(p.echoes)
}

func (p *printer) OnBinary(b []byte, fin bool) {
	fmt.Printf("< %d binary bytes\n", len(b))
	notify(p.echoes)
}

func (p *printer) OnPong() {
	fmt.Println("< pong")
	notify(p.pongs)
}

// notify never blocks: events arrive on the connection's read loop.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *printer) OnClose(code frame.CloseCode, reason string) {
	fmt.Printf("< close %d %q\n", code, reason)
}

func main() {
	configPath := flag.String("config", "", "path to a wsocket config.toml for protocol settings")
	addr := flag.String("addr", "127.0.0.1:9200", "wsocketd address")
	timeout := flag.Duration("timeout", 5*time.Second, "per-reply timeout")
	flag.Parse()

	if err := run(*configPath, *addr, *timeout, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "wsocketcli: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string, timeout time.Duration, messages []string) error {
	cfg := config.DefaultServiceConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	logger := observability.InitLogger("wsocketcli").Level(zerolog.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := transport.Dial(ctx, addr, cfg.Transport, cfg.Registry(), logger)
	if err != nil {
		return err
	}
	out := &printer{echoes: make(chan struct{}, 1), pongs: make(chan struct{}, 1)}
	conn.AddListener(out)

	if err := waitCtx(ctx, timeout, conn.WaitConnected); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	fmt.Printf("connected to %s codec=%s\n", conn.RemoteAddr(), conn.Codec())

	for _, msg := range messages {
		fmt.Printf("> %s\n", msg)
		if err := conn.Text(msg, true); err != nil {
			return err
		}
		if err := await(ctx, conn, out.echoes, timeout); err != nil {
			return err
		}
	}

	if err := conn.Ping(); err != nil {
		return err
	}
	if err := await(ctx, conn, out.pongs, timeout); err != nil {
		return err
	}

	if err := conn.Close(frame.CloseNormal); err != nil {
		return err
	}
	<-conn.Done()
	stats := conn.Stats()
	fmt.Printf("closed frames_out=%d frames_in=%d bytes_out=%d bytes_in=%d\n",
		stats.FramesOut, stats.FramesIn, stats.BytesOut, stats.BytesIn)
	return conn.Err()
}

func waitCtx(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func await(ctx context.Context, conn *transport.Conn, ch <-chan struct{}, timeout time.Duration) error {
	select {
	case <-ch:
		return nil
	case <-conn.Done():
		return closedErr(conn)
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errEchoTimeout
	}
}

func closedErr(conn *transport.Conn) error {
	if err := conn.Err(); err != nil {
		return err
	}
	return transport.ErrConnClosed
}
