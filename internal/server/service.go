package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/danmuck/wsocket/internal/auth"
	"github.com/danmuck/wsocket/internal/config"
	"github.com/danmuck/wsocket/internal/observability"
	"github.com/danmuck/wsocket/internal/transport"
)

const adminShutdownTimeout = 5 * time.Second

// Service runs the echo listener and, when configured, the admin HTTP surface.
type Service struct {
	cfg       config.ServiceConfig
	log       zerolog.Logger
	transport *transport.Server
	admin     *Admin
}

func NewService(cfg config.ServiceConfig, logger zerolog.Logger) *Service {
	handler := observability.Instrument(cfg.Node, transport.Echo)
	srv := transport.NewServer(cfg.Transport, cfg.Registry(), handler, logger)
	var guard auth.Validator
	if cfg.AdminToken != "" {
		guard = auth.StaticToken{Token: cfg.AdminToken}
	}
	return &Service{
		cfg:       cfg,
		log:       logger,
		transport: srv,
		admin:     NewAdmin(cfg.Node, srv, guard, logger),
	}
}

func (s *Service) Transport() *transport.Server { return s.transport }

func (s *Service) Admin() *Admin { return s.admin }

// Run blocks until SIGINT or SIGTERM, then drains connections.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	var adminLn net.Listener
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		adminLn, err = net.Listen("tcp", addr)
		if err != nil {
			_ = ln.Close()
			return err
		}
	}
	return s.Serve(ctx, ln, adminLn)
}

// Serve runs on existing listeners until ctx is cancelled. adminLn may be nil.
func (s *Service) Serve(ctx context.Context, ln, adminLn net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.transport.Serve(ctx, ln)
	}()

	if adminLn == nil {
		return <-serveErr
	}
	httpSrv := &http.Server{
		Handler:           s.admin.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	adminErr := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", adminLn.Addr().String()).Msg("admin listening")
		err := httpSrv.Serve(adminLn)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		adminErr <- err
	}()

	select {
	case err := <-serveErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		defer cancel()
		return multierr.Combine(err, httpSrv.Shutdown(shutdownCtx), <-adminErr)
	case err := <-adminErr:
		if err != nil {
			_ = s.transport.Close()
			return multierr.Append(err, <-serveErr)
		}
		return <-serveErr
	}
}
