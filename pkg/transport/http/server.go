package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// Server runs the gateway's composed handler (adapter, auth, metrics,
// extra routes) with graceful shutdown. It owns only the HTTP
// lifecycle; handler composition stays with the caller.
type Server struct {
	httpServer *http.Server
	cfg        ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds listener and shutdown settings.
type ServerConfig struct {
	Addr        string
	ReadTimeout time.Duration

	// WriteTimeout of zero means no deadline. SSE responses stay open
	// for the lifetime of the upstream stream, so production configs
	// leave this at zero.
	WriteTimeout time.Duration

	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// NewServer wraps handler in a lifecycle-managed HTTP server.
func NewServer(handler http.Handler, cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// ListenAndServe serves until SIGINT or SIGTERM, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.run(ctx, nil)
}

// Serve serves on ln until ctx is cancelled, then shuts down
// gracefully. The listener form exists for tests that need an
// ephemeral port.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return s.run(ctx, ln)
}

func (s *Server) run(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		var err error
		if ln != nil {
			err = s.httpServer.Serve(ln)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", "timeout", s.cfg.ShutdownTimeout)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown releases the server outside of signal-driven operation.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
