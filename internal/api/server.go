package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Server runs an HTTP handler until its context is cancelled.
type Server struct {
	addr            string
	srv             *http.Server
	shutdownTimeout time.Duration
}

// NewServer creates a server for handler on addr.
func NewServer(addr string, handler http.Handler, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for at most the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("server_listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server_stopped")
	return nil
}
