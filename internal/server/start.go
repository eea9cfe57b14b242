package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Start serves HTTP on addr until ctx is cancelled or the listener fails.
// On cancellation the server stops accepting connections; call Shutdown to
// close the live ones.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start with a caller-supplied listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.E.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- s.E.Start("")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Shutdown closes every WebSocket connection with a going-away status, then
// stops the HTTP server. Hijacked connections are not tracked by the HTTP
// server, so they are closed first.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.ws.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close websocket clients: %w", err))
	}
	if err := s.E.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	return errors.Join(errs...)
}
