// Package controlplane is hapd's read-only administrative HTTP API: a
// separate listener (default loopback-bound, default off) that exposes
// session inventory and a force-close operation, distinct from and
// unauthenticated against the HAP accessory port itself.
package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hapcore/hapd/internal/logger"
)

// Server is the control-plane HTTP server.
type Server struct {
	server       *http.Server
	addr         string
	shutdownOnce sync.Once
}

// NewServer builds a control-plane server bound to addr. It is created in a
// stopped state; call Start to begin serving.
func NewServer(addr string, registry SessionRegistry, accessories AccessoryTreeProvider) *Server {
	router := NewRouter(registry, accessories)

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// Start serves the control-plane API until ctx is cancelled, at which point
// it shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("controlplane server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("controlplane server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("controlplane server shutdown: %w", err)
			logger.Error("controlplane server shutdown error", "error", err)
			return
		}
		logger.Info("controlplane server stopped")
	})
	return shutdownErr
}
