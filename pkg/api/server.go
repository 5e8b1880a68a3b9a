// Package api wires the HTTP transport for vaultd: the chi router, its
// middleware stack, and the handlers implementing §6's external interface
// over the domain services (session, user, share, upload, tree, authz).
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vaultd/vaultd/internal/logger"
	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/ratelimit"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/share"
	"github.com/vaultd/vaultd/pkg/store"
	"github.com/vaultd/vaultd/pkg/upload"
	"github.com/vaultd/vaultd/pkg/user"
)

// Dependencies are the domain services the router's handlers call into.
// Limiter may be nil, disabling rate limiting (used by tests and by a
// deployment that fronts vaultd with its own limiter).
type Dependencies struct {
	Store    store.Store
	Blobs    blobstore.Store
	Sessions *session.Service
	Limiter  *ratelimit.Limiter
}

// Server is the HTTP server exposing vaultd's API (§6).
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds the router over deps and wraps it in an http.Server
// configured from config.
func NewServer(cfg Config, deps Dependencies) *Server {
	users := user.New(deps.Store, deps.Sessions, deps.Blobs)
	shares := share.New(deps.Store)
	uploads := upload.New(deps.Store, deps.Blobs)

	router := NewRouter(cfg, deps, users, shares, uploads)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{server: server, config: cfg}
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// config.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("api server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("api server failed: %w", err)
	}
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return 10 * time.Second
}

// Stop gracefully shuts the server down. Safe to call more than once and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("api server shutdown: %w", err)
			logger.Error("api server shutdown error", "error", err)
		} else {
			logger.Info("api server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured listening port.
func (s *Server) Port() int {
	return s.config.Port
}
