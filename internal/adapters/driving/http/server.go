package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/custodia-labs/accountlink/internal/core/ports/driving"
	"github.com/custodia-labs/accountlink/internal/metrics"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger
	validator  *Validator

	// Services
	linkService driving.LinkService
	authService driving.AuthService // nil disables the bot API

	// Readiness checks by name
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server.
// authService may be nil, in which case bot API routes are not registered.
func NewServer(
	cfg Config,
	linkService driving.LinkService,
	authService driving.AuthService,
	checks map[string]Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		logger:      logger,
		validator:   NewValidator(),
		linkService: linkService,
		authService: authService,
		checks:      checks,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = metrics.Middleware(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRequestIDMiddleware().Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints (no auth)
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", promhttp.Handler())
	s.router.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Link flow (public; the bot hands /link URLs to its users)
	s.router.HandleFunc("GET /link", s.handleLink)
	s.router.HandleFunc("GET /api/v1/auth/link", s.handleLink)

	// Provider redirect target
	s.router.HandleFunc("GET /callback", s.handleCallback)
	s.router.HandleFunc("GET /oauth/callback", s.handleCallback)

	if s.authService == nil {
		return
	}

	authMiddleware := NewAuthMiddleware(s.authService)

	// Bot API
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)
	s.router.Handle("GET /api/v1/mappings/{subjectId}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetMapping)))
	s.router.Handle("POST /api/v1/mappings/{subjectId}/deactivate",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDeactivateMapping)))
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
