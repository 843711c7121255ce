// Package server exposes the read API and live WebSocket feed over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/protocolsim/idlarena/internal/server/handler"
	"github.com/protocolsim/idlarena/internal/server/middleware"
	"github.com/protocolsim/idlarena/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Runs   *handler.RunHandler
	Admin  *handler.AdminHandler
}

// Server is the headless HTTP + WebSocket API for the arena.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. It wires the
// middleware chain (CORS, logging, auth, optional rate limiting) and
// attaches the WebSocket hub. rateLimit may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, rateLimit func(http.Handler) http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Run history.
	mux.HandleFunc("GET /api/runs", handlers.Runs.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", handlers.Runs.GetRun)
	mux.HandleFunc("GET /api/runs/{id}/rounds", handlers.Runs.ListRounds)
	mux.HandleFunc("GET /api/runs/{id}/rounds/{round}", handlers.Runs.GetRound)
	mux.HandleFunc("GET /api/runs/{id}/leaderboard", handlers.Runs.Leaderboard)
	mux.HandleFunc("GET /api/runs/{id}/markets", handlers.Runs.Markets)

	// Operator controls.
	mux.HandleFunc("POST /api/admin/pause", handlers.Admin.Pause)
	mux.HandleFunc("POST /api/admin/resume", handlers.Admin.Resume)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if rateLimit != nil {
		h = rateLimit(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
