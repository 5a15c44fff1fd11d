package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"clearlink-hq/hermes/pkg/audit"
	"clearlink-hq/hermes/pkg/config"
	"clearlink-hq/hermes/pkg/pipeline"
	"clearlink-hq/hermes/pkg/server/middleware"
	"clearlink-hq/hermes/pkg/settings"
	"clearlink-hq/hermes/pkg/telemetry/health"
	"clearlink-hq/hermes/pkg/telemetry/metrics"
)

// Deps are the collaborators the API server exposes.
type Deps struct {
	// Pipeline handles cleaning requests. Required.
	Pipeline *pipeline.Pipeline

	// Settings backs the owner settings endpoints. Optional.
	Settings *settings.Service

	// History backs the history and stats endpoints. Optional.
	History audit.Storage

	// Health drives the liveness and readiness endpoints. Optional; a
	// checker with no registered probes is used when nil.
	Health *health.Checker

	// Metrics serves the exposition endpoint when enabled. Optional.
	Metrics *metrics.Collector

	Logger *slog.Logger

	// Version, Commit, and BuildTime feed the version endpoint.
	Version   string
	Commit    string
	BuildTime string
}

// Server is the hermes HTTP API server.
type Server struct {
	cfg          *config.Config
	deps         Deps
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
}

// New creates a Server.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("server requires a pipeline")
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}, nil
}

// Start runs the HTTP server until ctx is canceled or the listener
// fails. Cancellation triggers a graceful shutdown bounded by the
// configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.cfg.Server.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", s.cfg.Server.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start has begun and Shutdown has not
// finished.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/clean", s.handleClean)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)
	mux.HandleFunc("POST /v1/rules", s.handleAddRule)
	mux.HandleFunc("DELETE /v1/rules", s.handleDeleteRule)

	mux.HandleFunc("/health", s.deps.Health.LivenessHandler())
	mux.HandleFunc("/ready", s.deps.Health.ReadinessHandler())
	mux.HandleFunc("/version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))

	if s.deps.Metrics != nil && s.cfg.Telemetry.Metrics.Enabled {
		mux.Handle(s.cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.Timeout(s.cfg.Server.RequestTimeout)(handler)
	handler = middleware.CORS(&s.cfg.Server.CORS)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Recovery(s.logger)(handler)
	return handler
}
