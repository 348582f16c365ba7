// Package api is the HTTP surface of the relay: registration CRUD, the
// analyse deposit/stream endpoint, the provider long-poll, and result
// submission.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/castlab/enginerelay/internal/engine"
	"github.com/castlab/enginerelay/internal/hub"
	"github.com/castlab/enginerelay/internal/metrics"
	"github.com/castlab/enginerelay/internal/ongoing"
	"github.com/castlab/enginerelay/internal/registry"
)

// EngineStore is the registry surface the server needs.
type EngineStore interface {
	Create(ctx context.Context, req registry.CreateRequest) (engine.Engine, error)
	Get(ctx context.Context, id string) (engine.Engine, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
}

// Server routes requests to the one hub and tracker instance the process
// owns. Both are constructed at startup and passed in; the server never
// creates its own.
type Server struct {
	config    Config
	store     EngineStore
	hub       *hub.Hub[engine.ProviderSelector, *Job]
	ongoing   *ongoing.Ongoing[engine.JobID, *Job]
	metrics   *metrics.Collector
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(
	config Config,
	store EngineStore,
	h *hub.Hub[engine.ProviderSelector, *Job],
	o *ongoing.Ongoing[engine.JobID, *Job],
	m *metrics.Collector,
	logger *slog.Logger,
) *Server {
	return &Server{
		config:    config,
		store:     store,
		hub:       h,
		ongoing:   o,
		metrics:   m,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Hub exposes the broker for wiring sweeps in the entrypoint.
func (s *Server) Hub() *hub.Hub[engine.ProviderSelector, *Job] { return s.hub }

// Ongoing exposes the tracker for wiring sweeps in the entrypoint.
func (s *Server) Ongoing() *ongoing.Ongoing[engine.JobID, *Job] { return s.ongoing }

// Start starts the HTTP server (blocking until ctx is cancelled).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     router,
		ReadTimeout: 0, // analyse and submit bodies stream for the job's lifetime
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Post("/api/external-engine", s.handleRegister)
	r.Get("/api/external-engine/{id}", s.handleGetEngine)
	r.Delete("/api/external-engine/{id}", s.handleDeleteEngine)
	r.Post("/api/external-engine/{id}/analyse", s.handleAnalyse)
	r.Post("/api/external-engine/work", s.handleAcquire)
	r.Post("/api/external-engine/work/{id}", s.handleSubmit)

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
