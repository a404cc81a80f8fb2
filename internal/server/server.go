// Package server provides the HTTP server and routing for the report controller.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/events"
	"github.com/aristath/market-reports/internal/pipeline"
	"github.com/aristath/market-reports/internal/scheduler"
)

// JobService accepts report requests
type JobService interface {
	SubmitImmediate(ctx context.Context, req domain.JobRequest) (*pipeline.RunResult, error)
	SubmitDeferred(req domain.JobRequest) (*domain.JobRecord, error)
	ListJobs() []domain.JobRecord
	Delay() time.Duration
}

// EventSource delivers emitted events to subscribers
type EventSource interface {
	Subscribe(handler events.Handler) (unsubscribe func())
}

// PoolStatter reports worker pool utilisation
type PoolStatter interface {
	Stats() scheduler.PoolStats
}

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Port           int
	DevMode        bool
	RequestTimeout time.Duration
	DataDir        string
	Jobs           JobService
	Events         EventSource
	Pool           PoolStatter
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	requestTimeout time.Duration
	devMode        bool
	jobHandlers    *JobHandlers
	systemHandlers *SystemHandlers
	eventsHandlers *EventsHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		requestTimeout: timeout,
		devMode:        cfg.DevMode,
		jobHandlers:    NewJobHandlers(cfg.Jobs, cfg.Log),
		systemHandlers: NewSystemHandlers(cfg.DataDir, cfg.Pool, cfg.Jobs, cfg.Log),
		eventsHandlers: NewEventsHandlers(cfg.Events, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupMiddleware configures the middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))
			if !s.devMode {
				r.Use(middleware.Compress(5))
			}

			r.Get("/jobs", s.jobHandlers.HandleListJobs)
			r.Post("/schedule", s.jobHandlers.HandleSchedule)
			r.Post("/submit", s.jobHandlers.HandleSubmit)

			r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
		})

		// Long-lived streams: no timeout, no compression
		r.Get("/events/ws", s.eventsHandlers.HandleWebSocket)
		r.Get("/events/stream", s.eventsHandlers.HandleStream)
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
