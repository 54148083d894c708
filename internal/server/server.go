package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dygy/notemidi/internal/pipeline"
)

// Config holds server configuration
type Config struct {
	Port     int
	Defaults pipeline.Config // options applied when a request leaves them out
	Workers  int             // batch worker limit, NumCPU when <= 0
	JobTTL   time.Duration   // how long finished batch jobs stay downloadable
}

// Server is the HTTP server
type Server struct {
	config Config
	router *chi.Mux
	logger *log.Logger
	jobs   *JobManager
}

// New creates a new server
func New(cfg Config) (*Server, error) {
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default options: %w", err)
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 10 * time.Minute
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "server"}),
		jobs:   NewJobManager(cfg.JobTTL),
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/options", s.handleDefaults)

	// API
	r.Post("/convert", s.handleConvert)
	r.Post("/jobs", s.handleCreateJob)
	r.Get("/jobs/{id}", s.handleJobStatus)
	r.Get("/jobs/{id}/midi/{index}", s.handleJobMIDI)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()

		s.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "err", err)
		}
		close(done)
	}()

	s.logger.Info("server starting", "port", s.config.Port)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}
