// Package server exposes the HTTP API: run control, brief reads, and
// topic/source administration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dailybrief/internal/brief"
	"dailybrief/internal/config"
	"dailybrief/internal/connector"
	"dailybrief/internal/pipeline"
	"dailybrief/internal/runs"
	"dailybrief/internal/store"
)

// Server is the HTTP front end over the store and the run supervisor.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	store      *store.Store
	supervisor *runs.Supervisor
	ingester   *connector.Ingester
	processor  *pipeline.Processor
	builder    *brief.Builder
	cfg        *config.Config
}

// New creates a server wired to the given components.
func New(s *store.Store, sup *runs.Supervisor, ing *connector.Ingester, proc *pipeline.Processor, b *brief.Builder, cfg *config.Config) *Server {
	srv := &Server{
		router:     chi.NewRouter(),
		store:      s,
		supervisor: sup,
		ingester:   ing,
		processor:  proc,
		builder:    b,
		cfg:        cfg,
	}
	srv.setupMiddleware()
	srv.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv.httpServer = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Post("/{id}/cancel", s.handleCancelRun)
			r.Post("/ingest", s.handleStartIngest)
			r.Post("/ai", s.handleStartAI)
			r.Post("/build-brief", s.handleStartBuildBrief)
		})

		r.Get("/briefs/{date}", s.handleGetBrief)

		r.Route("/topics", func(r chi.Router) {
			r.Get("/", s.handleListTopics)
			r.Post("/", s.handleCreateTopic)
			r.Get("/{id}", s.handleGetTopic)
			r.Put("/{id}", s.handleUpdateTopic)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Get("/{id}", s.handleGetSource)
			r.Put("/{id}", s.handleUpdateSource)
		})
	})
}

// Start blocks serving HTTP until Shutdown or a listen error.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the chi router, used in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
