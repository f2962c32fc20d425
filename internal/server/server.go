// Package server provides the HTTP API for the tafsir service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/tafsir/internal/config"
	"github.com/hyperjump/tafsir/internal/ingest"
	"github.com/hyperjump/tafsir/internal/search"
	"github.com/hyperjump/tafsir/internal/sources"
	"github.com/hyperjump/tafsir/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the tafsir API.
type Server struct {
	storage  storage.Storage
	registry *sources.Registry
	jobs     *ingest.Manager
	ingester *ingest.Ingester
	index    *search.Index // nil when search is disabled
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. index may be nil.
func NewServer(
	store storage.Storage,
	registry *sources.Registry,
	ingester *ingest.Ingester,
	jobs *ingest.Manager,
	index *search.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		storage:  store,
		registry: registry,
		ingester: ingester,
		jobs:     jobs,
		index:    index,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/sources", s.handleListSources)
	r.Get("/api/v1/sources/{id}", s.handleGetSource)
	r.Post("/api/v1/sources/{id}/ingest", s.handleIngest)
	r.Delete("/api/v1/sources/{id}", s.handleDeleteSource)
	r.Get("/api/v1/jobs/{id}", s.handleGetJob)
	r.Get("/api/v1/sources/{id}/chapters/{chapter}", s.handleGetChapter)
	r.Get("/api/v1/sources/{id}/chapters/{chapter}/verses/{verse}", s.handleGetVerse)
	r.Get("/api/v1/search", s.handleSearch)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
