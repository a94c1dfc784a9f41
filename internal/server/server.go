// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
)

// Service is what the API exposes. *assistant.Assistant implements it.
type Service interface {
	Ask(ctx context.Context, query string) *models.Turn
	RunHarnessReport(ctx context.Context) (*models.HarnessReport, error)
	HarnessRuns(ctx context.Context, limit int) ([]models.HarnessRunSummary, error)
	HarnessRun(ctx context.Context, id string) (*models.HarnessReport, error)
	Documents(ctx context.Context, offset, limit int) ([]models.DocumentSummary, error)
	Document(ctx context.Context, id string) (*models.Document, error)
	SearchDocuments(query string, limit int) ([]models.DocumentSummary, error)
	Reload(ctx context.Context) (indexer.BuildResult, error)
	Status(ctx context.Context) (*assistant.Status, error)
}

// Server is the HTTP server for the kotae API.
type Server struct {
	service Service
	config  *config.ServerConfig
	logger  *zap.Logger
	limiter *rate.Limiter
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(service Service, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := max(cfg.Burst, 1)
	return &Server{
		service: service,
		config:  cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.With(s.rateLimit).Post("/api/v1/answer", s.handleAnswer)
	r.Post("/api/v1/harness/run", s.handleHarnessRun)
	r.Get("/api/v1/harness/runs", s.handleHarnessRuns)
	r.Get("/api/v1/harness/runs/{id}", s.handleGetHarnessRun)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Post("/api/v1/reload", s.handleReload)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
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

// rateLimit rejects requests beyond the configured answer rate with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
