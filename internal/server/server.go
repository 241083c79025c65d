// Package server provides the HTTP API for litindex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/litindex/internal/config"
	"github.com/hyperjump/litindex/internal/indexer"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/internal/storage"
	"github.com/hyperjump/litindex/internal/vector"
	"go.uber.org/zap"
)

// Retriever answers article-level queries.
type Retriever interface {
	Retrieve(ctx context.Context, q *models.SearchQuery) ([]models.ArticleResult, error)
}

// DocumentIndexer ingests and removes documents.
type DocumentIndexer interface {
	IndexDocuments(ctx context.Context, docs []*models.Document) (*indexer.Report, error)
	DeleteDocument(ctx context.Context, id string) error
}

// WatchService reports the inbox directories being watched.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the litindex API.
type Server struct {
	retriever Retriever
	indexer   DocumentIndexer
	catalog   storage.Catalog
	store     vector.Store
	metaIndex keyword.MetadataIndex
	watch     WatchService
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithMetadataIndex enables the metadata values endpoint and index counts in status.
func WithMetadataIndex(idx keyword.MetadataIndex) Option {
	return func(s *Server) { s.metaIndex = idx }
}

// WithWatch reports watched directories in status.
func WithWatch(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server with the given dependencies.
func NewServer(retriever Retriever, idx DocumentIndexer, catalog storage.Catalog, store vector.Store, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		retriever: retriever,
		indexer:   idx,
		catalog:   catalog,
		store:     store,
		config:    cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/documents", s.handleIndexDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Get("/metadata/{field}/values", s.handleFieldValues)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
