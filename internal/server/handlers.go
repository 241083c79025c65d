package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/litindex/internal/indexer"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/internal/search"
	"github.com/hyperjump/litindex/internal/storage"
	"go.uber.org/zap"
)

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query    string                   `json:"query"`
	Articles []models.ArticleResponse `json:"articles"`
	TookMS   int64                    `json:"took_ms"`
}

// DocumentResponse is a catalog document with its chunk rows.
type DocumentResponse struct {
	Document *models.Document  `json:"document"`
	Chunks   []*models.ChunkRow `json:"chunks"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.Int("max_articles", query.MaxArticles),
		zap.Strings("filter_fields", query.Filter.Fields()))
	start := time.Now()
	results, err := s.retriever.Retrieve(r.Context(), &query)
	if err != nil {
		s.respondErr(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, SearchResponse{
		Query:    query.Query,
		Articles: search.Assemble(results),
		TookMS:   time.Since(start).Milliseconds(),
	})
}

// handleIndexDocuments accepts one document, an array, or {"documents": [...]}.
func (s *Server) handleIndexDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := indexer.DecodeDocuments(r.Body)
	if err != nil {
		s.respondErr(w, "decode documents", err)
		return
	}
	s.logger.Debug("index documents request", zap.Int("count", len(docs)))
	report, err := s.indexer.IndexDocuments(r.Context(), docs)
	if err != nil {
		s.respondErr(w, "indexing", err)
		return
	}
	status := http.StatusOK
	switch {
	case len(report.Indexed) > 0:
		status = http.StatusCreated
	case len(report.Skipped) > 0:
		status = statusFor(report.Skipped[0].Err)
	}
	s.respondJSON(w, status, report)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.catalog.GetDocument(r.Context(), id)
	if err != nil {
		s.respondErr(w, "get document", err)
		return
	}
	chunks, err := s.catalog.GetChunks(r.Context(), id)
	if err != nil {
		s.respondErr(w, "get chunks", err)
		return
	}
	s.respondJSON(w, http.StatusOK, DocumentResponse{Document: doc, Chunks: chunks})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.indexer.DeleteDocument(r.Context(), id); err != nil {
		s.respondErr(w, "delete document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// handleFieldValues lists a field's distinct values. With ?near=v it instead
// returns the known values within ?max_distance edits of v (default 2).
func (s *Server) handleFieldValues(w http.ResponseWriter, r *http.Request) {
	if s.metaIndex == nil {
		s.respondError(w, http.StatusNotImplemented, "metadata index not enabled")
		return
	}
	field := chi.URLParam(r, "field")
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	if near := q.Get("near"); near != "" {
		maxDistance, err := intParam(q.Get("max_distance"), 2)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid max_distance")
			return
		}
		suggestions, err := keyword.SuggestValues(r.Context(), s.metaIndex, field, near, maxDistance, limit)
		if err != nil {
			s.respondErr(w, "suggest values", err)
			return
		}
		if suggestions == nil {
			suggestions = []keyword.Suggestion{}
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"field": field, "near": near, "suggestions": suggestions})
		return
	}

	values, err := s.metaIndex.DistinctValues(r.Context(), field)
	if err != nil {
		s.respondErr(w, "distinct values", err)
		return
	}
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	if values == nil {
		values = []keyword.ValueCount{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"field": field, "values": values})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Status(r.Context())
	if err != nil {
		s.respondErr(w, "status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// Status reports store counts, disk usage, watched directories and the
// effective configuration.
func (s *Server) Status(ctx context.Context) (map[string]interface{}, error) {
	docCount, err := s.catalog.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunkCount, err := s.catalog.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	resp := map[string]interface{}{
		"documents":         docCount,
		"chunks":            chunkCount,
		"vector_store_size": s.store.Size(),
	}
	if s.metaIndex != nil {
		if n, err := s.metaIndex.DocCount(); err == nil {
			resp["metadata_documents"] = n
		}
	}
	if s.watch != nil {
		resp["watched_directories"] = s.watch.Directories()
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"chunk_max_tokens":     cfg.Chunking.MaxTokens,
		"chunk_overlap":        cfg.Chunking.Overlap,
		"vector_backend":       cfg.Storage.VectorBackend,
		"metric":               cfg.Search.Metric,
		"database_path":        cfg.Storage.DatabasePath,
		"vector_path":          cfg.Storage.VectorPath,
		"metadata_index_path":  cfg.Storage.MetadataIndexPath,
	}
	fp, err := storage.MeasureFootprint(map[string]string{
		"catalog":        cfg.Storage.DatabasePath,
		"vectors":        cfg.Storage.VectorPath,
		"metadata_index": cfg.Storage.MetadataIndexPath,
	})
	if err != nil {
		s.logger.Warn("disk usage unavailable", zap.Error(err))
		return resp, nil
	}
	perStore := make(map[string]interface{}, len(fp.Stores))
	for name, n := range fp.Stores {
		perStore[name] = n
	}
	resp["disk_usage_bytes"] = fp.Total
	resp["disk_usage"] = perStore
	return resp, nil
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, indexer.ErrUnwantedPassage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondJSON(w, status, errorResponse{
		Error:     err.Error(),
		Retryable: status == http.StatusServiceUnavailable,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}
