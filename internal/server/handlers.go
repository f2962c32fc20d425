package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/tafsir/internal/ingest"
	"github.com/hyperjump/tafsir/internal/models"
	"github.com/hyperjump/tafsir/internal/storage"
	"go.uber.org/zap"
)

// sourceStatus is a registry entry joined with its ingestion receipt.
type sourceStatus struct {
	models.CommentarySource
	Ingested bool                     `json:"ingested"`
	Receipt  *models.IngestionReceipt `json:"receipt,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.storage.ListReceipts(r.Context())
	if err != nil {
		s.logger.Error("status: list receipts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var records int
	for _, rc := range receipts {
		records += rc.RecordCount
	}
	resp := map[string]interface{}{
		"sources":          len(s.registry.All()),
		"ingested_sources": len(receipts),
		"records":          records,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"database_path":    s.config.Storage.DatabasePath,
		"bleve_index_path": s.config.Storage.BleveIndexPath,
		"base_url":         s.config.Ingest.BaseURL,
		"batch_size":       s.config.Ingest.BatchSize,
		"search_enabled":   s.index != nil,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.storage.ListReceipts(r.Context())
	if err != nil {
		s.logger.Error("list receipts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byID := make(map[string]*models.IngestionReceipt, len(receipts))
	for _, rc := range receipts {
		byID[rc.SourceID] = rc
	}
	list := s.registry.All()
	out := make([]sourceStatus, 0, len(list))
	for _, src := range list {
		rc := byID[src.ID]
		out = append(out, sourceStatus{
			CommentarySource: src,
			Ingested:         rc != nil,
			Receipt:          rc,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sources": out})
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	src, ok := s.registry.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	rc, err := s.storage.GetReceipt(r.Context(), id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("get receipt failed", zap.String("source", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, sourceStatus{
		CommentarySource: src,
		Ingested:         rc != nil,
		Receipt:          rc,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("ingest request", zap.String("source", id))
	// The job outlives the request, so it does not inherit the
	// request context.
	jobID, err := s.jobs.Start(context.Background(), id)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnknownSource):
			s.respondError(w, http.StatusNotFound, "source not found")
		case errors.Is(err, ingest.ErrIngestInProgress):
			s.respondError(w, http.StatusConflict, "ingestion already in progress")
		default:
			s.logger.Error("ingest start failed", zap.String("source", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "source_id": id})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.Job(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.registry.Get(id); !ok {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	s.logger.Debug("delete source request", zap.String("source", id))
	if err := s.ingester.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete failed", zap.String("source", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"source_id": id, "status": "deleted"})
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chapter, err := strconv.Atoi(chi.URLParam(r, "chapter"))
	if err != nil || chapter < 1 || chapter > 114 {
		s.respondError(w, http.StatusBadRequest, "chapter must be between 1 and 114")
		return
	}
	if _, ok := s.registry.Get(id); !ok {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	records, err := s.storage.GetByChapter(r.Context(), id, chapter)
	if err != nil {
		s.logger.Error("get chapter failed", zap.String("source", id), zap.Int("chapter", chapter), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"source_id": id,
		"chapter":   chapter,
		"records":   records,
	})
}

func (s *Server) handleGetVerse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chapter, err := strconv.Atoi(chi.URLParam(r, "chapter"))
	if err != nil || chapter < 1 || chapter > 114 {
		s.respondError(w, http.StatusBadRequest, "chapter must be between 1 and 114")
		return
	}
	verse, err := strconv.Atoi(chi.URLParam(r, "verse"))
	if err != nil || verse < 1 {
		s.respondError(w, http.StatusBadRequest, "verse must be a positive integer")
		return
	}
	rec, err := s.storage.GetRecord(r.Context(), id, chapter, verse)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("get verse failed", zap.String("source", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}
	s.logger.Debug("search request", zap.String("query", query), zap.Int("limit", limit))
	hits, err := s.index.Search(query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"hits":  hits,
		"total": len(hits),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
