// Package api exposes the HTTP interface for the ingestion service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	"github.com/cryptoganster/cryptoingest/internal/metrics"
	"github.com/cryptoganster/cryptoingest/internal/pipeline"
)

// Server wires HTTP handlers to the job repository, the content read store,
// and the pipeline dispatcher.
type Server struct {
	router     chi.Router
	jobs       ingest.JobRepository
	reader     ingest.ContentReader
	dispatcher *pipeline.Dispatcher
	idGen      ingest.IDGenerator
	clock      ingest.Clock
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs ingest.JobRepository,
	reader ingest.ContentReader,
	dispatcher *pipeline.Dispatcher,
	idGen ingest.IDGenerator,
	clock ingest.Clock,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		jobs:       jobs,
		reader:     reader,
		dispatcher: dispatcher,
		idGen:      idGen,
		clock:      clock,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/", s.listJobs)
			r.Get("/{job_id}", s.getJob)
		})
		r.Route("/content", func(r chi.Router) {
			r.Post("/", s.submitContent)
			r.Get("/{content_hash}", s.getContentByHash)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready; in future check downstreams.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitJobRequest struct {
	SourceID    string     `json:"source_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SourceID == "" {
		s.writeError(w, http.StatusBadRequest, "source_id required")
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "generate job id failed")
		return
	}
	scheduledAt := s.clock.Now()
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}
	job, err := domain.NewIngestionJob(jobID, req.SourceID, scheduledAt)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.jobs.Create(r.Context(), job); err != nil {
		if errors.Is(err, ingest.ErrJobExists) {
			s.writeError(w, http.StatusConflict, "job already exists")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "create job failed")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(job.Status),
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ingest.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "load job failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "list jobs failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type submitContentRequest struct {
	SourceID   string                 `json:"source_id"`
	JobID      string                 `json:"job_id"`
	SourceType string                 `json:"source_type"`
	RawContent string                 `json:"raw_content"`
	Metadata   domain.ContentMetadata `json:"metadata"`
}

var submittableSourceTypes = map[ingest.SourceType]bool{
	ingest.SourceWeb:         true,
	ingest.SourceRSS:         true,
	ingest.SourceSocialMedia: true,
	ingest.SourceWikipedia:   true,
	ingest.SourcePDF:         true,
	ingest.SourceOCR:         true,
}

// submitContent feeds raw content straight into the pipeline. It is the
// ingress for source types without a polling adapter, PDF and OCR output in
// particular.
func (s *Server) submitContent(w http.ResponseWriter, r *http.Request) {
	var req submitContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SourceID == "" || req.RawContent == "" {
		s.writeError(w, http.StatusBadRequest, "source_id and raw_content required")
		return
	}
	sourceType := ingest.SourceType(req.SourceType)
	if !submittableSourceTypes[sourceType] {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported source_type %q", req.SourceType))
		return
	}

	fact := ingest.ContentCollected{
		SourceID:    req.SourceID,
		JobID:       req.JobID,
		RawContent:  req.RawContent,
		Metadata:    req.Metadata,
		SourceType:  sourceType,
		CollectedAt: s.clock.Now(),
	}
	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.dispatcher.Enqueue(queueCtx, fact); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, "enqueue content failed")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) getContentByHash(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "content_hash")
	hash, err := domain.NewContentHash(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid content hash")
		return
	}
	item, err := s.reader.FindByHash(r.Context(), hash)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "content not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"content": newContentResponse(item)})
}

// contentResponse is the wire shape for a content item. The aggregate keeps
// its tag set unexported, so the handler flattens it here.
type contentResponse struct {
	ContentID         string                 `json:"content_id"`
	SourceID          string                 `json:"source_id"`
	ContentHash       string                 `json:"content_hash"`
	NormalizedContent string                 `json:"normalized_content"`
	Metadata          domain.ContentMetadata `json:"metadata"`
	AssetTags         []domain.AssetTag      `json:"asset_tags"`
	CollectedAt       time.Time              `json:"collected_at"`
}

func newContentResponse(item *domain.ContentItem) contentResponse {
	return contentResponse{
		ContentID:         item.ContentID,
		SourceID:          item.SourceID,
		ContentHash:       item.Hash.String(),
		NormalizedContent: item.NormalizedContent,
		Metadata:          item.Metadata,
		AssetTags:         item.AssetTags(),
		CollectedAt:       item.CollectedAt,
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
