// Package chi is the HTTP surface. It stays thin: decode, validate, call the
// usecase, encode. All retrieval semantics live below it.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	"github.com/kestrel-cloud/ragdex/internal/metrics"
	healthuc "github.com/kestrel-cloud/ragdex/internal/usecase/health"
	raguc "github.com/kestrel-cloud/ragdex/internal/usecase/rag"
	searchuc "github.com/kestrel-cloud/ragdex/internal/usecase/search"
)

const maxBatchQuestions = 50

// Server holds the HTTP handlers.
type Server struct {
	search *searchuc.Service
	rag    *raguc.Service
	health *healthuc.Service
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search *searchuc.Service, rag *raguc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{search: search, rag: rag, health: health, logger: logger}
}

// Router assembles the full route tree with middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(requestIDMiddleware())
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/search/multimodal", s.handleMultimodalSearch)
		r.Get("/similar/{collection}/{id}", s.handleSimilar)
		r.Post("/rag", s.handleRAG)
		r.Post("/rag/chat", s.handleRAGChat)
		r.Post("/rag/batch", s.handleRAGBatch)
	})

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// handleSearch handles POST /api/v1/search: text-to-text retrieval with an
// optional hybrid lexical blend.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	q, err := domain.NewQueryContext(
		req.Query, domain.ModalityText, domain.ModalityText,
		req.Filters.toDomain(), req.TopK, req.CandidateK,
	)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.search.Search(r.Context(), q, req.Hybrid)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(result))
}

// handleMultimodalSearch handles POST /api/v1/search/multimodal: any
// input/target modality pair.
func (s *Server) handleMultimodalSearch(w http.ResponseWriter, r *http.Request) {
	var req multimodalSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	q, err := domain.NewQueryContext(
		req.Input, domain.Modality(req.InputModality), domain.Modality(req.TargetModality),
		req.Filters.toDomain(), req.TopK, req.CandidateK,
	)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.search.Search(r.Context(), q, false)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(result))
}

// handleSimilar handles GET /api/v1/similar/{collection}/{id}.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "top_k must be an integer")
			return
		}
		topK = parsed
	}

	result, err := s.search.SimilarTo(r.Context(), collection, id, topK)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(result))
}

// handleRAG handles POST /api/v1/rag.
func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}

	answer := s.rag.Answer(r.Context(), req.Question, req.options())
	writeJSON(w, http.StatusOK, ragResponseFrom(answer))
}

// handleRAGChat handles POST /api/v1/rag/chat.
func (s *Server) handleRAGChat(w http.ResponseWriter, r *http.Request) {
	var req ragChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "messages are required")
		return
	}

	answer := s.rag.ChatAnswer(r.Context(), req.Messages, req.options())
	writeJSON(w, http.StatusOK, ragResponseFrom(answer))
}

// handleRAGBatch handles POST /api/v1/rag/batch.
func (s *Server) handleRAGBatch(w http.ResponseWriter, r *http.Request) {
	var req ragBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.Questions) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "questions are required")
		return
	}
	if len(req.Questions) > maxBatchQuestions {
		writeError(w, http.StatusBadRequest, "validation_failed",
			"at most "+strconv.Itoa(maxBatchQuestions)+" questions per batch")
		return
	}

	result := s.rag.BatchAnswer(r.Context(), req.Questions, req.options())
	writeJSON(w, http.StatusOK, ragBatchResponseFrom(result))
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", safeMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", safeMessage(err))
	case errors.Is(err, domain.ErrRetrievalUnavailable), errors.Is(err, domain.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", safeMessage(err))
	case errors.Is(err, domain.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, "generation_failed", safeMessage(err))
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", safeMessage(err))
	default:
		s.logger.Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// safeMessage returns the sentinel's message without exposing internals.
func safeMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrRetrievalUnavailable,
		domain.ErrModelUnavailable,
		domain.ErrDegenerateEmbedding,
		domain.ErrGenerationFailed,
		domain.ErrTimeout,
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   errorBody{Code: code, Message: message},
	})
}
