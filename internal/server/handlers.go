package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("answer request", zap.String("query", req.Query))
	s.respondJSON(w, http.StatusOK, s.service.Ask(r.Context(), req.Query))
}

func (s *Server) handleHarnessRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.RunHarnessReport(r.Context())
	if report == nil {
		s.logger.Error("harness run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "harness run failed")
		return
	}
	if err != nil {
		s.logger.Warn("harness run not stored", zap.String("run_id", report.RunID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHarnessRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intParam(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	runs, err := s.service.HarnessRuns(r.Context(), min(limit, maxListLimit))
	if err != nil {
		s.respondServiceError(w, "list harness runs", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetHarnessRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.HarnessRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, "get harness run", err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intParam(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	limit = min(limit, maxListLimit)
	if q := r.URL.Query().Get("q"); q != "" {
		docs, err := s.service.SearchDocuments(q, limit)
		if err != nil {
			s.respondServiceError(w, "search documents", err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
		return
	}
	offset, ok := s.intParam(w, r, "offset", 0)
	if !ok {
		return
	}
	docs, err := s.service.Documents(r.Context(), offset, limit)
	if err != nil {
		s.respondServiceError(w, "list documents", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, "get document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Reload(r.Context())
	if err != nil {
		s.respondServiceError(w, "reload", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"rebuilt":     res.Rebuilt,
		"source":      res.Source,
		"fingerprint": res.Fingerprint,
		"documents":   res.Documents,
		"chunks":      res.Chunks,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(r.Context())
	if err != nil {
		s.respondServiceError(w, "status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSourceInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrIndexStale),
		errors.Is(err, models.ErrEmbeddingUnavailable),
		errors.Is(err, models.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
