package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/talentwire/talentwire/models"
	"github.com/talentwire/talentwire/repository"
)

// ReportEndpoints serves finished reports to recruiters and lets them kick off
// a regeneration after a failed run.
type ReportEndpoints struct {
	repo     *repository.GORMRepository
	pipeline *ReportPipeline
}

func NewReportEndpoints(repo *repository.GORMRepository, pipeline *ReportPipeline) *ReportEndpoints {
	return &ReportEndpoints{repo: repo, pipeline: pipeline}
}

// RegisterRoutes registers onto the /sessions subrouter.
func (e *ReportEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/{id}/report", func(r chi.Router) {
		r.Get("/", e.GetReportHandler)
		r.Post("/generate", e.GenerateReportHandler)
	})
}

// GetReportHandler distinguishes three outcomes for a completed interview:
// the report exists, generation is still running, or the last run failed.
func (e *ReportEndpoints) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	session, err := e.repo.GetSessionForRecruiter(r.Context(), sessionID, user.ID)
	if err != nil {
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if session.Report != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"report": session.Report})
		return
	}

	if session.ReportError != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "failed",
			"error":  session.ReportError,
		})
		return
	}

	if session.Status == models.StatusCompleted {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "generating"})
		return
	}

	http.Error(w, "Report not found", http.StatusNotFound)
}

// GenerateReportHandler runs the pipeline synchronously so the recruiter gets
// a definite answer. Used to recover after a scoring failure.
func (e *ReportEndpoints) GenerateReportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	session, err := e.repo.GetSessionForRecruiter(r.Context(), sessionID, user.ID)
	if err != nil {
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if err := e.pipeline.Generate(r.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, ErrReportExists):
			http.Error(w, "Report already exists", http.StatusConflict)
		case errors.Is(err, ErrEmptyTranscript):
			http.Error(w, "Session has no transcript to score", http.StatusBadRequest)
		case errors.Is(err, ErrSessionNotFound):
			http.Error(w, "Session not found", http.StatusNotFound)
		default:
			http.Error(w, "Report generation failed", http.StatusBadGateway)
		}
		return
	}

	report, err := e.repo.GetReportBySession(r.Context(), sessionID)
	if err != nil || report == nil {
		http.Error(w, "Report generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"report": report})
}
