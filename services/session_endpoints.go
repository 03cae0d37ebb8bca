package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/talentwire/talentwire/models"
	"github.com/talentwire/talentwire/repository"
)

// SessionEndpoints is the recruiter-facing scheduling surface.
type SessionEndpoints struct {
	repo      *repository.GORMRepository
	inviteTTL time.Duration
	validate  *validator.Validate
}

func NewSessionEndpoints(repo *repository.GORMRepository, inviteTTL time.Duration) *SessionEndpoints {
	return &SessionEndpoints{
		repo:      repo,
		inviteTTL: inviteTTL,
		validate:  validator.New(),
	}
}

// RegisterRoutes registers onto the /sessions subrouter.
func (e *SessionEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/", e.CreateSessionHandler)
	r.Get("/", e.ListSessionsHandler)
	r.Get("/{id}", e.GetSessionHandler)
	r.Post("/{id}/cancel", e.CancelSessionHandler)
}

type CreateSessionRequest struct {
	CandidateID    string `json:"candidate_id" validate:"required,uuid"`
	InterviewType  string `json:"interview_type" validate:"required"`
	QuestionBudget int    `json:"question_budget" validate:"omitempty,min=1,max=30"`
}

// CreateSessionHandler schedules an interview and issues the invitation. The
// raw access token appears in this response only; the database keeps its hash.
func (e *SessionEndpoints) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	interviewType := models.InterviewType(req.InterviewType)
	if !models.ValidInterviewType(interviewType) {
		http.Error(w, "Unknown interview type", http.StatusBadRequest)
		return
	}

	candidate, err := e.repo.GetCandidate(r.Context(), req.CandidateID)
	if err != nil {
		http.Error(w, "Failed to validate candidate", http.StatusInternalServerError)
		return
	}
	if candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	accessToken, err := generateOpaqueToken()
	if err != nil {
		slog.Error("Failed to generate access token", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	budget := req.QuestionBudget
	if budget == 0 {
		budget = models.DefaultQuestionBudget(interviewType)
	}

	session := models.InterviewSession{
		ID:              uuid.New().String(),
		CandidateID:     candidate.ID,
		RecruiterID:     user.ID,
		InterviewType:   interviewType,
		Status:          models.StatusPending,
		AccessTokenHash: HashAccessToken(accessToken),
		TokenExpiresAt:  time.Now().Add(e.inviteTTL),
		QuestionBudget:  budget,
	}

	if err := e.repo.CreateSession(r.Context(), &session); err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session":      session,
		"access_token": accessToken,
	})

	slog.Info("Interview scheduled",
		"session_id", session.ID,
		"candidate_id", candidate.ID,
		"recruiter_id", user.ID,
		"interview_type", interviewType)
}

func (e *SessionEndpoints) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	sessions, err := e.repo.ListSessionsByRecruiter(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to get sessions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSessionHandler returns one session with transcript, integrity events and
// report, scoped to the scheduling recruiter.
func (e *SessionEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"session": session})
}

func (e *SessionEndpoints) CancelSessionHandler(w http.ResponseWriter, r *http.Request) {
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

	cancelled, err := e.repo.CancelSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Failed to cancel session", http.StatusInternalServerError)
		return
	}
	if !cancelled {
		http.Error(w, "Session is already in a terminal state", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	slog.Info("Interview session cancelled", "session_id", sessionID, "recruiter_id", user.ID)
}
