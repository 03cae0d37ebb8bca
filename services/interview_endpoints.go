package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/talentwire/talentwire/models"
)

// InterviewEndpoints is the anonymous, token-authenticated candidate surface:
// validate, turn (SSE) and report readiness.
type InterviewEndpoints struct {
	validator  *AccessValidator
	controller *TurnController
	store      Store
	validate   *validator.Validate
}

func NewInterviewEndpoints(accessValidator *AccessValidator, controller *TurnController, store Store) *InterviewEndpoints {
	return &InterviewEndpoints{
		validator:  accessValidator,
		controller: controller,
		store:      store,
		validate:   validator.New(),
	}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interview/{id}", func(r chi.Router) {
		r.Post("/validate", e.ValidateHandler)
		r.Post("/turn", e.TurnHandler)
		r.Get("/report/ready", e.ReportReadyHandler)
	})
}

// bearerToken extracts the access token from the Authorization header, falling
// back to the token query parameter for EventSource-style clients.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// writeAccessError maps validator errors onto the wire without leaking
// internals. Terminal-state rejections carry the state; everything else stays
// generic.
func writeAccessError(w http.ResponseWriter, err error) {
	var closed *SessionClosedError
	switch {
	case errors.Is(err, ErrTokenExpired):
		http.Error(w, ErrTokenExpired.Error(), http.StatusUnauthorized)
	case errors.As(err, &closed):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  closed.Error(),
			"status": closed.Status,
		})
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

type ValidateRequest struct {
	Token string `json:"token" validate:"required"`
}

// ValidateHandler returns the session summary a candidate client needs to
// render the lobby. Progress is derived from the transcript, never stored.
func (e *InterviewEndpoints) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := e.validator.ValidateActive(r.Context(), sessionID, req.Token)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	turns, err := e.store.GetTurns(r.Context(), session.ID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id":      session.ID,
		"interview_type":  session.InterviewType,
		"status":          session.Status,
		"candidate_name":  session.Candidate.FullName,
		"question_budget": session.QuestionBudget,
		"question_count":  models.QuestionCount(turns),
	})

	slog.Info("Interview access validated", "session_id", session.ID, "status", session.Status)
}

// TurnHandler runs one conversational turn over a server-sent event stream.
func (e *InterviewEndpoints) TurnHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(req); err != nil {
		http.Error(w, "Invalid turn action", http.StatusBadRequest)
		return
	}

	session, err := e.validator.ValidateActive(r.Context(), sessionID, bearerToken(r))
	if err != nil {
		writeAccessError(w, err)
		return
	}

	emitter, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	if err := e.controller.HandleTurn(r.Context(), session, req, emitter); err != nil {
		// The stream is already open; surface the failure as a terminal event.
		var closed *SessionClosedError
		switch {
		case errors.As(err, &closed):
			emitter.Fail(closed.Error())
		case errors.Is(err, ErrNotStarted), errors.Is(err, ErrAlreadyStarted):
			emitter.Fail(err.Error())
		default:
			slog.Error("Turn failed", "error", err, "session_id", sessionID, "action", req.Action)
			emitter.Fail("connection error, please retry")
		}
	}
}

// ReportReadyHandler is the readiness poller: a boolean derived from report
// existence, never the report itself. It validates the token and expiry only,
// since the session is necessarily completed while a client polls.
func (e *InterviewEndpoints) ReportReadyHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	session, err := e.validator.ValidateToken(r.Context(), sessionID, bearerToken(r))
	if err != nil {
		writeAccessError(w, err)
		return
	}

	ready, err := e.store.HasReport(r.Context(), session.ID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}
