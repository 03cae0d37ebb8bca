package services

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/talentwire/talentwire/models"
	"github.com/talentwire/talentwire/repository"
)

type CandidateEndpoints struct {
	repo     *repository.GORMRepository
	validate *validator.Validate
}

func NewCandidateEndpoints(repo *repository.GORMRepository) *CandidateEndpoints {
	return &CandidateEndpoints{repo: repo, validate: validator.New()}
}

func (e *CandidateEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/candidates", func(r chi.Router) {
		r.Post("/", e.CreateCandidateHandler)
		r.Get("/", e.ListCandidatesHandler)
		r.Get("/{id}", e.GetCandidateHandler)
	})
}

type CreateCandidateRequest struct {
	FullName        string `json:"full_name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Title           string `json:"title" validate:"max=100"`
	Company         string `json:"company" validate:"max=100"`
	Skills          string `json:"skills" validate:"max=500"`
	YearsExperience int    `json:"years_experience" validate:"min=0,max=60"`
	ResumeExcerpt   string `json:"resume_excerpt" validate:"max=4000"`
}

func (e *CandidateEndpoints) CreateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	candidate := models.Candidate{
		ID:              uuid.New().String(),
		FullName:        req.FullName,
		Email:           req.Email,
		Title:           req.Title,
		Company:         req.Company,
		Skills:          req.Skills,
		YearsExperience: req.YearsExperience,
		ResumeExcerpt:   req.ResumeExcerpt,
	}

	if err := e.repo.CreateCandidate(r.Context(), &candidate); err != nil {
		http.Error(w, "Failed to create candidate", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"candidate": candidate})
}

func (e *CandidateEndpoints) ListCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	candidates, err := e.repo.ListCandidates(r.Context())
	if err != nil {
		http.Error(w, "Failed to get candidates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

func (e *CandidateEndpoints) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")
	candidate, err := e.repo.GetCandidate(r.Context(), candidateID)
	if err != nil {
		http.Error(w, "Failed to get candidate", http.StatusInternalServerError)
		return
	}
	if candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"candidate": candidate})
}
