package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/talentwire/talentwire/models"
	"github.com/talentwire/talentwire/repository"
	"golang.org/x/crypto/bcrypt"
)

// SeedDatabase creates a demo recruiter and candidate for local development.
// It is a no-op when the recruiter already exists.
func SeedDatabase(ctx context.Context, repo *repository.GORMRepository) error {
	const seedEmail = "recruiter@talentwire.dev"

	existing, err := repo.GetUserByEmail(ctx, seedEmail)
	if err != nil {
		return fmt.Errorf("failed to check for seed recruiter: %w", err)
	}
	if existing != nil {
		slog.Info("Seed data already present, skipping")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	recruiter := models.User{
		ID:       uuid.New().String(),
		Email:    seedEmail,
		Password: string(hashed),
		FullName: "Demo Recruiter",
		Role:     "recruiter",
	}
	if err := repo.CreateUser(ctx, &recruiter); err != nil {
		return fmt.Errorf("failed to create seed recruiter: %w", err)
	}

	candidate := models.Candidate{
		ID:              uuid.New().String(),
		FullName:        "Ada Example",
		Email:           "ada@example.com",
		Title:           "Senior Backend Engineer",
		Company:         "Example Corp",
		Skills:          "Go, PostgreSQL, distributed systems",
		YearsExperience: 8,
		ResumeExcerpt:   "Led the migration of a monolith to event-driven services handling 40k rps.",
	}
	if err := repo.CreateCandidate(ctx, &candidate); err != nil {
		return fmt.Errorf("failed to create seed candidate: %w", err)
	}

	slog.Info("Seeded database", "recruiter", recruiter.Email, "candidate", candidate.Email)
	return nil
}
