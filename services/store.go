package services

import (
	"context"
	"time"

	"github.com/talentwire/talentwire/models"
)

// Store is the slice of the repository the session engine depends on. The
// GORM repository satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	StartSession(ctx context.Context, sessionID string, at time.Time) (bool, error)
	CompleteSession(ctx context.Context, sessionID string, at time.Time) (bool, error)
	SetSessionScore(ctx context.Context, sessionID string, score float64, at time.Time) error
	SetSessionReportError(ctx context.Context, sessionID, msg string) error

	GetTurns(ctx context.Context, sessionID string) ([]models.TranscriptTurn, error)
	AppendTurns(ctx context.Context, turns []*models.TranscriptTurn) error

	AddIntegrityEvents(ctx context.Context, events []*models.IntegrityEvent) error
	GetIntegrityEvents(ctx context.Context, sessionID string) ([]models.IntegrityEvent, error)

	HasReport(ctx context.Context, sessionID string) (bool, error)
	CreateReportIfAbsent(ctx context.Context, report *models.InterviewReport) (bool, error)

	MarkCandidateScored(ctx context.Context, candidateID string, score float64) error
}
