package services

import (
	"errors"
	"fmt"

	"github.com/talentwire/talentwire/models"
)

// Domain errors for the candidate-facing paths. ErrUnauthorized deliberately
// carries no detail: an unknown session id and a wrong token must be
// indistinguishable to the caller.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("interview link has expired")

	ErrNotStarted      = errors.New("interview has not been started")
	ErrAlreadyStarted  = errors.New("interview has already been started")
	ErrEmptyTranscript = errors.New("session has no transcript")
	ErrReportExists    = errors.New("report already exists for this session")
	ErrSessionNotFound = errors.New("session not found")
)

// SessionClosedError is returned when an action targets a session in a
// terminal state. It carries the state so the caller can render "already
// done" rather than a generic auth failure.
type SessionClosedError struct {
	Status models.SessionStatus
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("interview is no longer active: %s", e.Status)
}
