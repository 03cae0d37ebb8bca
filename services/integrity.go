package services

import (
	"log/slog"
	"time"

	"github.com/talentwire/talentwire/models"
)

// IntegrityEventInput is the loosely-typed shape arriving from the candidate
// client. Validation happens here at the boundary; nothing any-shaped travels
// further into the pipeline.
type IntegrityEventInput struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	// OccurredAt is a unix millisecond timestamp from the client clock. Zero or
	// missing values fall back to the server receive time.
	OccurredAt int64 `json:"occurred_at,omitempty"`
}

// parseIntegrityEvents validates a client batch against the closed kind set.
// Events with unrecognized kinds are dropped with a warning; the rest are
// converted in order into persistable records. Pure data capture, no judgment.
func parseIntegrityEvents(sessionID string, inputs []IntegrityEventInput, received time.Time) []*models.IntegrityEvent {
	events := make([]*models.IntegrityEvent, 0, len(inputs))
	for _, in := range inputs {
		kind := models.IntegrityEventKind(in.Kind)
		if !models.ValidIntegrityEventKind(kind) {
			slog.Warn("Dropping integrity event with unrecognized kind", "session_id", sessionID, "kind", in.Kind)
			continue
		}

		occurredAt := received
		if in.OccurredAt > 0 {
			occurredAt = time.UnixMilli(in.OccurredAt)
		}

		events = append(events, &models.IntegrityEvent{
			SessionID:   sessionID,
			Kind:        kind,
			Description: in.Description,
			OccurredAt:  occurredAt,
		})
	}
	return events
}
