package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/talentwire/talentwire/models"
)

// AccessValidator is the sole authentication path for candidates, who hold no
// platform account. Read-only: nothing here mutates the session.
type AccessValidator struct {
	store Store
	now   func() time.Time
}

func NewAccessValidator(store Store) *AccessValidator {
	return &AccessValidator{store: store, now: time.Now}
}

// HashAccessToken is the at-rest form of a session access token.
func HashAccessToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateToken checks identity and expiry only. A missing session and a
// mismatched token produce the identical ErrUnauthorized; a matching token
// past its expiry gets the expiry-specific error regardless of lifecycle
// state. Used directly by the report readiness poller, which must keep
// working after the session completes.
func (v *AccessValidator) ValidateToken(ctx context.Context, sessionID, token string) (*models.InterviewSession, error) {
	if sessionID == "" || token == "" {
		return nil, ErrUnauthorized
	}

	session, err := v.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrUnauthorized
	}

	presented := HashAccessToken(token)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(session.AccessTokenHash)) != 1 {
		slog.Warn("Access token mismatch", "session_id", sessionID)
		return nil, ErrUnauthorized
	}

	if v.now().After(session.TokenExpiresAt) {
		return nil, ErrTokenExpired
	}

	return session, nil
}

// ValidateActive additionally rejects sessions already in a terminal state,
// reporting the state so the caller can render a terminal message rather than
// a generic auth failure.
func (v *AccessValidator) ValidateActive(ctx context.Context, sessionID, token string) (*models.InterviewSession, error) {
	session, err := v.ValidateToken(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, &SessionClosedError{Status: session.Status}
	}
	return session, nil
}
