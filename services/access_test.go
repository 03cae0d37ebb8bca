package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/talentwire/talentwire/models"
)

func TestValidateTokenIdentity(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusPending)
	session.AccessTokenHash = HashAccessToken("good-token")
	store.sessions[session.ID] = session

	v := NewAccessValidator(store)

	t.Run("valid token", func(t *testing.T) {
		got, err := v.ValidateToken(context.Background(), session.ID, "good-token")
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if got.ID != session.ID {
			t.Errorf("session id = %s, want %s", got.ID, session.ID)
		}
	})

	// A wrong token and a missing session must be indistinguishable to the
	// caller: same error, no hint which part was wrong.
	t.Run("wrong token matches missing session", func(t *testing.T) {
		_, errWrong := v.ValidateToken(context.Background(), session.ID, "bad-token")
		_, errMissing := v.ValidateToken(context.Background(), "no-such-session", "good-token")

		if !errors.Is(errWrong, ErrUnauthorized) {
			t.Errorf("wrong token error = %v, want ErrUnauthorized", errWrong)
		}
		if !errors.Is(errMissing, ErrUnauthorized) {
			t.Errorf("missing session error = %v, want ErrUnauthorized", errMissing)
		}
		if errWrong.Error() != errMissing.Error() {
			t.Errorf("error messages differ: %q vs %q", errWrong, errMissing)
		}
	})

	t.Run("empty token rejected", func(t *testing.T) {
		if _, err := v.ValidateToken(context.Background(), session.ID, ""); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestValidateTokenExpiry(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusPending)
	session.AccessTokenHash = HashAccessToken("good-token")
	session.TokenExpiresAt = time.Now().Add(-time.Minute)
	store.sessions[session.ID] = session

	v := NewAccessValidator(store)

	// A matching token past its expiry gets the expiry-specific error, not the
	// generic one.
	_, err := v.ValidateToken(context.Background(), session.ID, "good-token")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}

	// But a wrong token on an expired session is still just unauthorized.
	_, err = v.ValidateToken(context.Background(), session.ID, "bad-token")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestValidateActiveRejectsTerminalStates(t *testing.T) {
	for _, status := range []models.SessionStatus{models.StatusCompleted, models.StatusCancelled, models.StatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			store := newFakeStore()
			session := newTestSession(status)
			session.AccessTokenHash = HashAccessToken("good-token")
			store.sessions[session.ID] = session

			v := NewAccessValidator(store)
			_, err := v.ValidateActive(context.Background(), session.ID, "good-token")

			var closed *SessionClosedError
			if !errors.As(err, &closed) {
				t.Fatalf("error = %v, want SessionClosedError", err)
			}
			if closed.Status != status {
				t.Errorf("closed status = %s, want %s", closed.Status, status)
			}
		})
	}
}

func TestValidateTokenOnCompletedSession(t *testing.T) {
	// The readiness poller keeps using ValidateToken after completion; a
	// terminal state must not break it while the token is still live.
	store := newFakeStore()
	session := newTestSession(models.StatusCompleted)
	session.AccessTokenHash = HashAccessToken("good-token")
	store.sessions[session.ID] = session

	v := NewAccessValidator(store)
	got, err := v.ValidateToken(context.Background(), session.ID, "good-token")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}
