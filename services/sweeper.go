package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/talentwire/talentwire/repository"
)

// ExpirySweeper moves stale pending sessions to expired so recruiters see
// lapsed invitations without waiting for a candidate to hit the link.
type ExpirySweeper struct {
	repo     *repository.GORMRepository
	interval time.Duration
}

func NewExpirySweeper(repo *repository.GORMRepository, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{repo: repo, interval: interval}
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *ExpirySweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	expired, err := s.repo.ExpireOverdueSessions(ctx, time.Now())
	if err != nil {
		slog.Error("Failed to expire overdue sessions", "error", err)
		return
	}
	if expired > 0 {
		slog.Info("Expired overdue sessions", "count", expired)
	}
}
