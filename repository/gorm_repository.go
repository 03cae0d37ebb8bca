package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/talentwire/talentwire/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// Ping checks database connectivity for health reporting.
func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Candidate{},
		&models.InterviewSession{},
		&models.TranscriptTurn{},
		&models.IntegrityEvent{},
		&models.InterviewReport{},
		&models.SkillRating{},
	)
}

// User operations

func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// Token operations

func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Candidate operations

func (r *GORMRepository) CreateCandidate(ctx context.Context, candidate *models.Candidate) error {
	if err := r.db.WithContext(ctx).Create(candidate).Error; err != nil {
		slog.Error("Failed to create candidate", "error", err)
		return err
	}
	slog.Info("Candidate created", "candidate_id", candidate.ID, "email", candidate.Email)
	return nil
}

func (r *GORMRepository) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&candidate).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get candidate", "error", err, "candidate_id", id)
		return nil, err
	}
	return &candidate, nil
}

func (r *GORMRepository) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&candidates).Error; err != nil {
		slog.Error("Failed to list candidates", "error", err)
		return nil, err
	}
	return candidates, nil
}

// MarkCandidateScored sets the denormalized fields owned by the report
// pipeline: the interviewed flag and the latest overall score.
func (r *GORMRepository) MarkCandidateScored(ctx context.Context, candidateID string, score float64) error {
	err := r.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("id = ?", candidateID).
		Updates(map[string]interface{}{"interviewed": true, "latest_score": score}).Error
	if err != nil {
		slog.Error("Failed to mark candidate scored", "error", err, "candidate_id", candidateID)
		return err
	}
	return nil
}

// Session operations

func (r *GORMRepository) CreateSession(ctx context.Context, session *models.InterviewSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		slog.Error("Failed to create interview session", "error", err)
		return err
	}
	slog.Info("Interview session created", "session_id", session.ID, "candidate_id", session.CandidateID)
	return nil
}

// GetSession loads a session with its candidate profile, without any ownership
// check. This is the read used by the token-gated candidate paths.
func (r *GORMRepository) GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		Preload("Candidate").
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) GetSessionForRecruiter(ctx context.Context, sessionID, recruiterID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND recruiter_id = ?", sessionID, recruiterID).
		Preload("Candidate").
		Preload("Turns", func(db *gorm.DB) *gorm.DB { return db.Order("turn_order") }).
		Preload("IntegrityEvents", func(db *gorm.DB) *gorm.DB { return db.Order("occurred_at") }).
		Preload("Report").
		Preload("Report.Skills").
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview session for recruiter", "error", err, "session_id", sessionID, "recruiter_id", recruiterID)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) ListSessionsByRecruiter(ctx context.Context, recruiterID string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("recruiter_id = ?", recruiterID).
		Preload("Candidate").
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to list interview sessions", "error", err, "recruiter_id", recruiterID)
		return nil, err
	}
	return sessions, nil
}

// Lifecycle transitions. Each transition is a conditional update guarded by the
// current status, so a session can never leave a terminal state and each
// forward edge fires at most once even under concurrent requests. The returned
// bool reports whether the transition actually happened.

func (r *GORMRepository) StartSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ? AND status = ?", sessionID, models.StatusPending).
		Updates(map[string]interface{}{"status": models.StatusInProgress, "started_at": at})
	if res.Error != nil {
		slog.Error("Failed to start interview session", "error", res.Error, "session_id", sessionID)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GORMRepository) CompleteSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ? AND status = ?", sessionID, models.StatusInProgress).
		Updates(map[string]interface{}{"status": models.StatusCompleted, "completed_at": at})
	if res.Error != nil {
		slog.Error("Failed to complete interview session", "error", res.Error, "session_id", sessionID)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GORMRepository) CancelSession(ctx context.Context, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ? AND status IN ?", sessionID, []models.SessionStatus{models.StatusPending, models.StatusInProgress}).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		slog.Error("Failed to cancel interview session", "error", res.Error, "session_id", sessionID)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpireOverdueSessions marks pending sessions whose invitation expired while
// never joined. Returns the number of sessions transitioned.
func (r *GORMRepository) ExpireOverdueSessions(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("status = ? AND token_expires_at < ?", models.StatusPending, now).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		slog.Error("Failed to expire overdue sessions", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// SetSessionScore denormalizes the report's overall score onto the session and
// backfills completed_at if the end transition did not set it.
func (r *GORMRepository) SetSessionScore(ctx context.Context, sessionID string, score float64, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{"overall_score": score, "report_error": ""}).Error
	if err != nil {
		slog.Error("Failed to set session score", "error", err, "session_id", sessionID)
		return err
	}
	err = r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ? AND completed_at IS NULL", sessionID).
		Update("completed_at", at).Error
	if err != nil {
		slog.Error("Failed to backfill session completed_at", "error", err, "session_id", sessionID)
		return err
	}
	return nil
}

// SetSessionReportError records a background generation failure so operators
// can tell a failed report apart from one still generating.
func (r *GORMRepository) SetSessionReportError(ctx context.Context, sessionID, msg string) error {
	err := r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ?", sessionID).
		Update("report_error", msg).Error
	if err != nil {
		slog.Error("Failed to set session report error", "error", err, "session_id", sessionID)
		return err
	}
	return nil
}

// Transcript operations

func (r *GORMRepository) GetTurns(ctx context.Context, sessionID string) ([]models.TranscriptTurn, error) {
	var turns []models.TranscriptTurn
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("turn_order").Find(&turns).Error
	if err != nil {
		slog.Error("Failed to get transcript turns", "error", err, "session_id", sessionID)
		return nil, err
	}
	return turns, nil
}

// AppendTurns writes a batch of turns in one transaction, so a reader sees an
// exchange either fully present or not at all.
func (r *GORMRepository) AppendTurns(ctx context.Context, turns []*models.TranscriptTurn) error {
	if len(turns) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, turn := range turns {
			if err := tx.Create(turn).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to append transcript turns", "error", err, "session_id", turns[0].SessionID, "count", len(turns))
		return err
	}
	return nil
}

// Integrity events

func (r *GORMRepository) AddIntegrityEvents(ctx context.Context, events []*models.IntegrityEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(events).Error; err != nil {
		slog.Error("Failed to add integrity events", "error", err, "session_id", events[0].SessionID, "count", len(events))
		return err
	}
	slog.Info("Integrity events stored", "session_id", events[0].SessionID, "count", len(events))
	return nil
}

func (r *GORMRepository) GetIntegrityEvents(ctx context.Context, sessionID string) ([]models.IntegrityEvent, error) {
	var events []models.IntegrityEvent
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("occurred_at").Find(&events).Error
	if err != nil {
		slog.Error("Failed to get integrity events", "error", err, "session_id", sessionID)
		return nil, err
	}
	return events, nil
}

// Report operations

func (r *GORMRepository) HasReport(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InterviewReport{}).
		Where("session_id = ?", sessionID).Count(&count).Error
	if err != nil {
		slog.Error("Failed to check report existence", "error", err, "session_id", sessionID)
		return false, err
	}
	return count > 0, nil
}

func (r *GORMRepository) GetReportBySession(ctx context.Context, sessionID string) (*models.InterviewReport, error) {
	var report models.InterviewReport
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Preload("Skills").
		First(&report).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview report", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &report, nil
}

// CreateReportIfAbsent inserts the report and its skill ratings only when no
// report exists for the session yet. The unique index on session_id plus
// ON CONFLICT DO NOTHING makes the existence check and the create a single
// conditional operation, so at most one report can ever win even under
// concurrent triggers. Returns whether this call created the report.
func (r *GORMRepository) CreateReportIfAbsent(ctx context.Context, report *models.InterviewReport) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skills := report.Skills
		report.Skills = nil

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).Create(report)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		for i := range skills {
			skills[i].ReportID = report.ID
		}
		if len(skills) > 0 {
			if err := tx.Create(&skills).Error; err != nil {
				return err
			}
		}
		report.Skills = skills
		return nil
	})
	if err != nil {
		slog.Error("Failed to create interview report", "error", err, "session_id", report.SessionID)
		return false, err
	}
	if created {
		slog.Info("Interview report created", "report_id", report.ID, "session_id", report.SessionID)
	}
	return created, nil
}
