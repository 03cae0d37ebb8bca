package services

import (
	"context"
	"log/slog"

	"github.com/talentwire/talentwire/models"
)

// Notifier is the narrow contract to the notification collaborators. Sends are
// fire-and-forget; a failure never rolls back a report.
type Notifier interface {
	NotifyRecruiter(ctx context.Context, notice RecruiterNotice) error
	NotifyCandidate(ctx context.Context, feedback CandidateFeedback) error
}

// RecruiterNotice carries the recruiter-visible headline of a finished report.
type RecruiterNotice struct {
	SessionID      string                `json:"session_id"`
	RecruiterID    string                `json:"recruiter_id"`
	CandidateName  string                `json:"candidate_name"`
	OverallScore   float64               `json:"overall_score"`
	Recommendation models.Recommendation `json:"recommendation"`
}

// CandidateFeedback is the candidate-visible shape: strengths only. Scores and
// hiring advice are excluded here, at the data-shaping layer, not at render
// time.
type CandidateFeedback struct {
	SessionID      string   `json:"session_id"`
	CandidateEmail string   `json:"candidate_email"`
	Strengths      []string `json:"strengths"`
}

// shapeRecruiterNotice and shapeCandidateFeedback are the only places a report
// is projected into an outbound audience shape.

func shapeRecruiterNotice(session *models.InterviewSession, report *models.InterviewReport) RecruiterNotice {
	return RecruiterNotice{
		SessionID:      session.ID,
		RecruiterID:    session.RecruiterID,
		CandidateName:  session.Candidate.FullName,
		OverallScore:   report.OverallScore,
		Recommendation: report.Recommendation,
	}
}

func shapeCandidateFeedback(session *models.InterviewSession, report *models.InterviewReport) CandidateFeedback {
	return CandidateFeedback{
		SessionID:      session.ID,
		CandidateEmail: session.Candidate.Email,
		Strengths:      report.Strengths,
	}
}

// LogNotifier is the default collaborator: it records the send and does
// nothing else. Real delivery lives outside this service.
type LogNotifier struct{}

func (LogNotifier) NotifyRecruiter(ctx context.Context, notice RecruiterNotice) error {
	slog.Info("Recruiter notified of report",
		"session_id", notice.SessionID,
		"recruiter_id", notice.RecruiterID,
		"overall_score", notice.OverallScore,
		"recommendation", notice.Recommendation)
	return nil
}

func (LogNotifier) NotifyCandidate(ctx context.Context, feedback CandidateFeedback) error {
	slog.Info("Candidate feedback sent",
		"session_id", feedback.SessionID,
		"strengths_count", len(feedback.Strengths))
	return nil
}
