package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talentwire/talentwire/models"

	"golang.org/x/sync/singleflight"
)

// ReportPipeline turns a finished transcript into exactly one report per
// session. The automatic trigger runs detached from the end-of-session
// request; the manual trigger shares the same guarded path. Failures are
// recorded on the session and never retried automatically - manual
// regeneration is the recovery path.
type ReportPipeline struct {
	store    Store
	agent    ScoringAgent
	notifier Notifier

	// group collapses concurrent triggers for the same session in-process; the
	// conditional report insert closes the remaining cross-process window.
	group singleflight.Group
	jobs  chan string
}

func NewReportPipeline(store Store, agent ScoringAgent, notifier Notifier) *ReportPipeline {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &ReportPipeline{
		store:    store,
		agent:    agent,
		notifier: notifier,
		jobs:     make(chan string, 64),
	}
}

// Start launches the background worker that drains scheduled generations.
func (p *ReportPipeline) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case sessionID := <-p.jobs:
				if err := p.Generate(context.Background(), sessionID); err != nil {
					slog.Error("Background report generation failed", "error", err, "session_id", sessionID)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Schedule enqueues a session for background scoring without blocking the
// caller. A full queue falls back to a detached goroutine rather than
// dropping the job.
func (p *ReportPipeline) Schedule(sessionID string) {
	select {
	case p.jobs <- sessionID:
		slog.Info("Report generation scheduled", "session_id", sessionID)
	default:
		slog.Warn("Report queue full, generating in detached goroutine", "session_id", sessionID)
		go func() {
			if err := p.Generate(context.Background(), sessionID); err != nil {
				slog.Error("Background report generation failed", "error", err, "session_id", sessionID)
			}
		}()
	}
}

// Generate runs the full pipeline for one session. Precondition violations
// come back as typed errors so the manual path can surface them; the
// background path logs and stops.
func (p *ReportPipeline) Generate(ctx context.Context, sessionID string) error {
	_, err, _ := p.group.Do(sessionID, func() (interface{}, error) {
		return nil, p.generate(ctx, sessionID)
	})
	return err
}

func (p *ReportPipeline) generate(ctx context.Context, sessionID string) error {
	session, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}

	exists, err := p.store.HasReport(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("check existing report: %w", err)
	}
	if exists {
		return ErrReportExists
	}

	turns, err := p.store.GetTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	if len(turns) == 0 {
		return ErrEmptyTranscript
	}

	events, err := p.store.GetIntegrityEvents(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load integrity events: %w", err)
	}

	prompt := buildScoringPrompt(session, &session.Candidate, turns, events)

	raw, err := p.agent.Score(ctx, prompt)
	if err != nil {
		p.recordFailure(ctx, sessionID, err)
		return fmt.Errorf("scoring agent: %w", err)
	}

	report, err := parseReportPayload(sessionID, raw)
	if err != nil {
		p.recordFailure(ctx, sessionID, err)
		return fmt.Errorf("parse scoring response: %w", err)
	}

	created, err := p.store.CreateReportIfAbsent(ctx, report)
	if err != nil {
		p.recordFailure(ctx, sessionID, err)
		return fmt.Errorf("persist report: %w", err)
	}
	if !created {
		// Another trigger won the conditional insert; ours is a no-op.
		slog.Info("Report already created by concurrent trigger", "session_id", sessionID)
		return ErrReportExists
	}

	now := time.Now()
	if err := p.store.SetSessionScore(ctx, sessionID, report.OverallScore, now); err != nil {
		slog.Error("Failed to denormalize session score", "error", err, "session_id", sessionID)
	}
	if err := p.store.MarkCandidateScored(ctx, session.CandidateID, report.OverallScore); err != nil {
		slog.Error("Failed to update candidate record", "error", err, "candidate_id", session.CandidateID)
	}

	slog.Info("Interview report generated",
		"session_id", sessionID,
		"overall_score", report.OverallScore,
		"recommendation", report.Recommendation)

	// Best-effort notifications; failure does not roll anything back.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.notifier.NotifyRecruiter(ctx, shapeRecruiterNotice(session, report)); err != nil {
			slog.Error("Recruiter notification failed", "error", err, "session_id", sessionID)
		}
		if err := p.notifier.NotifyCandidate(ctx, shapeCandidateFeedback(session, report)); err != nil {
			slog.Error("Candidate notification failed", "error", err, "session_id", sessionID)
		}
	}()

	return nil
}

func (p *ReportPipeline) recordFailure(ctx context.Context, sessionID string, cause error) {
	if err := p.store.SetSessionReportError(ctx, sessionID, cause.Error()); err != nil {
		slog.Error("Failed to record report error on session", "error", err, "session_id", sessionID)
	}
}

// reportPayload mirrors the JSON contract with the scoring agent. Every
// numeric field is clamped and the recommendation re-validated before any of
// it reaches storage.
type reportPayload struct {
	TechnicalSkills []struct {
		Name     string  `json:"name"`
		Rating   float64 `json:"rating"`
		Evidence string  `json:"evidence"`
	} `json:"technical_skills"`
	SoftSkills []struct {
		Name   string  `json:"name"`
		Rating float64 `json:"rating"`
	} `json:"soft_skills"`
	DomainExpertise float64  `json:"domain_expertise"`
	Clarity         float64  `json:"clarity"`
	ProblemSolving  float64  `json:"problem_solving"`
	Communication   float64  `json:"communication"`
	Impact          float64  `json:"impact"`
	OverallScore    float64  `json:"overall_score"`
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	AreasToImprove  []string `json:"areas_to_improve"`
	Recommendation  string   `json:"recommendation"`
	HiringAdvice    string   `json:"hiring_advice"`
	IntegrityScore  *float64 `json:"integrity_score"`
	IntegrityFlags  []string `json:"integrity_flags"`
}

func parseReportPayload(sessionID, raw string) (*models.InterviewReport, error) {
	var payload reportPayload
	if err := json.Unmarshal([]byte(stripMarkdownFences(raw)), &payload); err != nil {
		return nil, fmt.Errorf("scoring response is not valid JSON: %w", err)
	}

	report := &models.InterviewReport{
		SessionID:       sessionID,
		DomainExpertise: clamp(payload.DomainExpertise, 0, 100),
		Clarity:         clamp(payload.Clarity, 0, 100),
		ProblemSolving:  clamp(payload.ProblemSolving, 0, 100),
		Communication:   clamp(payload.Communication, 0, 100),
		Impact:          clamp(payload.Impact, 0, 100),
		OverallScore:    clamp(payload.OverallScore, 0, 100),
		Summary:         payload.Summary,
		Strengths:       payload.Strengths,
		AreasToImprove:  payload.AreasToImprove,
		Recommendation:  models.ParseRecommendation(payload.Recommendation),
		HiringAdvice:    payload.HiringAdvice,
		IntegrityFlags:  payload.IntegrityFlags,
	}

	if report.Summary == "" {
		report.Summary = "No summary provided"
	}
	if payload.IntegrityScore != nil {
		score := clamp(*payload.IntegrityScore, 0, 100)
		report.IntegrityScore = &score
	}

	for _, skill := range payload.TechnicalSkills {
		if strings.TrimSpace(skill.Name) == "" {
			continue
		}
		report.Skills = append(report.Skills, models.SkillRating{
			Category: models.SkillTechnical,
			Name:     skill.Name,
			Rating:   clamp(skill.Rating, 0, 10),
			Evidence: skill.Evidence,
		})
	}
	for _, skill := range payload.SoftSkills {
		if strings.TrimSpace(skill.Name) == "" {
			continue
		}
		report.Skills = append(report.Skills, models.SkillRating{
			Category: models.SkillSoft,
			Name:     skill.Name,
			Rating:   clamp(skill.Rating, 0, 10),
		})
	}

	return report, nil
}

// stripMarkdownFences tolerates agents that wrap their JSON in ```json fences
// despite instructions.
func stripMarkdownFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
