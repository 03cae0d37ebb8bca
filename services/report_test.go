package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/talentwire/talentwire/models"
)

const scoringResponse = `{
	"technical_skills": [
		{"name": "Go", "rating": 8.5, "evidence": "Explained goroutine scheduling accurately."},
		{"name": "", "rating": 9}
	],
	"soft_skills": [{"name": "Communication", "rating": 7}],
	"domain_expertise": 82,
	"clarity": 75,
	"problem_solving": 88,
	"communication": 70,
	"impact": 65,
	"overall_score": 76,
	"summary": "Strong backend fundamentals.",
	"strengths": ["concurrency", "system design"],
	"areas_to_improve": ["testing discipline"],
	"recommendation": "yes",
	"hiring_advice": "Pair with a senior on the first project.",
	"integrity_score": 95,
	"integrity_flags": []
}`

type scriptedScorer struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (a *scriptedScorer) Score(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.response, a.err
}

type recordingNotifier struct {
	mu        sync.Mutex
	notices   []RecruiterNotice
	feedbacks []CandidateFeedback
	sent      chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan struct{}, 2)}
}

func (n *recordingNotifier) NotifyRecruiter(ctx context.Context, notice RecruiterNotice) error {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

func (n *recordingNotifier) NotifyCandidate(ctx context.Context, feedback CandidateFeedback) error {
	n.mu.Lock()
	n.feedbacks = append(n.feedbacks, feedback)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

func completedSessionStore() (*fakeStore, *models.InterviewSession) {
	store := newFakeStore()
	session := newTestSession(models.StatusCompleted)
	store.sessions[session.ID] = session
	store.turns[session.ID] = []models.TranscriptTurn{
		{SessionID: session.ID, TurnOrder: 1, Speaker: models.SpeakerInterviewer, Content: "Tell me about your last project."},
		{SessionID: session.ID, TurnOrder: 2, Speaker: models.SpeakerCandidate, Content: "I led a migration to event-driven services."},
	}
	return store, session
}

func TestGenerateCreatesReport(t *testing.T) {
	store, session := completedSessionStore()
	notifier := newRecordingNotifier()
	pipeline := NewReportPipeline(store, &scriptedScorer{response: scoringResponse}, notifier)

	if err := pipeline.Generate(context.Background(), session.ID); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	report := store.reports[session.ID]
	if report == nil {
		t.Fatal("no report persisted")
	}
	if report.OverallScore != 76 {
		t.Errorf("overall score = %v, want 76", report.OverallScore)
	}
	if report.Recommendation != models.RecommendYes {
		t.Errorf("recommendation = %s, want yes", report.Recommendation)
	}
	// The blank-named technical skill must be dropped.
	if len(report.Skills) != 2 {
		t.Errorf("skills = %d, want 2", len(report.Skills))
	}

	if store.sessions[session.ID].OverallScore == nil || *store.sessions[session.ID].OverallScore != 76 {
		t.Error("session overall_score not denormalized")
	}
	if score, ok := store.candidateScores[session.CandidateID]; !ok || score != 76 {
		t.Errorf("candidate score = %v (present=%v), want 76", score, ok)
	}

	// Both notifications fire after success.
	<-notifier.sent
	<-notifier.sent
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.notices) != 1 || len(notifier.feedbacks) != 1 {
		t.Fatalf("notifications = %d recruiter, %d candidate, want 1 each", len(notifier.notices), len(notifier.feedbacks))
	}
	if notifier.notices[0].OverallScore != 76 {
		t.Errorf("recruiter notice score = %v, want 76", notifier.notices[0].OverallScore)
	}
}

func TestGeneratePreconditions(t *testing.T) {
	t.Run("missing session", func(t *testing.T) {
		pipeline := NewReportPipeline(newFakeStore(), &scriptedScorer{response: scoringResponse}, nil)
		if err := pipeline.Generate(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("existing report", func(t *testing.T) {
		store, session := completedSessionStore()
		store.reports[session.ID] = &models.InterviewReport{SessionID: session.ID}

		pipeline := NewReportPipeline(store, &scriptedScorer{response: scoringResponse}, nil)
		if err := pipeline.Generate(context.Background(), session.ID); !errors.Is(err, ErrReportExists) {
			t.Errorf("error = %v, want ErrReportExists", err)
		}
	})

	t.Run("empty transcript", func(t *testing.T) {
		store := newFakeStore()
		session := newTestSession(models.StatusCompleted)
		store.sessions[session.ID] = session

		pipeline := NewReportPipeline(store, &scriptedScorer{response: scoringResponse}, nil)
		if err := pipeline.Generate(context.Background(), session.ID); !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("error = %v, want ErrEmptyTranscript", err)
		}
	})
}

func TestGenerateRecordsFailureOnSession(t *testing.T) {
	store, session := completedSessionStore()
	pipeline := NewReportPipeline(store, &scriptedScorer{err: errors.New("model overloaded")}, nil)

	if err := pipeline.Generate(context.Background(), session.ID); err == nil {
		t.Fatal("Generate() error = nil, want scoring failure")
	}

	if store.reportErrors[session.ID] == "" {
		t.Error("failure not recorded on session")
	}
	if store.reports[session.ID] != nil {
		t.Error("report persisted despite scoring failure")
	}
}

func TestGenerateRejectsMalformedScoringOutput(t *testing.T) {
	store, session := completedSessionStore()
	pipeline := NewReportPipeline(store, &scriptedScorer{response: "I think the candidate did well."}, nil)

	if err := pipeline.Generate(context.Background(), session.ID); err == nil {
		t.Fatal("Generate() error = nil, want parse failure")
	}
	if store.reportErrors[session.ID] == "" {
		t.Error("failure not recorded on session")
	}
}

func TestGenerateConcurrentTriggersProduceOneReport(t *testing.T) {
	store, session := completedSessionStore()
	scorer := &scriptedScorer{response: scoringResponse}
	pipeline := NewReportPipeline(store, scorer, nil)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = pipeline.Generate(context.Background(), session.ID)
		}(i)
	}
	wg.Wait()

	if store.reports[session.ID] == nil {
		t.Fatal("no report persisted")
	}
	for _, err := range results {
		if err != nil && !errors.Is(err, ErrReportExists) {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestParseReportPayload(t *testing.T) {
	t.Run("markdown fences stripped", func(t *testing.T) {
		fenced := "```json\n" + scoringResponse + "\n```"
		report, err := parseReportPayload("sess", fenced)
		if err != nil {
			t.Fatalf("parseReportPayload() error = %v", err)
		}
		if report.OverallScore != 76 {
			t.Errorf("overall score = %v, want 76", report.OverallScore)
		}
	})

	t.Run("out of range values clamped", func(t *testing.T) {
		raw := `{"domain_expertise": 140, "clarity": -5, "overall_score": 101,
			"technical_skills": [{"name": "Go", "rating": 14}],
			"summary": "x", "recommendation": "yes"}`
		report, err := parseReportPayload("sess", raw)
		if err != nil {
			t.Fatalf("parseReportPayload() error = %v", err)
		}
		if report.DomainExpertise != 100 || report.Clarity != 0 || report.OverallScore != 100 {
			t.Errorf("dimensions not clamped: %v %v %v", report.DomainExpertise, report.Clarity, report.OverallScore)
		}
		if report.Skills[0].Rating != 10 {
			t.Errorf("skill rating = %v, want 10", report.Skills[0].Rating)
		}
	})

	t.Run("unknown recommendation defaults to maybe", func(t *testing.T) {
		report, err := parseReportPayload("sess", `{"summary": "x", "recommendation": "definitely"}`)
		if err != nil {
			t.Fatalf("parseReportPayload() error = %v", err)
		}
		if report.Recommendation != models.RecommendMaybe {
			t.Errorf("recommendation = %s, want maybe", report.Recommendation)
		}
	})

	t.Run("missing summary gets placeholder", func(t *testing.T) {
		report, err := parseReportPayload("sess", `{"recommendation": "no"}`)
		if err != nil {
			t.Fatalf("parseReportPayload() error = %v", err)
		}
		if report.Summary == "" {
			t.Error("summary left empty")
		}
	})

	t.Run("non-json rejected", func(t *testing.T) {
		if _, err := parseReportPayload("sess", "not json at all"); err == nil {
			t.Error("parseReportPayload() error = nil, want failure")
		}
	})
}

func TestCandidateFeedbackExcludesScoresAndAdvice(t *testing.T) {
	session := newTestSession(models.StatusCompleted)
	report := &models.InterviewReport{
		SessionID:      session.ID,
		OverallScore:   42,
		Strengths:      []string{"clear explanations"},
		HiringAdvice:   "do not hire",
		Recommendation: models.RecommendNo,
	}

	feedback := shapeCandidateFeedback(session, report)
	if feedback.CandidateEmail != session.Candidate.Email {
		t.Errorf("email = %s, want %s", feedback.CandidateEmail, session.Candidate.Email)
	}
	if len(feedback.Strengths) != 1 {
		t.Errorf("strengths = %v", feedback.Strengths)
	}

	notice := shapeRecruiterNotice(session, report)
	if notice.OverallScore != 42 || notice.Recommendation != models.RecommendNo {
		t.Errorf("recruiter notice = %+v", notice)
	}
}
