package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talentwire/talentwire/models"
)

// fakeStore is an in-memory Store shared by the engine tests.
type fakeStore struct {
	mu              sync.Mutex
	sessions        map[string]*models.InterviewSession
	turns           map[string][]models.TranscriptTurn
	events          map[string][]models.IntegrityEvent
	reports         map[string]*models.InterviewReport
	reportErrors    map[string]string
	candidateScores map[string]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:        make(map[string]*models.InterviewSession),
		turns:           make(map[string][]models.TranscriptTurn),
		events:          make(map[string][]models.IntegrityEvent),
		reports:         make(map[string]*models.InterviewReport),
		reportErrors:    make(map[string]string),
		candidateScores: make(map[string]float64),
	}
}

func (s *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *fakeStore) StartSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Status != models.StatusPending {
		return false, nil
	}
	session.Status = models.StatusInProgress
	session.StartedAt = &at
	return true, nil
}

func (s *fakeStore) CompleteSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Status != models.StatusInProgress {
		return false, nil
	}
	session.Status = models.StatusCompleted
	session.CompletedAt = &at
	return true, nil
}

func (s *fakeStore) SetSessionScore(ctx context.Context, sessionID string, score float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		session.OverallScore = &score
		session.ReportError = ""
	}
	return nil
}

func (s *fakeStore) SetSessionReportError(ctx context.Context, sessionID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportErrors[sessionID] = msg
	return nil
}

func (s *fakeStore) GetTurns(ctx context.Context, sessionID string) ([]models.TranscriptTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TranscriptTurn(nil), s.turns[sessionID]...), nil
}

func (s *fakeStore) AppendTurns(ctx context.Context, turns []*models.TranscriptTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, turn := range turns {
		s.turns[turn.SessionID] = append(s.turns[turn.SessionID], *turn)
	}
	return nil
}

func (s *fakeStore) AddIntegrityEvents(ctx context.Context, events []*models.IntegrityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range events {
		s.events[event.SessionID] = append(s.events[event.SessionID], *event)
	}
	return nil
}

func (s *fakeStore) GetIntegrityEvents(ctx context.Context, sessionID string) ([]models.IntegrityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.IntegrityEvent(nil), s.events[sessionID]...), nil
}

func (s *fakeStore) HasReport(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reports[sessionID]
	return ok, nil
}

func (s *fakeStore) CreateReportIfAbsent(ctx context.Context, report *models.InterviewReport) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[report.SessionID]; ok {
		return false, nil
	}
	s.reports[report.SessionID] = report
	return true, nil
}

func (s *fakeStore) MarkCandidateScored(ctx context.Context, candidateID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateScores[candidateID] = score
	return nil
}

// fakeAgent emits parts then an optional error, in the same order the real
// streaming client does.
type fakeAgent struct {
	parts []string
	err   error
}

func (a *fakeAgent) StreamReply(ctx context.Context, instruction string, history []models.TranscriptTurn, message string) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		for _, part := range a.parts {
			chunks <- part
		}
		if a.err != nil {
			errs <- a.err
		}
	}()
	return chunks, errs
}

func (a *fakeAgent) Score(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not implemented")
}

type recordingEmitter struct {
	chunks   []string
	done     []TurnDone
	fails    []string
	chunkErr error
}

func (e *recordingEmitter) Chunk(text string) error {
	if e.chunkErr != nil {
		return e.chunkErr
	}
	e.chunks = append(e.chunks, text)
	return nil
}

func (e *recordingEmitter) Done(done TurnDone) error {
	e.done = append(e.done, done)
	return nil
}

func (e *recordingEmitter) Fail(message string) {
	e.fails = append(e.fails, message)
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (s *fakeScheduler) Schedule(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, sessionID)
}

func newTestSession(status models.SessionStatus) *models.InterviewSession {
	return &models.InterviewSession{
		ID:             "session-1",
		CandidateID:    "candidate-1",
		RecruiterID:    "recruiter-1",
		InterviewType:  models.TypeTechnical,
		Status:         status,
		TokenExpiresAt: time.Now().Add(time.Hour),
		QuestionBudget: 8,
		Candidate: models.Candidate{
			ID:       "candidate-1",
			FullName: "Ada Example",
			Email:    "ada@example.com",
		},
	}
}

func TestStartAppendsOpeningTurn(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusPending)
	store.sessions[session.ID] = session

	agent := &fakeAgent{parts: []string{"Hello, ", "let's begin."}}
	emitter := &recordingEmitter{}
	controller := NewTurnController(store, agent, &fakeScheduler{}, nil)

	err := controller.HandleTurn(context.Background(), cloneSession(session), TurnRequest{Action: ActionStart}, emitter)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if store.sessions[session.ID].Status != models.StatusInProgress {
		t.Errorf("session status = %s, want in_progress", store.sessions[session.ID].Status)
	}

	turns := store.turns[session.ID]
	if len(turns) != 1 {
		t.Fatalf("persisted turns = %d, want 1", len(turns))
	}
	if turns[0].Speaker != models.SpeakerInterviewer {
		t.Errorf("turn speaker = %s, want interviewer", turns[0].Speaker)
	}
	if turns[0].Content != "Hello, let's begin." {
		t.Errorf("turn content = %q", turns[0].Content)
	}
	if turns[0].TurnOrder != 1 {
		t.Errorf("turn order = %d, want 1", turns[0].TurnOrder)
	}

	if len(emitter.chunks) != 2 {
		t.Errorf("emitted chunks = %d, want 2", len(emitter.chunks))
	}
	if len(emitter.done) != 1 || emitter.done[0].QuestionCount != 0 {
		t.Errorf("done events = %+v, want one with question_count 0", emitter.done)
	}
}

func TestStartRejectsNonPendingStates(t *testing.T) {
	tests := []struct {
		name    string
		status  models.SessionStatus
		wantErr error
	}{
		{"already in progress", models.StatusInProgress, ErrAlreadyStarted},
		{"completed", models.StatusCompleted, nil},
		{"cancelled", models.StatusCancelled, nil},
		{"expired", models.StatusExpired, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			session := newTestSession(tt.status)
			store.sessions[session.ID] = session

			controller := NewTurnController(store, &fakeAgent{parts: []string{"hi"}}, &fakeScheduler{}, nil)
			err := controller.HandleTurn(context.Background(), cloneSession(session), TurnRequest{Action: ActionStart}, &recordingEmitter{})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var closed *SessionClosedError
			if !errors.As(err, &closed) {
				t.Fatalf("error = %v, want SessionClosedError", err)
			}
			if closed.Status != tt.status {
				t.Errorf("closed status = %s, want %s", closed.Status, tt.status)
			}
		})
	}
}

func TestRespondAppendsAtomicPair(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusInProgress)
	store.sessions[session.ID] = session
	store.turns[session.ID] = []models.TranscriptTurn{
		{SessionID: session.ID, TurnOrder: 1, Speaker: models.SpeakerInterviewer, Content: "Tell me about yourself."},
	}

	agent := &fakeAgent{parts: []string{"Interesting. ", "What about Go?"}}
	emitter := &recordingEmitter{}
	controller := NewTurnController(store, agent, &fakeScheduler{}, nil)

	req := TurnRequest{Action: ActionRespond, Message: "I build backend services."}
	if err := controller.HandleTurn(context.Background(), cloneSession(session), req, emitter); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	turns := store.turns[session.ID]
	if len(turns) != 3 {
		t.Fatalf("persisted turns = %d, want 3", len(turns))
	}
	if turns[1].Speaker != models.SpeakerCandidate || turns[1].Content != "I build backend services." {
		t.Errorf("candidate turn = %+v", turns[1])
	}
	if turns[2].Speaker != models.SpeakerInterviewer || turns[2].Content != "Interesting. What about Go?" {
		t.Errorf("interviewer turn = %+v", turns[2])
	}
	if turns[1].TurnOrder != 2 || turns[2].TurnOrder != 3 {
		t.Errorf("turn orders = %d, %d, want 2, 3", turns[1].TurnOrder, turns[2].TurnOrder)
	}

	if len(emitter.done) != 1 {
		t.Fatalf("done events = %d, want 1", len(emitter.done))
	}
	if emitter.done[0].QuestionCount != 1 {
		t.Errorf("question count = %d, want 1", emitter.done[0].QuestionCount)
	}
}

func TestRespondStreamFailureLeavesTranscriptUntouched(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusInProgress)
	store.sessions[session.ID] = session
	store.turns[session.ID] = []models.TranscriptTurn{
		{SessionID: session.ID, TurnOrder: 1, Speaker: models.SpeakerInterviewer, Content: "First question?"},
	}

	agent := &fakeAgent{parts: []string{"partial "}, err: errors.New("upstream reset")}
	emitter := &recordingEmitter{}
	controller := NewTurnController(store, agent, &fakeScheduler{}, nil)

	req := TurnRequest{Action: ActionRespond, Message: "my answer"}
	if err := controller.HandleTurn(context.Background(), cloneSession(session), req, emitter); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if len(store.turns[session.ID]) != 1 {
		t.Errorf("persisted turns = %d, want 1 (no partial persistence)", len(store.turns[session.ID]))
	}
	if len(emitter.fails) != 1 {
		t.Fatalf("fail events = %d, want 1", len(emitter.fails))
	}
	if len(emitter.done) != 0 {
		t.Errorf("done events = %d, want 0", len(emitter.done))
	}
}

func TestRespondAbortedByCallerPersistsNothing(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusInProgress)
	store.sessions[session.ID] = session

	agent := &fakeAgent{parts: []string{"one", "two"}}
	emitter := &recordingEmitter{chunkErr: errors.New("client gone")}
	controller := NewTurnController(store, agent, &fakeScheduler{}, nil)

	req := TurnRequest{Action: ActionRespond, Message: "hello"}
	if err := controller.HandleTurn(context.Background(), cloneSession(session), req, emitter); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if len(store.turns[session.ID]) != 0 {
		t.Errorf("persisted turns = %d, want 0", len(store.turns[session.ID]))
	}
	if len(emitter.done) != 0 || len(emitter.fails) != 0 {
		t.Errorf("unexpected terminal events: done=%d fails=%d", len(emitter.done), len(emitter.fails))
	}
}

func TestRespondRequiresInProgress(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusPending)
	store.sessions[session.ID] = session

	controller := NewTurnController(store, &fakeAgent{}, &fakeScheduler{}, nil)
	err := controller.HandleTurn(context.Background(), cloneSession(session), TurnRequest{Action: ActionRespond, Message: "hi"}, &recordingEmitter{})
	if !errors.Is(err, ErrNotStarted) {
		t.Errorf("error = %v, want ErrNotStarted", err)
	}
}

func TestEndCompletesAndSchedulesReport(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(models.StatusInProgress)
	store.sessions[session.ID] = session

	// Seven full exchanges: interviewer then candidate, alternating.
	var turns []models.TranscriptTurn
	for i := 0; i < 7; i++ {
		turns = append(turns,
			models.TranscriptTurn{SessionID: session.ID, TurnOrder: len(turns) + 1, Speaker: models.SpeakerInterviewer, Content: "question"},
			models.TranscriptTurn{SessionID: session.ID, TurnOrder: len(turns) + 2, Speaker: models.SpeakerCandidate, Content: "answer"},
		)
	}
	store.turns[session.ID] = turns

	scheduler := &fakeScheduler{}
	emitter := &recordingEmitter{}
	controller := NewTurnController(store, &fakeAgent{}, scheduler, nil)

	req := TurnRequest{
		Action: ActionEnd,
		IntegrityEvents: []IntegrityEventInput{
			{Kind: "tab_switch", OccurredAt: time.Now().UnixMilli()},
			{Kind: "made_up_kind"},
		},
	}
	if err := controller.HandleTurn(context.Background(), cloneSession(session), req, emitter); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if store.sessions[session.ID].Status != models.StatusCompleted {
		t.Errorf("session status = %s, want completed", store.sessions[session.ID].Status)
	}

	persisted := store.turns[session.ID]
	if len(persisted) != 15 {
		t.Fatalf("persisted turns = %d, want 15", len(persisted))
	}
	last := persisted[len(persisted)-1]
	if last.Speaker != models.SpeakerInterviewer {
		t.Errorf("closing turn speaker = %s, want interviewer", last.Speaker)
	}

	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != session.ID {
		t.Errorf("scheduled = %v, want [%s]", scheduler.scheduled, session.ID)
	}

	// The made-up kind must be dropped at ingress.
	if len(store.events[session.ID]) != 1 {
		t.Errorf("integrity events = %d, want 1", len(store.events[session.ID]))
	}

	if len(emitter.done) != 1 {
		t.Fatalf("done events = %d, want 1", len(emitter.done))
	}
	if emitter.done[0].Status != models.StatusCompleted {
		t.Errorf("done status = %s, want completed", emitter.done[0].Status)
	}
	if emitter.done[0].QuestionCount != 7 {
		t.Errorf("question count = %d, want 7", emitter.done[0].QuestionCount)
	}
}

func TestEndRejectsTerminalStates(t *testing.T) {
	for _, status := range []models.SessionStatus{models.StatusCompleted, models.StatusCancelled, models.StatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			store := newFakeStore()
			session := newTestSession(status)
			store.sessions[session.ID] = session

			controller := NewTurnController(store, &fakeAgent{}, &fakeScheduler{}, nil)
			err := controller.HandleTurn(context.Background(), cloneSession(session), TurnRequest{Action: ActionEnd}, &recordingEmitter{})

			var closed *SessionClosedError
			if !errors.As(err, &closed) {
				t.Fatalf("error = %v, want SessionClosedError", err)
			}
		})
	}
}

// cloneSession returns a detached copy so handlers can mutate their view of the session
// the way the HTTP layer's per-request loads do.
func cloneSession(session *models.InterviewSession) *models.InterviewSession {
	copied := *session
	return &copied
}
