package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/talentwire/talentwire/models"
)

// TurnAction selects what a turn request does.
type TurnAction string

const (
	ActionStart   TurnAction = "start"
	ActionRespond TurnAction = "respond"
	ActionEnd     TurnAction = "end"
)

// TurnRequest is the candidate client's payload for one conversational turn.
type TurnRequest struct {
	Action          TurnAction            `json:"action" validate:"required,oneof=start respond end"`
	Message         string                `json:"message,omitempty"`
	IntegrityEvents []IntegrityEventInput `json:"integrity_events,omitempty"`
}

// TurnDone is the terminal event of a successful turn stream.
type TurnDone struct {
	Status         models.SessionStatus `json:"status"`
	QuestionCount  int                  `json:"question_count"`
	QuestionBudget int                  `json:"question_budget"`
}

// TurnEmitter receives the turn's output stream. The SSE handler adapts it to
// the wire; tests substitute a recorder.
type TurnEmitter interface {
	Chunk(text string) error
	Done(done TurnDone) error
	Fail(message string)
}

// ReportScheduler schedules background report generation for a session.
type ReportScheduler interface {
	Schedule(sessionID string)
}

// TurnPublisher fans completed turns out to live observers. Optional.
type TurnPublisher interface {
	PublishTurn(sessionID string, speaker models.Speaker, content string, questionCount int)
	PublishStatus(sessionID string, status models.SessionStatus)
}

// TurnController drives one request/response exchange with the reasoning
// agent. All session state round-trips through the store on every turn; no
// in-memory session object survives between requests.
type TurnController struct {
	store     Store
	agent     ReasoningAgent
	reports   ReportScheduler
	publisher TurnPublisher
	now       func() time.Time
}

func NewTurnController(store Store, agent ReasoningAgent, reports ReportScheduler, publisher TurnPublisher) *TurnController {
	return &TurnController{
		store:     store,
		agent:     agent,
		reports:   reports,
		publisher: publisher,
		now:       time.Now,
	}
}

// HandleTurn executes one turn. Errors returned here occur before any stream
// output and map to HTTP statuses; once streaming has begun, failures are
// reported through the emitter as a terminal error event instead.
func (c *TurnController) HandleTurn(ctx context.Context, session *models.InterviewSession, req TurnRequest, emitter TurnEmitter) error {
	switch req.Action {
	case ActionStart:
		return c.start(ctx, session, emitter)
	case ActionRespond:
		return c.respond(ctx, session, req.Message, emitter)
	case ActionEnd:
		return c.end(ctx, session, req.IntegrityEvents, emitter)
	default:
		return &SessionClosedError{Status: session.Status}
	}
}

// start transitions pending -> in_progress and asks the agent to open the
// interview. The synthetic begin instruction is never persisted.
func (c *TurnController) start(ctx context.Context, session *models.InterviewSession, emitter TurnEmitter) error {
	if session.Status != models.StatusPending {
		if session.Status.Terminal() {
			return &SessionClosedError{Status: session.Status}
		}
		return ErrAlreadyStarted
	}

	started, err := c.store.StartSession(ctx, session.ID, c.now())
	if err != nil {
		return err
	}
	if !started {
		return ErrAlreadyStarted
	}
	session.Status = models.StatusInProgress
	slog.Info("Interview started", "session_id", session.ID)

	if c.publisher != nil {
		c.publisher.PublishStatus(session.ID, models.StatusInProgress)
	}

	return c.exchange(ctx, session, nil, beginInstruction, "", emitter)
}

// respond appends the candidate's message and the agent's full reply as one
// atomic exchange. Nothing is persisted until the reply has fully arrived, so
// an aborted stream leaves the transcript exactly as it was.
func (c *TurnController) respond(ctx context.Context, session *models.InterviewSession, message string, emitter TurnEmitter) error {
	if session.Status != models.StatusInProgress {
		if session.Status.Terminal() {
			return &SessionClosedError{Status: session.Status}
		}
		return ErrNotStarted
	}

	turns, err := c.store.GetTurns(ctx, session.ID)
	if err != nil {
		return err
	}

	return c.exchange(ctx, session, turns, message, strings.TrimSpace(message), emitter)
}

// exchange streams the agent's reply, then persists candidateTurn (when
// non-empty) and the interviewer reply in transcript order.
func (c *TurnController) exchange(ctx context.Context, session *models.InterviewSession, turns []models.TranscriptTurn, agentMessage, candidateTurn string, emitter TurnEmitter) error {
	instruction := buildInterviewInstruction(session, &session.Candidate)

	chunks, errs := c.agent.StreamReply(ctx, instruction, turns, agentMessage)

	var reply strings.Builder
	for chunk := range chunks {
		reply.WriteString(chunk)
		if err := emitter.Chunk(chunk); err != nil {
			// Caller went away; the agent stream is cancelled via ctx and the
			// transcript stays untouched.
			slog.Warn("Turn stream aborted by caller", "session_id", session.ID, "error", err)
			return nil
		}
	}
	select {
	case err := <-errs:
		slog.Error("Reasoning agent stream failed", "error", err, "session_id", session.ID)
		emitter.Fail("connection error, please retry")
		return nil
	default:
	}

	replyText := strings.TrimSpace(reply.String())
	if replyText == "" {
		emitter.Fail("connection error, please retry")
		return nil
	}

	now := c.now()
	nextOrder := len(turns) + 1
	var appended []*models.TranscriptTurn
	if candidateTurn != "" {
		appended = append(appended, &models.TranscriptTurn{
			SessionID: session.ID,
			TurnOrder: nextOrder,
			Speaker:   models.SpeakerCandidate,
			Content:   candidateTurn,
			SpokenAt:  now,
		})
		nextOrder++
	}
	appended = append(appended, &models.TranscriptTurn{
		SessionID: session.ID,
		TurnOrder: nextOrder,
		Speaker:   models.SpeakerInterviewer,
		Content:   replyText,
		SpokenAt:  now,
	})

	if err := c.store.AppendTurns(ctx, appended); err != nil {
		emitter.Fail("connection error, please retry")
		return nil
	}

	final := turns
	for _, turn := range appended {
		final = append(final, *turn)
	}
	questionCount := models.QuestionCount(final)

	if c.publisher != nil {
		for _, turn := range appended {
			c.publisher.PublishTurn(session.ID, turn.Speaker, turn.Content, questionCount)
		}
	}

	return emitter.Done(TurnDone{
		Status:         session.Status,
		QuestionCount:  questionCount,
		QuestionBudget: session.QuestionBudget,
	})
}

// end completes the session without consulting the agent: transition first,
// then the closing turn and integrity events, then report scheduling. The
// caller gets the closing message and done immediately; scoring runs detached.
func (c *TurnController) end(ctx context.Context, session *models.InterviewSession, events []IntegrityEventInput, emitter TurnEmitter) error {
	if session.Status != models.StatusInProgress {
		if session.Status.Terminal() {
			return &SessionClosedError{Status: session.Status}
		}
		return ErrNotStarted
	}

	now := c.now()
	completed, err := c.store.CompleteSession(ctx, session.ID, now)
	if err != nil {
		return err
	}
	if !completed {
		// Lost the transition race; the session reached a terminal state first.
		return &SessionClosedError{Status: models.StatusCompleted}
	}
	session.Status = models.StatusCompleted
	slog.Info("Interview completed", "session_id", session.ID)

	turns, err := c.store.GetTurns(ctx, session.ID)
	if err != nil {
		return err
	}

	closing := &models.TranscriptTurn{
		SessionID: session.ID,
		TurnOrder: len(turns) + 1,
		Speaker:   models.SpeakerInterviewer,
		Content:   closingMessage,
		SpokenAt:  now,
	}
	if err := c.store.AppendTurns(ctx, []*models.TranscriptTurn{closing}); err != nil {
		return err
	}

	if parsed := parseIntegrityEvents(session.ID, events, now); len(parsed) > 0 {
		if err := c.store.AddIntegrityEvents(ctx, parsed); err != nil {
			slog.Error("Failed to store integrity events", "error", err, "session_id", session.ID)
		}
	}

	c.reports.Schedule(session.ID)

	questionCount := models.QuestionCount(append(turns, *closing))

	if c.publisher != nil {
		c.publisher.PublishTurn(session.ID, models.SpeakerInterviewer, closingMessage, questionCount)
		c.publisher.PublishStatus(session.ID, models.StatusCompleted)
	}

	if err := emitter.Chunk(closingMessage); err != nil {
		return nil
	}
	return emitter.Done(TurnDone{
		Status:         models.StatusCompleted,
		QuestionCount:  questionCount,
		QuestionBudget: session.QuestionBudget,
	})
}
