package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of an interview session. Transitions only
// move forward: pending -> in_progress -> completed, with cancelled and expired
// as terminal alternates reachable from the two non-terminal states.
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
	StatusExpired    SessionStatus = "expired"
)

// Terminal reports whether no further transitions exist out of the state.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// InterviewType selects the question style and the instructions sent to the
// interviewer agent.
type InterviewType string

const (
	TypeTechnical    InterviewType = "technical"
	TypeBehavioral   InterviewType = "behavioral"
	TypeDomainExpert InterviewType = "domain_expert"
	TypeLanguage     InterviewType = "language"
	TypeCaseStudy    InterviewType = "case_study"
)

// ValidInterviewType reports whether t is one of the supported interview types.
func ValidInterviewType(t InterviewType) bool {
	switch t {
	case TypeTechnical, TypeBehavioral, TypeDomainExpert, TypeLanguage, TypeCaseStudy:
		return true
	}
	return false
}

// Speaker identifies which side of the conversation produced a transcript turn.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// InterviewSession records one scheduled interview attempt, linking a candidate
// and the recruiter who scheduled it. The access token hash and expiry gate
// anonymous candidate access and are independent of the lifecycle state.
type InterviewSession struct {
	ID            string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CandidateID   string        `gorm:"type:uuid;not null;index" json:"candidate_id"`
	RecruiterID   string        `gorm:"type:uuid;not null;index" json:"recruiter_id"`
	InterviewType InterviewType `gorm:"size:50;not null;check:interview_type IN ('technical', 'behavioral', 'domain_expert', 'language', 'case_study')" json:"interview_type"`
	Status        SessionStatus `gorm:"size:50;not null;default:'pending';check:status IN ('pending', 'in_progress', 'completed', 'cancelled', 'expired')" json:"status"`

	// AccessTokenHash is the SHA256 hex of the invitation bearer token. The raw
	// token is returned once at scheduling time and never stored.
	AccessTokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	TokenExpiresAt  time.Time `gorm:"not null" json:"token_expires_at"`

	QuestionBudget int      `gorm:"not null;default:8" json:"question_budget"`
	OverallScore   *float64 `gorm:"type:decimal(5,2)" json:"overall_score,omitempty"`

	// ReportError holds the last background report generation failure, cleared
	// on success. Operator-visible signal only; generation is never retried
	// automatically.
	ReportError string `gorm:"type:text" json:"report_error,omitempty"`

	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Candidate       Candidate        `gorm:"foreignKey:CandidateID" json:"candidate,omitempty"`
	Recruiter       User             `gorm:"foreignKey:RecruiterID" json:"-"`
	Turns           []TranscriptTurn `gorm:"foreignKey:SessionID" json:"turns,omitempty"`
	IntegrityEvents []IntegrityEvent `gorm:"foreignKey:SessionID" json:"integrity_events,omitempty"`
	Report          *InterviewReport `gorm:"foreignKey:SessionID" json:"report,omitempty"`
}

// TranscriptTurn stores one side of one exchange. Turns are append-only while a
// session is active and ordered by TurnOrder.
type TranscriptTurn struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string         `gorm:"type:uuid;not null;index" json:"session_id"`
	TurnOrder int            `gorm:"not null" json:"turn_order"`
	Speaker   Speaker        `gorm:"size:50;not null;check:speaker IN ('interviewer', 'candidate')" json:"speaker"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	SpokenAt  time.Time      `gorm:"not null" json:"spoken_at"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IntegrityEventKind is the closed set of proctoring signals a candidate client
// may report. Unrecognized kinds are rejected at ingress.
type IntegrityEventKind string

const (
	KindTabSwitch      IntegrityEventKind = "tab_switch"
	KindFocusLoss      IntegrityEventKind = "focus_loss"
	KindPaste          IntegrityEventKind = "paste"
	KindCopy           IntegrityEventKind = "copy"
	KindRightClick     IntegrityEventKind = "right_click"
	KindDevtools       IntegrityEventKind = "devtools"
	KindFullscreenExit IntegrityEventKind = "fullscreen_exit"
	KindWebcamLost     IntegrityEventKind = "webcam_lost"
	KindWebcamDenied   IntegrityEventKind = "webcam_denied"
)

// ValidIntegrityEventKind reports whether k belongs to the closed kind set.
func ValidIntegrityEventKind(k IntegrityEventKind) bool {
	switch k {
	case KindTabSwitch, KindFocusLoss, KindPaste, KindCopy, KindRightClick,
		KindDevtools, KindFullscreenExit, KindWebcamLost, KindWebcamDenied:
		return true
	}
	return false
}

// IntegrityEvent is a client-observed proctoring signal persisted once at
// session end. No scoring judgment is made here; interpretation happens in the
// report pipeline.
type IntegrityEvent struct {
	ID          string             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID   string             `gorm:"type:uuid;not null;index" json:"session_id"`
	Kind        IntegrityEventKind `gorm:"size:50;not null" json:"kind"`
	Description string             `gorm:"type:text" json:"description,omitempty"`
	OccurredAt  time.Time          `gorm:"not null" json:"occurred_at"`
	CreatedAt   time.Time          `json:"created_at"`
	DeletedAt   gorm.DeletedAt     `gorm:"index" json:"-"`
}

// QuestionCount derives interview progress from the transcript alone: the
// number of adjacent (candidate, interviewer) turn pairs. Nothing is stored, so
// fresh and resumed sessions always agree.
func QuestionCount(turns []TranscriptTurn) int {
	count := 0
	for i := 1; i < len(turns); i++ {
		if turns[i-1].Speaker == SpeakerCandidate && turns[i].Speaker == SpeakerInterviewer {
			count++
		}
	}
	return count
}

// DefaultQuestionBudget returns the turn budget used when scheduling does not
// override it.
func DefaultQuestionBudget(t InterviewType) int {
	switch t {
	case TypeCaseStudy:
		return 5
	case TypeLanguage:
		return 10
	default:
		return 8
	}
}
