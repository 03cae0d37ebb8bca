package models

import (
	"time"

	"gorm.io/gorm"
)

// Recommendation is the five-value hiring recommendation scale.
type Recommendation string

const (
	RecommendStrongYes Recommendation = "strong_yes"
	RecommendYes       Recommendation = "yes"
	RecommendMaybe     Recommendation = "maybe"
	RecommendNo        Recommendation = "no"
	RecommendStrongNo  Recommendation = "strong_no"
)

// ParseRecommendation validates a scoring-agent value against the closed set,
// defaulting to the middle value when the agent returns something unrecognized.
func ParseRecommendation(v string) Recommendation {
	switch Recommendation(v) {
	case RecommendStrongYes, RecommendYes, RecommendMaybe, RecommendNo, RecommendStrongNo:
		return Recommendation(v)
	}
	return RecommendMaybe
}

// InterviewReport is the scored assessment of one completed session. Exactly
// one report may exist per session; it is written once by the report pipeline
// and never updated.
type InterviewReport struct {
	ID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`

	// Normalized dimension scores, 0-100.
	DomainExpertise float64 `gorm:"type:decimal(5,2);not null" json:"domain_expertise"`
	Clarity         float64 `gorm:"type:decimal(5,2);not null" json:"clarity"`
	ProblemSolving  float64 `gorm:"type:decimal(5,2);not null" json:"problem_solving"`
	Communication   float64 `gorm:"type:decimal(5,2);not null" json:"communication"`
	Impact          float64 `gorm:"type:decimal(5,2);not null" json:"impact"`
	OverallScore    float64 `gorm:"type:decimal(5,2);not null" json:"overall_score"`

	Summary        string   `gorm:"type:text;not null" json:"summary"`
	Strengths      []string `gorm:"serializer:json" json:"strengths"`
	AreasToImprove []string `gorm:"serializer:json" json:"areas_to_improve"`

	Recommendation Recommendation `gorm:"size:50;not null;check:recommendation IN ('strong_yes', 'yes', 'maybe', 'no', 'strong_no')" json:"recommendation"`

	// HiringAdvice is recruiter-only; candidate-facing shapes must never carry it.
	HiringAdvice string `gorm:"type:text" json:"hiring_advice,omitempty"`

	IntegrityScore *float64 `gorm:"type:decimal(5,2)" json:"integrity_score,omitempty"`
	IntegrityFlags []string `gorm:"serializer:json" json:"integrity_flags,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Skills []SkillRating `gorm:"foreignKey:ReportID" json:"skills,omitempty"`
}

// SkillCategory separates named technical ratings from soft-skill ratings.
type SkillCategory string

const (
	SkillTechnical SkillCategory = "technical"
	SkillSoft      SkillCategory = "soft"
)

// SkillRating is one named 0-10 rating attached to a report. Evidence text is
// only present for technical skills.
type SkillRating struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ReportID  string         `gorm:"type:uuid;not null;index" json:"report_id"`
	Category  SkillCategory  `gorm:"size:50;not null;check:category IN ('technical', 'soft')" json:"category"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Rating    float64        `gorm:"type:decimal(4,2);not null" json:"rating"`
	Evidence  string         `gorm:"type:text" json:"evidence,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
