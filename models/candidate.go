package models

import (
	"time"

	"gorm.io/gorm"
)

// Candidate holds the profile forwarded to the scoring agent. Interviewed and
// LatestScore are denormalized by the report pipeline when a report completes;
// everything else is plain record data.
type Candidate struct {
	ID              string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FullName        string  `gorm:"size:255;not null" json:"full_name"`
	Email           string  `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Title           string  `gorm:"size:255" json:"title,omitempty"`
	Company         string  `gorm:"size:255" json:"company,omitempty"`
	Skills          string  `gorm:"type:text" json:"skills,omitempty"`
	YearsExperience int     `json:"years_experience"`
	ResumeExcerpt   string  `gorm:"type:text" json:"resume_excerpt,omitempty"`

	Interviewed bool     `gorm:"not null;default:false" json:"interviewed"`
	LatestScore *float64 `gorm:"type:decimal(5,2)" json:"latest_score,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Sessions []InterviewSession `gorm:"foreignKey:CandidateID" json:"sessions,omitempty"`
}
