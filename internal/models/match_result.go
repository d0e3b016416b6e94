package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchResult is the persisted outcome of scoring one job against one resume.
// The composite unique index keeps a single row per pairing; recomputation
// updates the row in place.
type MatchResult struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobID                uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair" json:"job_id"`
	ResumeID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair" json:"resume_id"`
	OverallScore         float64   `gorm:"not null;index" json:"overall_score"`
	SimilarityScore      float64   `gorm:"not null" json:"similarity_score"`
	SkillMatchPercentage float64   `gorm:"not null" json:"skill_match_percentage"`
	Confidence           float64   `gorm:"not null" json:"confidence"`
	MatchedSkills        []string  `gorm:"serializer:json" json:"matched_skills"`
	MissingSkills        []string  `gorm:"serializer:json" json:"missing_skills"`
	AdditionalSkills     []string  `gorm:"serializer:json" json:"additional_skills"`
	Explanation          string    `gorm:"type:text" json:"explanation"`
	FallbackUsed         bool      `gorm:"not null;default:false" json:"fallback_used"`
	CreatedAt            time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MatchResult) TableName() string {
	return "match_results"
}
