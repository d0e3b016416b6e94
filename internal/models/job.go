package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title          string    `gorm:"type:text;not null" json:"title"`
	Company        string    `gorm:"type:text" json:"company"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Requirements   string    `gorm:"type:text" json:"requirements"`
	SkillsRequired []string  `gorm:"serializer:json" json:"skills_required,omitempty"`
	Embedding      []float32 `gorm:"serializer:json" json:"-"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// EmbeddingText combines the fields that describe what the position needs
// into the single document the embedding model sees.
func (j *Job) EmbeddingText() string {
	parts := []string{j.Title, j.Description, j.Requirements}
	if len(j.SkillsRequired) > 0 {
		parts = append(parts, strings.Join(j.SkillsRequired, " "))
	}
	return strings.Join(parts, " ")
}

// HasEmbedding reports whether a non-empty stored vector exists.
func (j *Job) HasEmbedding() bool {
	return len(j.Embedding) > 0
}
