package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Resume struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CandidateName   string            `gorm:"type:text;not null" json:"candidate_name"`
	Email           string            `gorm:"type:text" json:"email,omitempty"`
	Content         string            `gorm:"type:text;not null" json:"content"`
	Sections        map[string]string `gorm:"serializer:json" json:"sections,omitempty"`
	ExtractedSkills []string          `gorm:"serializer:json" json:"extracted_skills,omitempty"`
	Embedding       []float32         `gorm:"serializer:json" json:"-"`
	IsProcessed     bool              `gorm:"not null;default:false" json:"is_processed"`
	UploadedAt      time.Time         `gorm:"default:CURRENT_TIMESTAMP" json:"uploaded_at"`
	ProcessedAt     *time.Time        `gorm:"type:timestamp" json:"processed_at,omitempty"`
}

func (Resume) TableName() string {
	return "resumes"
}

// EmbeddingText is the resume content plus any structured sections. Sections
// are appended in key order so the text is stable across calls.
func (r *Resume) EmbeddingText() string {
	if len(r.Sections) == 0 {
		return r.Content
	}
	keys := make([]string, 0, len(r.Sections))
	for key := range r.Sections {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.Content)
	for _, key := range keys {
		if content := r.Sections[key]; content != "" {
			b.WriteString(" ")
			b.WriteString(content)
		}
	}
	return b.String()
}

func (r *Resume) HasEmbedding() bool {
	return len(r.Embedding) > 0
}
