package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/models"
)

// ResumeRepository covers the resume lookups and write-backs the matching
// pipeline needs. Resume ingestion happens outside this service.
type ResumeRepository interface {
	FindByID(id uuid.UUID) (*models.Resume, error)
	FindByIDs(ids []uuid.UUID) ([]models.Resume, error)
	FindProcessed(limit int) ([]models.Resume, error)
	FindWithoutEmbedding(limit int) ([]models.Resume, error)
	UpdateEmbedding(id uuid.UUID, embedding []float32) error
	UpdateSkills(id uuid.UUID, skills []string) error
}

type resumeRepository struct {
	db *gorm.DB
}

func NewResumeRepository(db *gorm.DB) ResumeRepository {
	return &resumeRepository{db: db}
}

func (r *resumeRepository) FindByID(id uuid.UUID) (*models.Resume, error) {
	var resume models.Resume
	if err := r.db.Where("id = ?", id).First(&resume).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindResourceNotFound, "resume not found").
				With("resource_type", "resume").
				With("resource_id", id.String())
		}
		return nil, apperrors.Wrap(apperrors.KindDatabase, "failed to find resume", err)
	}
	return &resume, nil
}

func (r *resumeRepository) FindByIDs(ids []uuid.UUID) ([]models.Resume, error) {
	var resumes []models.Resume
	if err := r.db.Where("id IN ?", ids).Find(&resumes).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.KindDatabase, "failed to find resumes", err)
	}
	return resumes, nil
}

func (r *resumeRepository) FindProcessed(limit int) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.
		Where("is_processed = ?", true).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&resumes).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDatabase, "failed to list processed resumes", err)
	}
	return resumes, nil
}

// FindWithoutEmbedding returns resumes whose stored vector is still missing,
// oldest first so the backfill worker drains the backlog in upload order.
func (r *resumeRepository) FindWithoutEmbedding(limit int) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.
		Where("embedding IS NULL OR embedding = ?", "null").
		Order("uploaded_at ASC").
		Limit(limit).
		Find(&resumes).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDatabase, "failed to list resumes without embedding", err)
	}
	return resumes, nil
}

func (r *resumeRepository) UpdateEmbedding(id uuid.UUID, embedding []float32) error {
	now := time.Now()
	// Struct-based update so the JSON serializer runs on the vector column.
	result := r.db.Model(&models.Resume{}).
		Where("id = ?", id).
		Select("embedding", "is_processed", "processed_at").
		Updates(&models.Resume{Embedding: embedding, IsProcessed: true, ProcessedAt: &now})

	if result.Error != nil {
		return apperrors.Wrap(apperrors.KindDatabase, "failed to update resume embedding", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.KindResourceNotFound, "resume not found").
			With("resource_type", "resume").
			With("resource_id", id.String())
	}
	return nil
}

func (r *resumeRepository) UpdateSkills(id uuid.UUID, skills []string) error {
	result := r.db.Model(&models.Resume{}).
		Where("id = ?", id).
		Select("extracted_skills").
		Updates(&models.Resume{ExtractedSkills: skills})

	if result.Error != nil {
		return apperrors.Wrap(apperrors.KindDatabase, "failed to update resume skills", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.KindResourceNotFound, "resume not found").
			With("resource_type", "resume").
			With("resource_id", id.String())
	}
	return nil
}
