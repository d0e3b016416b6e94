package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/models"
)

// JobRepository covers the job lookups the matching pipeline needs. Job
// ingestion happens outside this service, so there is no create path here.
type JobRepository interface {
	FindByID(id uuid.UUID) (*models.Job, error)
	UpdateEmbedding(id uuid.UUID, embedding []float32) error
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) FindByID(id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindResourceNotFound, "job not found").
				With("resource_type", "job").
				With("resource_id", id.String())
		}
		return nil, apperrors.Wrap(apperrors.KindDatabase, "failed to find job", err)
	}
	return &job, nil
}

func (r *jobRepository) UpdateEmbedding(id uuid.UUID, embedding []float32) error {
	// Struct-based update so the JSON serializer runs on the vector column.
	result := r.db.Model(&models.Job{}).
		Where("id = ?", id).
		Select("embedding", "updated_at").
		Updates(&models.Job{Embedding: embedding, UpdatedAt: time.Now()})

	if result.Error != nil {
		return apperrors.Wrap(apperrors.KindDatabase, "failed to update job embedding", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.KindResourceNotFound, "job not found").
			With("resource_type", "job").
			With("resource_id", id.String())
	}
	return nil
}
