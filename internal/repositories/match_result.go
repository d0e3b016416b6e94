package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/models"
)

type MatchResultRepository interface {
	Upsert(result *models.MatchResult) error
	UpsertBatch(results []models.MatchResult) error
	FindPair(jobID, resumeID uuid.UUID) (*models.MatchResult, error)
	FindByJobID(jobID uuid.UUID) ([]models.MatchResult, error)
	DeleteByJobID(jobID uuid.UUID) error
}

type matchResultRepository struct {
	db *gorm.DB
}

func NewMatchResultRepository(db *gorm.DB) MatchResultRepository {
	return &matchResultRepository{db: db}
}

// upsertColumns are the fields refreshed when a pairing is scored again.
var upsertColumns = []string{
	"overall_score", "similarity_score", "skill_match_percentage",
	"confidence", "matched_skills", "missing_skills", "additional_skills",
	"explanation", "fallback_used", "updated_at",
}

func (r *matchResultRepository) Upsert(result *models.MatchResult) error {
	result.UpdatedAt = time.Now()
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "resume_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(result).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindDatabase, "failed to upsert match result", err)
	}
	return nil
}

func (r *matchResultRepository) UpsertBatch(results []models.MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	now := time.Now()
	for i := range results {
		results[i].UpdatedAt = now
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "resume_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&results).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindDatabase, "failed to upsert match results", err)
	}
	return nil
}

func (r *matchResultRepository) FindPair(jobID, resumeID uuid.UUID) (*models.MatchResult, error) {
	var match models.MatchResult
	err := r.db.
		Where("job_id = ? AND resume_id = ?", jobID, resumeID).
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindResourceNotFound, "match result not found").
				With("resource_type", "match_result").
				With("job_id", jobID.String()).
				With("resume_id", resumeID.String())
		}
		return nil, apperrors.Wrap(apperrors.KindDatabase, "failed to find match result", err)
	}
	return &match, nil
}

func (r *matchResultRepository) FindByJobID(jobID uuid.UUID) ([]models.MatchResult, error) {
	var matches []models.MatchResult
	err := r.db.
		Where("job_id = ?", jobID).
		Order("overall_score DESC").
		Find(&matches).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDatabase, "failed to list match results", err)
	}
	return matches, nil
}

func (r *matchResultRepository) DeleteByJobID(jobID uuid.UUID) error {
	err := r.db.Where("job_id = ?", jobID).Delete(&models.MatchResult{}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindDatabase, "failed to delete match results", err)
	}
	return nil
}
