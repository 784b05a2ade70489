package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
)

// GormSyncJobRepository implements SyncJobRepository using GORM
type GormSyncJobRepository struct {
	db *gorm.DB
}

// NewGormSyncJobRepository creates a new GormSyncJobRepository
func NewGormSyncJobRepository(db *gorm.DB) *GormSyncJobRepository {
	return &GormSyncJobRepository{db: db}
}

// Save creates or updates a job record
func (r *GormSyncJobRepository) Save(ctx context.Context, job *integration.SyncJob) error {
	return r.db.WithContext(ctx).Save(models.SyncJobModelFromDomain(job)).Error
}

// FindByID finds a job by ID
func (r *GormSyncJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncJob, error) {
	var model models.SyncJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRecent returns the newest jobs, optionally restricted to one type
func (r *GormSyncJobRepository) ListRecent(ctx context.Context, jobType integration.JobType, limit int) ([]integration.SyncJob, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if jobType != "" {
		query = query.Where("type = ?", jobType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobModels []models.SyncJobModel
	if err := query.Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]integration.SyncJob, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return jobs, nil
}

// LastCompleted returns the latest started completed job of a type, or nil when none exists
func (r *GormSyncJobRepository) LastCompleted(ctx context.Context, jobType integration.JobType) (*integration.SyncJob, error) {
	var model models.SyncJobModel
	err := r.db.WithContext(ctx).
		Where("type = ? AND state = ? AND started_at IS NOT NULL", jobType, integration.JobStateCompleted).
		Order("started_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FailStale marks jobs created before the cutoff and still pending or running as failed
func (r *GormSyncJobRepository) FailStale(ctx context.Context, before time.Time, reason string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("state IN ? AND created_at < ?",
			[]integration.JobState{integration.JobStatePending, integration.JobStateRunning}, before).
		Updates(map[string]any{
			"state":       integration.JobStateFailed,
			"error":       reason,
			"finished_at": before,
		})
	return result.RowsAffected, result.Error
}
