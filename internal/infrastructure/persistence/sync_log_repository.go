package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append inserts an audit entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *integration.SyncLog) error {
	return r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(entry)).Error
}

// FindLowSeverityBefore returns at most limit debug/info entries older than before, oldest first
func (r *GormSyncLogRepository) FindLowSeverityBefore(ctx context.Context, before time.Time, limit int) ([]integration.SyncLog, error) {
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("severity IN ? AND created_at < ?", integration.LowSeverities, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	entries := make([]integration.SyncLog, len(logModels))
	for i, model := range logModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// DeleteByIDs removes entries by ID and returns the number deleted
func (r *GormSyncLogRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Delete(&models.SyncLogModel{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}
