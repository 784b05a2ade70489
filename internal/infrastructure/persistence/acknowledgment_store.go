package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storelink/backend/internal/infrastructure/persistence/models"
)

// GormAcknowledgmentStore implements shared.IdempotencyStore on the
// order_acknowledgments table so processed markers survive restarts.
type GormAcknowledgmentStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormAcknowledgmentStore creates a new GormAcknowledgmentStore
func NewGormAcknowledgmentStore(db *gorm.DB) *GormAcknowledgmentStore {
	return &GormAcknowledgmentStore{db: db, now: time.Now}
}

// MarkProcessed inserts the marker unless a live one exists.
// An expired marker is replaced and reported as new.
func (s *GormAcknowledgmentStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	if err := db.Where("ack_key = ? AND expires_at <= ?", key, now).
		Delete(&models.OrderAcknowledgmentModel{}).Error; err != nil {
		return false, err
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.OrderAcknowledgmentModel{
		Key:       key,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IsProcessed reports whether a live marker exists
func (s *GormAcknowledgmentStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.OrderAcknowledgmentModel{}).
		Where("ack_key = ? AND expires_at > ?", key, s.now()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeExpired deletes markers past their expiry
func (s *GormAcknowledgmentStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&models.OrderAcknowledgmentModel{})
	return result.RowsAffected, result.Error
}

// Close is a no-op; the connection pool belongs to Database
func (s *GormAcknowledgmentStore) Close() error {
	return nil
}
