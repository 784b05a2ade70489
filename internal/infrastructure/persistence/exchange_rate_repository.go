package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
)

// GormExchangeRateRepository implements ExchangeRateRepository using GORM
type GormExchangeRateRepository struct {
	db *gorm.DB
}

// NewGormExchangeRateRepository creates a new GormExchangeRateRepository
func NewGormExchangeRateRepository(db *gorm.DB) *GormExchangeRateRepository {
	return &GormExchangeRateRepository{db: db}
}

// Save inserts a fetched rate. History is kept; Latest picks the newest.
func (r *GormExchangeRateRepository) Save(ctx context.Context, rate *integration.ExchangeRate) error {
	return r.db.WithContext(ctx).Create(models.ExchangeRateModelFromDomain(rate)).Error
}

// Latest returns the most recently fetched rate for the currency pair
func (r *GormExchangeRateRepository) Latest(ctx context.Context, base, quote string) (*integration.ExchangeRate, error) {
	var model models.ExchangeRateModel
	if err := r.db.WithContext(ctx).
		Where("base = ? AND quote = ?", base, quote).
		Order("fetched_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", integration.ErrExchangeRateNotFound, base, quote)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
