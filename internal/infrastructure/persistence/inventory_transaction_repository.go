package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
)

// GormInventoryTransactionRepository implements InventoryTransactionRepository using GORM.
// Rows are only ever inserted.
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new GormInventoryTransactionRepository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// Append inserts a transaction record
func (r *GormInventoryTransactionRepository) Append(ctx context.Context, tx *integration.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(models.InventoryTransactionModelFromDomain(tx)).Error
}

// ListBySKU returns a newest-first page of a SKU's history and its total count
func (r *GormInventoryTransactionRepository) ListBySKU(ctx context.Context, sku string, page, pageSize int) ([]integration.InventoryTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryTransactionModel{}).Where("sku = ?", sku)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	var txModels []models.InventoryTransactionModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txModels).Error; err != nil {
		return nil, 0, err
	}

	txs := make([]integration.InventoryTransaction, len(txModels))
	for i, model := range txModels {
		txs[i] = *model.ToDomain()
	}
	return txs, total, nil
}
