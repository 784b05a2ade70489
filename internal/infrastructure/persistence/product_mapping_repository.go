package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/persistence/models"
)

// syncableStatuses are the lifecycle states background jobs may touch
var syncableStatuses = []integration.MappingStatus{
	integration.MappingStatusActive,
	integration.MappingStatusOutOfStock,
}

// GormProductMappingRepository implements ProductMappingRepository using GORM
type GormProductMappingRepository struct {
	db *gorm.DB
}

// NewGormProductMappingRepository creates a new GormProductMappingRepository
func NewGormProductMappingRepository(db *gorm.DB) *GormProductMappingRepository {
	return &GormProductMappingRepository{db: db}
}

// ---------------------------------------------------------------------------
// ProductMappingReader implementation
// ---------------------------------------------------------------------------

// FindBySKU finds the live mapping of a SKU
func (r *GormProductMappingRepository) FindBySKU(ctx context.Context, sku string) (*integration.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.live(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", integration.ErrMappingNotFound, sku)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive finds all live mappings in a syncable state with inventory sync enabled
func (r *GormProductMappingRepository) FindActive(ctx context.Context) ([]integration.ProductMapping, error) {
	var mappingModels []models.ProductMappingModel
	if err := r.live(ctx).
		Where("status IN ? AND sync_enabled = ?", syncableStatuses, true).
		Order("sku ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMappings(mappingModels), nil
}

// List returns a page of live mappings and the total count matching the filter
func (r *GormProductMappingRepository) List(ctx context.Context, filter integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error) {
	var total int64
	if err := r.applyFilter(r.live(ctx), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.applyFilter(r.live(ctx), filter).Order("created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var mappingModels []models.ProductMappingModel
	if err := query.Find(&mappingModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainMappings(mappingModels), total, nil
}

// ExistsBySKU checks if a live mapping exists for the SKU
func (r *GormProductMappingRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var count int64
	if err := r.live(ctx).Where("sku = ?", sku).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// ProductMappingWriter implementation
// ---------------------------------------------------------------------------

// Save creates or updates a mapping
func (r *GormProductMappingRepository) Save(ctx context.Context, mapping *integration.ProductMapping) error {
	model := models.ProductMappingModelFromDomain(mapping)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", integration.ErrMappingAlreadyExists, mapping.SKU)
		}
		return err
	}
	return nil
}

// SoftDelete marks the live mapping of a SKU as deleted and inactive
func (r *GormProductMappingRepository) SoftDelete(ctx context.Context, sku string) error {
	now := time.Now()
	result := r.live(ctx).
		Where("sku = ?", sku).
		Updates(map[string]any{
			"deleted_at": now,
			"status":     integration.MappingStatusInactive,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", integration.ErrMappingNotFound, sku)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Filter helpers
// ---------------------------------------------------------------------------

func (r *GormProductMappingRepository) live(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ProductMappingModel{}).Where("deleted_at IS NULL")
}

// applyFilter applies status and search filters without pagination
func (r *GormProductMappingRepository) applyFilter(query *gorm.DB, filter integration.ProductMappingFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	// Search in SKU and name (escape LIKE special characters)
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLikePattern(strings.ToLower(search)) + "%"
		query = query.Where(`LOWER(sku) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\'`, pattern, pattern)
	}
	return query
}

func toDomainMappings(mappingModels []models.ProductMappingModel) []integration.ProductMapping {
	mappings := make([]integration.ProductMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings
}

// escapeLikePattern escapes special characters in LIKE patterns
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
