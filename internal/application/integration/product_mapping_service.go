package integration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// ProductMappingService manages SKU mappings and their discovery on the platforms
type ProductMappingService struct {
	reconciler *InventoryReconciler
	logger     *zap.Logger
}

// NewProductMappingService creates the service. Writes share the reconciler's per-SKU lock.
func NewProductMappingService(reconciler *InventoryReconciler) *ProductMappingService {
	return &ProductMappingService{reconciler: reconciler, logger: reconciler.logger}
}

// CreateMapping creates a mapping. It becomes active when every platform has a reference.
func (s *ProductMappingService) CreateMapping(ctx context.Context, req CreateMappingRequest) (*integration.ProductMapping, error) {
	mapping, err := integration.NewProductMapping(req.SKU, req.Name)
	if err != nil {
		return nil, err
	}

	for raw, in := range req.Listings {
		code := integration.PlatformCode(raw)
		listing := integration.PlatformListing{
			Ref: integration.PlatformRef{
				ProductID:   in.Ref.ProductID,
				VariantID:   in.Ref.VariantID,
				InventoryID: in.Ref.InventoryID,
				LocationID:  in.Ref.LocationID,
			},
			Currency: in.Currency,
			Stock:    integration.StockLevel{SafetyStock: in.SafetyStock},
		}
		if in.BasePrice != nil {
			listing.BasePrice = *in.BasePrice
		}
		if err := mapping.SetListing(code, listing); err != nil {
			return nil, err
		}
	}

	pricing, inventory := mapping.Pricing, mapping.Inventory
	if req.Pricing != nil {
		pricing = req.Pricing.ToDomain()
	}
	if req.Inventory != nil {
		inventory = req.Inventory.ToDomain()
	}
	if err := mapping.UpdatePolicies(pricing, inventory); err != nil {
		return nil, err
	}
	if mapping.HasAllRefs() {
		if err := mapping.Activate(); err != nil {
			return nil, err
		}
	}

	r := s.reconciler
	release, err := r.locker.Lock(ctx, lockKey(mapping.SKU))
	if err != nil {
		return nil, fmt.Errorf("failed to lock sku %s: %w", mapping.SKU, err)
	}
	defer release()

	exists, err := r.mappings.ExistsBySKU(ctx, mapping.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", integration.ErrMappingAlreadyExists, mapping.SKU)
	}
	if err := r.mappings.Save(ctx, mapping); err != nil {
		return nil, err
	}

	s.logger.Info("Product mapping created",
		zap.String("sku", mapping.SKU),
		zap.String("status", string(mapping.Status)),
	)
	return mapping, nil
}

// GetMapping returns the live mapping of a SKU
func (s *ProductMappingService) GetMapping(ctx context.Context, sku string) (*integration.ProductMapping, error) {
	normalized, err := integration.NormalizeSKU(sku)
	if err != nil {
		return nil, err
	}
	return s.reconciler.mappings.FindBySKU(ctx, normalized)
}

// ListMappings returns a page of mappings
func (s *ProductMappingService) ListMappings(ctx context.Context, filter MappingFilter) ([]integration.ProductMapping, int64, error) {
	f := integration.ProductMappingFilter{
		Status:   integration.MappingStatus(filter.Status),
		Search:   filter.Search,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, integration.NewValidationError("status", "unsupported status")
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return s.reconciler.mappings.List(ctx, f)
}

// UpdatePolicies replaces the pricing and inventory policies of a mapping
func (s *ProductMappingService) UpdatePolicies(ctx context.Context, sku string, req UpdatePoliciesRequest) (*integration.ProductMapping, error) {
	normalized, err := integration.NormalizeSKU(sku)
	if err != nil {
		return nil, err
	}

	var updated *integration.ProductMapping
	err = s.reconciler.withSKU(ctx, normalized, func(mapping *integration.ProductMapping) error {
		if err := mapping.UpdatePolicies(req.Pricing.ToDomain(), req.Inventory.ToDomain()); err != nil {
			return err
		}
		if err := s.reconciler.mappings.Save(ctx, mapping); err != nil {
			return err
		}
		updated = mapping
		return nil
	})
	return updated, err
}

// DeleteMapping soft-deletes a mapping. Its transactions stay queryable.
func (s *ProductMappingService) DeleteMapping(ctx context.Context, sku string) error {
	normalized, err := integration.NormalizeSKU(sku)
	if err != nil {
		return err
	}
	return s.reconciler.withSKU(ctx, normalized, func(mapping *integration.ProductMapping) error {
		if err := s.reconciler.mappings.SoftDelete(ctx, mapping.SKU); err != nil {
			return err
		}
		s.logger.Info("Product mapping deleted", zap.String("sku", mapping.SKU))
		return nil
	})
}

// DiscoverMapping searches every platform for the SKU and links the listings it finds.
// A missing mapping is created. Returns ErrMappingNotFound when no platform lists the SKU.
func (s *ProductMappingService) DiscoverMapping(ctx context.Context, sku string) (*integration.ProductMapping, error) {
	normalized, err := integration.NormalizeSKU(sku)
	if err != nil {
		return nil, err
	}

	r := s.reconciler
	release, err := r.locker.Lock(ctx, lockKey(normalized))
	if err != nil {
		return nil, fmt.Errorf("failed to lock sku %s: %w", normalized, err)
	}
	defer release()

	mapping, err := r.mappings.FindBySKU(ctx, normalized)
	if errors.Is(err, integration.ErrMappingNotFound) {
		mapping, err = integration.NewProductMapping(normalized, "")
	}
	if err != nil {
		return nil, err
	}

	found := 0
	var missing []error
	for _, code := range integration.AllPlatforms {
		platform, err := r.platforms.Get(code)
		if err != nil {
			return nil, err
		}
		ref, err := platform.FindBySKU(ctx, normalized)
		if errors.Is(err, integration.ErrMappingNotFound) {
			missing = append(missing, fmt.Errorf("%s: %w", code, err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", code, err)
		}
		if err := mapping.SetRef(code, *ref); err != nil {
			return nil, err
		}
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: %s is not listed on any platform", integration.ErrMappingNotFound, normalized)
	}

	now := r.now()
	if len(missing) == 0 {
		mapping.MarkSynced(integration.AspectProduct, now)
		if mapping.Status == integration.MappingStatusPending {
			if err := mapping.Activate(); err != nil {
				return nil, err
			}
		}
	} else {
		mapping.MarkFailed(integration.AspectProduct, now, errors.Join(missing...))
	}

	if err := r.mappings.Save(ctx, mapping); err != nil {
		return nil, err
	}
	s.logger.Info("Product mapping discovered",
		zap.String("sku", normalized),
		zap.Int("platforms_found", found),
		zap.String("status", string(mapping.Status)),
	)
	return mapping, nil
}
