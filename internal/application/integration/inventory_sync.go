package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// InventorySynchronizer brings both platforms of one mapping to a consistent stock level
type InventorySynchronizer struct {
	reconciler *InventoryReconciler
}

// NewInventorySynchronizer creates a synchronizer on top of the reconciler
func NewInventorySynchronizer(reconciler *InventoryReconciler) *InventorySynchronizer {
	return &InventorySynchronizer{reconciler: reconciler}
}

// SyncSKU reconciles one SKU. Without bidirectional sync the priority platform is
// the source of truth and the other platform is set to its quantity minus the
// target's safety stock. With bidirectional sync the changes seen on both
// platforms since the last sync are merged onto the last synced quantity.
//
// A missing mapping or reference yields ItemSkipped with ErrMappingNotFound.
func (s *InventorySynchronizer) SyncSKU(ctx context.Context, sku string, jobID *uuid.UUID) (integration.ItemOutcome, error) {
	r := s.reconciler
	outcome := integration.ItemSkipped

	err := r.withSKU(ctx, sku, func(mapping *integration.ProductMapping) error {
		if !mapping.IsSyncable() {
			return nil
		}
		if !mapping.HasAllRefs() {
			return fmt.Errorf("%w: %s is not linked on every platform", integration.ErrMappingNotFound, mapping.SKU)
		}

		stock, err := s.readStock(ctx, mapping)
		if err != nil {
			now := r.now()
			mapping.MarkFailed(integration.AspectInventory, now, err)
			if saveErr := r.mappings.Save(ctx, mapping); saveErr != nil {
				r.logger.Error("Failed to save mapping", zap.String("sku", mapping.SKU), zap.Error(saveErr))
			}
			outcome = integration.ItemFailed
			return err
		}

		cmd, ok := s.plan(mapping, stock)
		if !ok {
			now := r.now()
			for code, qty := range stock {
				mapping.RecordStock(code, qty, now)
			}
			mapping.MarkSkipped(integration.AspectInventory, now)
			if err := r.mappings.Save(ctx, mapping); err != nil {
				return fmt.Errorf("failed to save mapping %s: %w", mapping.SKU, err)
			}
			return nil
		}

		cmd.JobID = jobID
		targets := cmd.Scope.Platforms()
		for code, qty := range stock {
			if !slices.Contains(targets, code) {
				mapping.RecordStock(code, qty, r.now())
			}
		}
		result, err := r.applyLocked(ctx, mapping, cmd)
		if err != nil {
			outcome = integration.ItemFailed
			return err
		}
		if result.Outcome != AdjustSucceeded {
			outcome = integration.ItemFailed
			return result.Err()
		}
		outcome = integration.ItemSuccess
		return nil
	})
	if errors.Is(err, integration.ErrMappingNotFound) {
		return integration.ItemSkipped, err
	}
	if err != nil && outcome == integration.ItemSkipped {
		outcome = integration.ItemFailed
	}
	return outcome, err
}

func (s *InventorySynchronizer) readStock(ctx context.Context, mapping *integration.ProductMapping) (map[integration.PlatformCode]int, error) {
	stock := make(map[integration.PlatformCode]int, len(integration.AllPlatforms))
	for _, code := range integration.AllPlatforms {
		ref, err := mapping.Ref(code)
		if err != nil {
			return nil, err
		}
		platform, err := s.reconciler.platforms.Get(code)
		if err != nil {
			return nil, err
		}
		qty, err := platform.GetStock(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", code, err)
		}
		stock[code] = qty
	}
	return stock, nil
}

// plan returns the set command to apply, or false when the platforms already agree
func (s *InventorySynchronizer) plan(mapping *integration.ProductMapping, stock map[integration.PlatformCode]int) (AdjustCommand, bool) {
	policy := mapping.Inventory
	neverSynced := mapping.Aspect(integration.AspectInventory).LastSyncAt == nil

	if !policy.Bidirectional || neverSynced {
		source := policy.PriorityPlatform
		target := source.Other()
		desired := max(0, stock[source]-mapping.SafetyStock(target))
		if stock[target] == desired {
			return AdjustCommand{}, false
		}
		return AdjustCommand{
			SKU:    mapping.SKU,
			Scope:  integration.ScopeOf(target),
			Type:   integration.AdjustSet,
			Amount: desired,
			Reason: "sync from " + source.String(),
			Actor:  integration.ActorSystem,
		}, true
	}

	baseline := 0
	if l, ok := mapping.Listing(policy.PriorityPlatform); ok {
		baseline = l.Stock.Available
	}
	merged := baseline
	for _, code := range integration.AllPlatforms {
		last := 0
		if l, ok := mapping.Listing(code); ok {
			last = l.Stock.Available
		}
		merged += stock[code] - last
	}
	merged = max(0, merged)

	var targets []integration.PlatformCode
	for _, code := range integration.AllPlatforms {
		if stock[code] != merged {
			targets = append(targets, code)
		}
	}
	if len(targets) == 0 {
		return AdjustCommand{}, false
	}

	scope := integration.ScopeBoth
	if len(targets) == 1 {
		scope = integration.ScopeOf(targets[0])
	}
	return AdjustCommand{
		SKU:    mapping.SKU,
		Scope:  scope,
		Type:   integration.AdjustSet,
		Amount: merged,
		Reason: "bidirectional merge",
		Actor:  integration.ActorSystem,
	}, true
}
