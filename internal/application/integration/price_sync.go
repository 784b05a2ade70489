package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// Currencies of the two platforms
const (
	SourceCurrency  = "KRW"
	DefaultCurrency = "USD"
)

// PriceSynchronizer derives the storefront price from the marketplace price
type PriceSynchronizer struct {
	reconciler *InventoryReconciler
	rates      *ExchangeRateService
}

// NewPriceSynchronizer creates a price synchronizer
func NewPriceSynchronizer(reconciler *InventoryReconciler, rates *ExchangeRateService) *PriceSynchronizer {
	return &PriceSynchronizer{reconciler: reconciler, rates: rates}
}

// SyncSKU reads the SmartStore price, converts it with the mapping's pricing
// policy and writes it to Shopify when it differs.
func (s *PriceSynchronizer) SyncSKU(ctx context.Context, sku string) (integration.ItemOutcome, error) {
	r := s.reconciler
	outcome := integration.ItemSkipped

	err := r.withSKU(ctx, sku, func(mapping *integration.ProductMapping) error {
		if !mapping.IsSyncable() {
			return nil
		}

		applied, err := s.syncPrice(ctx, mapping)
		now := r.now()
		switch {
		case err != nil:
			mapping.MarkFailed(integration.AspectPrice, now, err)
			outcome = integration.ItemFailed
		case applied:
			mapping.MarkSynced(integration.AspectPrice, now)
			outcome = integration.ItemSuccess
		default:
			mapping.MarkSkipped(integration.AspectPrice, now)
		}

		if saveErr := r.mappings.Save(ctx, mapping); saveErr != nil {
			return errors.Join(err, fmt.Errorf("failed to save mapping %s: %w", mapping.SKU, saveErr))
		}
		return err
	})
	if errors.Is(err, integration.ErrMappingNotFound) {
		return integration.ItemSkipped, err
	}
	if err != nil && outcome != integration.ItemFailed {
		outcome = integration.ItemFailed
	}
	return outcome, err
}

func (s *PriceSynchronizer) syncPrice(ctx context.Context, mapping *integration.ProductMapping) (bool, error) {
	r := s.reconciler
	sourceRef, err := mapping.Ref(integration.PlatformSmartStore)
	if err != nil {
		return false, err
	}
	targetRef, err := mapping.Ref(integration.PlatformShopify)
	if err != nil {
		return false, err
	}
	source, err := r.platforms.Get(integration.PlatformSmartStore)
	if err != nil {
		return false, err
	}
	target, err := r.platforms.Get(integration.PlatformShopify)
	if err != nil {
		return false, err
	}

	sourcePrice, err := source.GetPrice(ctx, sourceRef)
	if err != nil {
		return false, err
	}

	quote := DefaultCurrency
	if l, ok := mapping.Listing(integration.PlatformShopify); ok && l.Currency != "" {
		quote = l.Currency
	}
	rate, err := s.rates.Current(ctx, SourceCurrency, quote)
	if err != nil {
		return false, err
	}

	derived, err := mapping.Pricing.Derive(sourcePrice, rate)
	if err != nil {
		return false, err
	}

	currentPrice, err := target.GetPrice(ctx, targetRef)
	if err != nil {
		return false, err
	}

	now := r.now()
	mapping.RecordPrice(integration.PlatformSmartStore, sourcePrice, now)
	if priceEqual(currentPrice, derived) {
		mapping.RecordPrice(integration.PlatformShopify, currentPrice, now)
		return false, nil
	}

	if err := target.SetPrice(ctx, targetRef, derived); err != nil {
		return false, err
	}
	mapping.RecordPrice(integration.PlatformShopify, derived, now)

	r.logger.Info("Price synchronized",
		zap.String("sku", mapping.SKU),
		zap.String("source_price", sourcePrice.String()),
		zap.String("rate", rate.String()),
		zap.String("previous_price", currentPrice.String()),
		zap.String("new_price", derived.StringFixed(2)),
	)
	return true, nil
}

// priceEqual compares prices at cent precision
func priceEqual(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}
