package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelink/backend/internal/domain/integration"
)

func TestProductMappingService_CreateMapping(t *testing.T) {
	f := newFixture(t)
	svc := NewProductMappingService(f.reconciler)
	price := decimal.NewFromInt(15000)

	mapping, err := svc.CreateMapping(context.Background(), CreateMappingRequest{
		SKU:  " album-009 ",
		Name: "Ninth Album",
		Listings: map[string]ListingInput{
			"SMARTSTORE": {Ref: PlatformRefInput{ProductID: "1001", VariantID: "2001"}, BasePrice: &price, Currency: "KRW"},
			"SHOPIFY":    {Ref: PlatformRefInput{VariantID: "v1", InventoryID: "i1", LocationID: "l1"}, SafetyStock: 2},
		},
		Inventory: &InventoryPolicyInput{SyncEnabled: true, PriorityPlatform: "SHOPIFY"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ALBUM-009", mapping.SKU)
	assert.Equal(t, integration.MappingStatusActive, mapping.Status)
	assert.Equal(t, 2, mapping.SafetyStock(integration.PlatformShopify))
	assert.Equal(t, integration.PlatformShopify, mapping.Inventory.PriorityPlatform)

	_, err = svc.CreateMapping(context.Background(), CreateMappingRequest{SKU: "ALBUM-009"})
	assert.ErrorIs(t, err, integration.ErrMappingAlreadyExists)
}

func TestProductMappingService_CreateIncompleteMappingStaysPending(t *testing.T) {
	f := newFixture(t)
	svc := NewProductMappingService(f.reconciler)

	mapping, err := svc.CreateMapping(context.Background(), CreateMappingRequest{
		SKU:      "ALBUM-010",
		Listings: map[string]ListingInput{"SMARTSTORE": {Ref: PlatformRefInput{ProductID: "1"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, integration.MappingStatusPending, mapping.Status)

	_, err = svc.CreateMapping(context.Background(), CreateMappingRequest{
		SKU:      "ALBUM-011",
		Listings: map[string]ListingInput{"AMAZON": {}},
	})
	assert.ErrorIs(t, err, integration.ErrValidation)
}

func TestProductMappingService_UpdatePoliciesAndDelete(t *testing.T) {
	f := newFixture(t, linkedMapping(t, "ALBUM-001", "p1"))
	svc := NewProductMappingService(f.reconciler)

	updated, err := svc.UpdatePolicies(context.Background(), "album-001", UpdatePoliciesRequest{
		Pricing:   PricingPolicyInput{MarginPercent: decimal.NewFromInt(15), Rounding: "charm", RoundingUnit: decimal.NewFromInt(1)},
		Inventory: InventoryPolicyInput{SyncEnabled: true, Bidirectional: true},
	})
	require.NoError(t, err)
	assert.True(t, updated.Inventory.Bidirectional)
	assert.Equal(t, integration.RoundingCharm, f.mappings.get(t, "ALBUM-001").Pricing.Rounding)

	_, err = svc.UpdatePolicies(context.Background(), "ALBUM-001", UpdatePoliciesRequest{
		Pricing: PricingPolicyInput{MinPrice: decimal.NewFromInt(10), MaxPrice: decimal.NewFromInt(5)},
	})
	assert.ErrorIs(t, err, integration.ErrValidation)

	require.NoError(t, svc.DeleteMapping(context.Background(), "ALBUM-001"))
	_, err = svc.GetMapping(context.Background(), "ALBUM-001")
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)
	assert.ErrorIs(t, svc.DeleteMapping(context.Background(), "ALBUM-001"), integration.ErrMappingNotFound)
}

func TestProductMappingService_ListMappings(t *testing.T) {
	pending, err := integration.NewProductMapping("ALBUM-002", "pending")
	require.NoError(t, err)
	f := newFixture(t, linkedMapping(t, "ALBUM-001", "p1"), pending)
	svc := NewProductMappingService(f.reconciler)

	items, total, err := svc.ListMappings(context.Background(), MappingFilter{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "ALBUM-001", items[0].SKU)

	_, _, err = svc.ListMappings(context.Background(), MappingFilter{Status: "weird"})
	assert.ErrorIs(t, err, integration.ErrValidation)
}

func TestProductMappingService_DiscoverMapping(t *testing.T) {
	f := newFixture(t)
	svc := NewProductMappingService(f.reconciler)
	f.smartstore.found = &integration.PlatformRef{ProductID: "1001", VariantID: "2001"}
	f.shopify.found = &integration.PlatformRef{ProductID: "10", VariantID: "20", InventoryID: "30", LocationID: "40"}

	mapping, err := svc.DiscoverMapping(context.Background(), "album-777")
	require.NoError(t, err)
	assert.Equal(t, integration.MappingStatusActive, mapping.Status)
	assert.Equal(t, integration.AspectSynced, mapping.Aspect(integration.AspectProduct).Status)
	ref, err := mapping.Ref(integration.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, "30", ref.InventoryID)

	stored := f.mappings.get(t, "ALBUM-777")
	assert.True(t, stored.HasAllRefs())
}

func TestProductMappingService_DiscoverPartialAndNone(t *testing.T) {
	f := newFixture(t)
	svc := NewProductMappingService(f.reconciler)
	f.smartstore.found = &integration.PlatformRef{ProductID: "1001"}

	mapping, err := svc.DiscoverMapping(context.Background(), "ALBUM-778")
	require.NoError(t, err)
	assert.Equal(t, integration.MappingStatusPending, mapping.Status)
	state := mapping.Aspect(integration.AspectProduct)
	assert.Equal(t, integration.AspectError, state.Status)
	assert.Contains(t, state.LastError, "SHOPIFY")

	f.smartstore.found = nil
	_, err = svc.DiscoverMapping(context.Background(), "ALBUM-779")
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)

	f.shopify.findErr = integration.ErrAuthFailure
	_, err = svc.DiscoverMapping(context.Background(), "ALBUM-779")
	assert.ErrorIs(t, err, integration.ErrAuthFailure)
}
