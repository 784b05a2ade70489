package integration

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Platform codes and scopes
// ---------------------------------------------------------------------------

// PlatformCode identifies an external commerce platform
type PlatformCode string

const (
	// PlatformSmartStore is the Korean marketplace (platform A)
	PlatformSmartStore PlatformCode = "SMARTSTORE"
	// PlatformShopify is the storefront platform (platform B)
	PlatformShopify PlatformCode = "SHOPIFY"
)

// AllPlatforms lists every supported platform in processing order
var AllPlatforms = []PlatformCode{PlatformSmartStore, PlatformShopify}

// IsValid returns true if the platform code is supported
func (p PlatformCode) IsValid() bool {
	switch p {
	case PlatformSmartStore, PlatformShopify:
		return true
	}
	return false
}

// String returns the string representation
func (p PlatformCode) String() string {
	return string(p)
}

// Other returns the opposite platform of a two-platform link
func (p PlatformCode) Other() PlatformCode {
	if p == PlatformSmartStore {
		return PlatformShopify
	}
	return PlatformSmartStore
}

// PlatformScope selects which platforms an adjustment targets
type PlatformScope string

const (
	ScopeSmartStore PlatformScope = "SMARTSTORE"
	ScopeShopify    PlatformScope = "SHOPIFY"
	ScopeBoth       PlatformScope = "BOTH"
)

// IsValid returns true if the scope is supported
func (s PlatformScope) IsValid() bool {
	switch s {
	case ScopeSmartStore, ScopeShopify, ScopeBoth:
		return true
	}
	return false
}

// Platforms expands the scope into platform codes
func (s PlatformScope) Platforms() []PlatformCode {
	switch s {
	case ScopeSmartStore:
		return []PlatformCode{PlatformSmartStore}
	case ScopeShopify:
		return []PlatformCode{PlatformShopify}
	case ScopeBoth:
		return AllPlatforms
	}
	return nil
}

// ScopeOf returns the single-platform scope for a platform code
func ScopeOf(p PlatformCode) PlatformScope {
	return PlatformScope(p)
}

// ---------------------------------------------------------------------------
// Platform ports
// ---------------------------------------------------------------------------

// InventoryPlatform reads and writes stock quantities on one platform
type InventoryPlatform interface {
	Code() PlatformCode
	GetStock(ctx context.Context, ref PlatformRef) (int, error)
	SetStock(ctx context.Context, ref PlatformRef, quantity int) error
}

// PricingPlatform reads and writes the selling price of one listing
type PricingPlatform interface {
	GetPrice(ctx context.Context, ref PlatformRef) (decimal.Decimal, error)
	SetPrice(ctx context.Context, ref PlatformRef, price decimal.Decimal) error
}

// CatalogPlatform looks up listings by merchant SKU for auto-discovery.
// FindBySKU returns ErrMappingNotFound when the platform has no listing for the SKU.
type CatalogPlatform interface {
	FindBySKU(ctx context.Context, sku string) (*PlatformRef, error)
}

// OrderSource lists changed orders and acknowledges them on the platform
type OrderSource interface {
	ListOrders(ctx context.Context, query OrderQuery) (*OrderPage, error)
	ConfirmOrders(ctx context.Context, lineIDs []string) error
}

// EcommercePlatform is the full port implemented by each platform adapter
type EcommercePlatform interface {
	InventoryPlatform
	PricingPlatform
	CatalogPlatform
}

// PlatformRegistry resolves configured adapters by platform code
type PlatformRegistry struct {
	platforms map[PlatformCode]EcommercePlatform
}

// NewPlatformRegistry creates a registry from the given adapters
func NewPlatformRegistry(platforms ...EcommercePlatform) *PlatformRegistry {
	r := &PlatformRegistry{platforms: make(map[PlatformCode]EcommercePlatform, len(platforms))}
	for _, p := range platforms {
		r.platforms[p.Code()] = p
	}
	return r
}

// Get returns the adapter for a platform
func (r *PlatformRegistry) Get(code PlatformCode) (EcommercePlatform, error) {
	p, ok := r.platforms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlatformNotConfigured, code)
	}
	return p, nil
}

// Codes returns the registered platform codes in a stable order
func (r *PlatformRegistry) Codes() []PlatformCode {
	codes := make([]PlatformCode, 0, len(r.platforms))
	for code := range r.platforms {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
