package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Status enums
// ---------------------------------------------------------------------------

// MappingStatus is the lifecycle status of a mapped product
type MappingStatus string

const (
	MappingStatusPending      MappingStatus = "pending"
	MappingStatusActive       MappingStatus = "active"
	MappingStatusInactive     MappingStatus = "inactive"
	MappingStatusDiscontinued MappingStatus = "discontinued"
	MappingStatusOutOfStock   MappingStatus = "out_of_stock"
)

// IsValid returns true if the status is known
func (s MappingStatus) IsValid() bool {
	switch s {
	case MappingStatusPending, MappingStatusActive, MappingStatusInactive,
		MappingStatusDiscontinued, MappingStatusOutOfStock:
		return true
	}
	return false
}

// SyncAspect names one synchronized facet of a mapping
type SyncAspect string

const (
	AspectInventory SyncAspect = "inventory"
	AspectPrice     SyncAspect = "price"
	AspectProduct   SyncAspect = "product"
)

// AspectStatus is the sync status of one aspect
type AspectStatus string

const (
	AspectSynced  AspectStatus = "synced"
	AspectPending AspectStatus = "pending"
	AspectError   AspectStatus = "error"
	AspectSkipped AspectStatus = "skipped"
)

// AspectState records the last sync of one aspect
type AspectState struct {
	Status     AspectStatus `json:"status"`
	LastSyncAt *time.Time   `json:"last_sync_at,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
}

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// PlatformRef holds the opaque identifiers of a listing on one platform.
// SmartStore uses ProductID (origin product no) and VariantID (channel product no);
// Shopify uses ProductID, VariantID, InventoryID (inventory item) and LocationID.
type PlatformRef struct {
	ProductID   string `json:"product_id,omitempty"`
	VariantID   string `json:"variant_id,omitempty"`
	InventoryID string `json:"inventory_id,omitempty"`
	LocationID  string `json:"location_id,omitempty"`
}

// IsZero returns true if no identifier is set
func (r PlatformRef) IsZero() bool {
	return r.ProductID == "" && r.VariantID == "" && r.InventoryID == ""
}

// StockLevel holds the last known stock counters on one platform
type StockLevel struct {
	Available   int `json:"available"`
	Reserved    int `json:"reserved"`
	SafetyStock int `json:"safety_stock"`
}

// PlatformListing is the per-platform side of a mapping
type PlatformListing struct {
	Ref       PlatformRef     `json:"ref"`
	BasePrice decimal.Decimal `json:"base_price"`
	Currency  string          `json:"currency,omitempty"`
	Stock     StockLevel      `json:"stock"`
}

// InventoryPolicy controls how stock flows between platforms
type InventoryPolicy struct {
	SyncEnabled      bool         `json:"sync_enabled"`
	Bidirectional    bool         `json:"bidirectional"`
	PriorityPlatform PlatformCode `json:"priority_platform"`
}

// Validate checks the policy values
func (p InventoryPolicy) Validate() error {
	if !p.PriorityPlatform.IsValid() {
		return NewValidationError("inventory.priority_platform", "unsupported platform")
	}
	return nil
}

// ---------------------------------------------------------------------------
// ProductMapping Entity
// ---------------------------------------------------------------------------

// ProductMapping links one merchant SKU to its listings on every platform.
// The SKU is immutable once created; mappings are soft-deleted only.
type ProductMapping struct {
	ID        uuid.UUID
	SKU       string
	Name      string
	Status    MappingStatus
	Listings  map[PlatformCode]PlatformListing
	Pricing   PricingPolicy
	Inventory InventoryPolicy
	SyncState map[SyncAspect]AspectState
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewProductMapping creates a pending mapping for a SKU
func NewProductMapping(sku, name string) (*ProductMapping, error) {
	normalized, err := NormalizeSKU(sku)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &ProductMapping{
		ID:       uuid.New(),
		SKU:      normalized,
		Name:     name,
		Status:   MappingStatusPending,
		Listings: make(map[PlatformCode]PlatformListing),
		Pricing:  DefaultPricingPolicy(),
		Inventory: InventoryPolicy{
			SyncEnabled:      true,
			PriorityPlatform: PlatformSmartStore,
		},
		SyncState: map[SyncAspect]AspectState{
			AspectInventory: {Status: AspectPending},
			AspectPrice:     {Status: AspectPending},
			AspectProduct:   {Status: AspectPending},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Listing returns the listing for a platform
func (m *ProductMapping) Listing(code PlatformCode) (PlatformListing, bool) {
	l, ok := m.Listings[code]
	return l, ok
}

// Ref returns the platform reference, or ErrMappingNotFound when absent
func (m *ProductMapping) Ref(code PlatformCode) (PlatformRef, error) {
	l, ok := m.Listings[code]
	if !ok || l.Ref.IsZero() {
		return PlatformRef{}, ErrMappingNotFound
	}
	return l.Ref, nil
}

// SetRef sets the reference for a platform, keeping price and stock
func (m *ProductMapping) SetRef(code PlatformCode, ref PlatformRef) error {
	if !code.IsValid() {
		return NewValidationError("platform", "unsupported platform")
	}
	if m.Listings == nil {
		m.Listings = make(map[PlatformCode]PlatformListing)
	}
	l := m.Listings[code]
	l.Ref = ref
	m.Listings[code] = l
	m.UpdatedAt = time.Now()
	return nil
}

// SetListing replaces the listing for a platform
func (m *ProductMapping) SetListing(code PlatformCode, listing PlatformListing) error {
	if !code.IsValid() {
		return NewValidationError("platform", "unsupported platform")
	}
	if listing.BasePrice.IsNegative() {
		return NewValidationError("base_price", "must not be negative")
	}
	if listing.Stock.Available < 0 || listing.Stock.Reserved < 0 || listing.Stock.SafetyStock < 0 {
		return NewValidationError("stock", "quantities must not be negative")
	}
	if m.Listings == nil {
		m.Listings = make(map[PlatformCode]PlatformListing)
	}
	m.Listings[code] = listing
	m.UpdatedAt = time.Now()
	return nil
}

// HasAllRefs returns true if every platform has a reference
func (m *ProductMapping) HasAllRefs() bool {
	for _, code := range AllPlatforms {
		if _, err := m.Ref(code); err != nil {
			return false
		}
	}
	return true
}

// SafetyStock returns the safety stock configured for a platform
func (m *ProductMapping) SafetyStock(code PlatformCode) int {
	return m.Listings[code].Stock.SafetyStock
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Activate makes the mapping eligible for synchronization
func (m *ProductMapping) Activate() error {
	if m.IsDeleted() {
		return ErrMappingDeleted
	}
	if !m.HasAllRefs() {
		return ErrMappingIncomplete
	}
	m.Status = MappingStatusActive
	m.UpdatedAt = time.Now()
	return nil
}

// Deactivate stops synchronization without discontinuing the product
func (m *ProductMapping) Deactivate() {
	m.Status = MappingStatusInactive
	m.UpdatedAt = time.Now()
}

// Discontinue marks the product as permanently retired
func (m *ProductMapping) Discontinue() {
	m.Status = MappingStatusDiscontinued
	m.UpdatedAt = time.Now()
}

// SoftDelete marks the mapping deleted; transaction history keeps referencing it
func (m *ProductMapping) SoftDelete(at time.Time) {
	m.DeletedAt = &at
	m.Status = MappingStatusInactive
	m.UpdatedAt = at
}

// IsDeleted returns true if the mapping was soft-deleted
func (m *ProductMapping) IsDeleted() bool {
	return m.DeletedAt != nil
}

// IsSyncable returns true if background jobs may touch this mapping
func (m *ProductMapping) IsSyncable() bool {
	if m.IsDeleted() || !m.Inventory.SyncEnabled {
		return false
	}
	return m.Status == MappingStatusActive || m.Status == MappingStatusOutOfStock
}

// UpdatePolicies replaces the pricing and inventory policies
func (m *ProductMapping) UpdatePolicies(pricing PricingPolicy, inventory InventoryPolicy) error {
	if err := pricing.Validate(); err != nil {
		return err
	}
	if err := inventory.Validate(); err != nil {
		return err
	}
	m.Pricing = pricing
	m.Inventory = inventory
	m.UpdatedAt = time.Now()
	return nil
}

// ---------------------------------------------------------------------------
// Sync bookkeeping
// ---------------------------------------------------------------------------

// RecordStock stores the quantity last written to a platform and flips the
// lifecycle status between active and out_of_stock.
func (m *ProductMapping) RecordStock(code PlatformCode, quantity int, at time.Time) {
	if quantity < 0 {
		quantity = 0
	}
	if m.Listings == nil {
		m.Listings = make(map[PlatformCode]PlatformListing)
	}
	l := m.Listings[code]
	l.Stock.Available = quantity
	m.Listings[code] = l
	m.UpdatedAt = at

	switch m.Status {
	case MappingStatusActive:
		if m.totalAvailable() == 0 {
			m.Status = MappingStatusOutOfStock
		}
	case MappingStatusOutOfStock:
		if m.totalAvailable() > 0 {
			m.Status = MappingStatusActive
		}
	}
}

// RecordPrice stores the price last written to a platform
func (m *ProductMapping) RecordPrice(code PlatformCode, price decimal.Decimal, at time.Time) {
	if m.Listings == nil {
		m.Listings = make(map[PlatformCode]PlatformListing)
	}
	l := m.Listings[code]
	l.BasePrice = price
	m.Listings[code] = l
	m.UpdatedAt = at
}

func (m *ProductMapping) totalAvailable() int {
	total := 0
	for _, l := range m.Listings {
		total += l.Stock.Available
	}
	return total
}

// MarkSynced records a successful sync of an aspect
func (m *ProductMapping) MarkSynced(aspect SyncAspect, at time.Time) {
	m.setAspect(aspect, AspectState{Status: AspectSynced, LastSyncAt: &at})
}

// MarkSkipped records that an aspect did not need work
func (m *ProductMapping) MarkSkipped(aspect SyncAspect, at time.Time) {
	m.setAspect(aspect, AspectState{Status: AspectSkipped, LastSyncAt: &at})
}

// MarkFailed records a failed sync of an aspect
func (m *ProductMapping) MarkFailed(aspect SyncAspect, at time.Time, err error) {
	state := AspectState{Status: AspectError, LastSyncAt: &at}
	if err != nil {
		state.LastError = err.Error()
	}
	m.setAspect(aspect, state)
}

// Aspect returns the sync state of an aspect
func (m *ProductMapping) Aspect(aspect SyncAspect) AspectState {
	if s, ok := m.SyncState[aspect]; ok {
		return s
	}
	return AspectState{Status: AspectPending}
}

func (m *ProductMapping) setAspect(aspect SyncAspect, state AspectState) {
	if m.SyncState == nil {
		m.SyncState = make(map[SyncAspect]AspectState)
	}
	m.SyncState[aspect] = state
	if state.LastSyncAt != nil {
		m.UpdatedAt = *state.LastSyncAt
	}
}

// ---------------------------------------------------------------------------
// Repository interfaces
// ---------------------------------------------------------------------------

// ProductMappingFilter defines filtering options for listing mappings
type ProductMappingFilter struct {
	Status   MappingStatus
	Search   string
	Page     int
	PageSize int
}

// ProductMappingReader provides read access to mappings
type ProductMappingReader interface {
	// FindBySKU returns ErrMappingNotFound when no live mapping exists
	FindBySKU(ctx context.Context, sku string) (*ProductMapping, error)
	// FindActive returns all non-deleted mappings eligible for sync
	FindActive(ctx context.Context) ([]ProductMapping, error)
	// List returns a page of non-deleted mappings and the total count
	List(ctx context.Context, filter ProductMappingFilter) ([]ProductMapping, int64, error)
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
}

// ProductMappingWriter provides write access to mappings
type ProductMappingWriter interface {
	// Save inserts or updates a mapping
	Save(ctx context.Context, mapping *ProductMapping) error
	SoftDelete(ctx context.Context, sku string) error
}

// ProductMappingRepository combines read and write access
type ProductMappingRepository interface {
	ProductMappingReader
	ProductMappingWriter
}
