package models

import (
	"encoding/json"
	"time"

	"github.com/storelink/backend/internal/domain/integration"
)

// ProductMappingModel is the persistence model for the ProductMapping domain entity.
// Per-platform listings, policies and aspect states are stored as JSON documents;
// sync_enabled is denormalized from the inventory policy so that FindActive can filter in SQL.
type ProductMappingModel struct {
	BaseModel
	SKU           string                    `gorm:"type:varchar(100);not null;index:idx_product_mappings_sku"`
	Name          string                    `gorm:"type:varchar(255)"`
	Status        integration.MappingStatus `gorm:"type:varchar(20);not null;index"`
	SyncEnabled   bool                      `gorm:"not null"`
	ListingsJSON  string                    `gorm:"type:jsonb;column:listings"`
	PricingJSON   string                    `gorm:"type:jsonb;column:pricing"`
	InventoryJSON string                    `gorm:"type:jsonb;column:inventory"`
	SyncStateJSON string                    `gorm:"type:jsonb;column:sync_state"`
	DeletedAt     *time.Time                `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "product_mappings"
}

// ToDomain converts the persistence model to a domain ProductMapping entity.
// Malformed JSON documents yield empty values rather than failing the read.
func (m *ProductMappingModel) ToDomain() *integration.ProductMapping {
	mapping := &integration.ProductMapping{
		ID:        m.ID,
		SKU:       m.SKU,
		Name:      m.Name,
		Status:    m.Status,
		Listings:  make(map[integration.PlatformCode]integration.PlatformListing),
		Pricing:   integration.DefaultPricingPolicy(),
		SyncState: make(map[integration.SyncAspect]integration.AspectState),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
	}
	mapping.Inventory.SyncEnabled = m.SyncEnabled

	if m.ListingsJSON != "" {
		_ = json.Unmarshal([]byte(m.ListingsJSON), &mapping.Listings)
	}
	if m.PricingJSON != "" {
		_ = json.Unmarshal([]byte(m.PricingJSON), &mapping.Pricing)
	}
	if m.InventoryJSON != "" {
		_ = json.Unmarshal([]byte(m.InventoryJSON), &mapping.Inventory)
	}
	if m.SyncStateJSON != "" {
		_ = json.Unmarshal([]byte(m.SyncStateJSON), &mapping.SyncState)
	}
	return mapping
}

// FromDomain populates the persistence model from a domain ProductMapping entity.
func (m *ProductMappingModel) FromDomain(pm *integration.ProductMapping) {
	m.ID = pm.ID
	m.SKU = pm.SKU
	m.Name = pm.Name
	m.Status = pm.Status
	m.SyncEnabled = pm.Inventory.SyncEnabled
	m.CreatedAt = pm.CreatedAt
	m.UpdatedAt = pm.UpdatedAt
	m.DeletedAt = pm.DeletedAt

	m.ListingsJSON = marshalJSON(pm.Listings, "{}")
	m.PricingJSON = marshalJSON(pm.Pricing, "{}")
	m.InventoryJSON = marshalJSON(pm.Inventory, "{}")
	m.SyncStateJSON = marshalJSON(pm.SyncState, "{}")
}

// ProductMappingModelFromDomain creates a new persistence model from a domain ProductMapping.
func ProductMappingModelFromDomain(pm *integration.ProductMapping) *ProductMappingModel {
	m := &ProductMappingModel{}
	m.FromDomain(pm)
	return m
}

func marshalJSON(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return fallback
	}
	return string(data)
}
