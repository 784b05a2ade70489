package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storelink/backend/internal/domain/integration"
)

// PlatformRefInput carries the remote identifiers of one listing
type PlatformRefInput struct {
	ProductID   string `json:"product_id" binding:"max=100"`
	VariantID   string `json:"variant_id" binding:"max=100"`
	InventoryID string `json:"inventory_id" binding:"max=100"`
	LocationID  string `json:"location_id" binding:"max=100"`
}

// ListingInput is the per-platform part of a mapping request
type ListingInput struct {
	Ref         PlatformRefInput `json:"ref"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	Currency    string           `json:"currency" binding:"omitempty,len=3"`
	SafetyStock int              `json:"safety_stock" binding:"min=0"`
}

// PricingPolicyInput mirrors integration.PricingPolicy
type PricingPolicyInput struct {
	MarginPercent decimal.Decimal `json:"margin_percent"`
	Rounding      string          `json:"rounding" binding:"omitempty,oneof=none half_up ceil floor charm"`
	RoundingUnit  decimal.Decimal `json:"rounding_unit"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
}

// ToDomain converts the input to a policy
func (p PricingPolicyInput) ToDomain() integration.PricingPolicy {
	rounding := integration.RoundingStrategy(p.Rounding)
	if rounding == "" {
		rounding = integration.RoundingHalfUp
	}
	return integration.PricingPolicy{
		MarginPercent: p.MarginPercent,
		Rounding:      rounding,
		RoundingUnit:  p.RoundingUnit,
		MinPrice:      p.MinPrice,
		MaxPrice:      p.MaxPrice,
	}
}

// InventoryPolicyInput mirrors integration.InventoryPolicy
type InventoryPolicyInput struct {
	SyncEnabled      bool   `json:"sync_enabled"`
	Bidirectional    bool   `json:"bidirectional"`
	PriorityPlatform string `json:"priority_platform" binding:"omitempty,oneof=SMARTSTORE SHOPIFY"`
}

// ToDomain converts the input to a policy
func (p InventoryPolicyInput) ToDomain() integration.InventoryPolicy {
	priority := integration.PlatformCode(p.PriorityPlatform)
	if priority == "" {
		priority = integration.PlatformSmartStore
	}
	return integration.InventoryPolicy{
		SyncEnabled:      p.SyncEnabled,
		Bidirectional:    p.Bidirectional,
		PriorityPlatform: priority,
	}
}

// CreateMappingRequest creates a mapping manually
type CreateMappingRequest struct {
	SKU       string                  `json:"sku" binding:"required,min=1,max=100"`
	Name      string                  `json:"name" binding:"max=200"`
	Listings  map[string]ListingInput `json:"listings"`
	Pricing   *PricingPolicyInput     `json:"pricing"`
	Inventory *InventoryPolicyInput   `json:"inventory"`
}

// UpdatePoliciesRequest replaces the policies of a mapping
type UpdatePoliciesRequest struct {
	Pricing   PricingPolicyInput   `json:"pricing"`
	Inventory InventoryPolicyInput `json:"inventory"`
}

// MappingFilter is the query of the mapping list
type MappingFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending active inactive discontinued out_of_stock"`
	Search   string `form:"search" binding:"max=100"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
}

// ListingResponse is the per-platform part of a mapping response
type ListingResponse struct {
	Ref         integration.PlatformRef `json:"ref"`
	BasePrice   decimal.Decimal         `json:"base_price"`
	Currency    string                  `json:"currency,omitempty"`
	Available   int                     `json:"available"`
	Reserved    int                     `json:"reserved"`
	SafetyStock int                     `json:"safety_stock"`
}

// MappingResponse represents a mapping in API responses
type MappingResponse struct {
	ID        uuid.UUID                                          `json:"id"`
	SKU       string                                             `json:"sku"`
	Name      string                                             `json:"name"`
	Status    string                                             `json:"status"`
	Listings  map[integration.PlatformCode]ListingResponse       `json:"listings"`
	Pricing   integration.PricingPolicy                          `json:"pricing"`
	Inventory integration.InventoryPolicy                        `json:"inventory"`
	SyncState map[integration.SyncAspect]integration.AspectState `json:"sync_state"`
	CreatedAt time.Time                                          `json:"created_at"`
	UpdatedAt time.Time                                          `json:"updated_at"`
}

// ToMappingResponse converts a mapping to its response
func ToMappingResponse(m *integration.ProductMapping) MappingResponse {
	listings := make(map[integration.PlatformCode]ListingResponse, len(m.Listings))
	for code, l := range m.Listings {
		listings[code] = ListingResponse{
			Ref:         l.Ref,
			BasePrice:   l.BasePrice,
			Currency:    l.Currency,
			Available:   l.Stock.Available,
			Reserved:    l.Stock.Reserved,
			SafetyStock: l.Stock.SafetyStock,
		}
	}
	state := make(map[integration.SyncAspect]integration.AspectState, 3)
	for _, aspect := range []integration.SyncAspect{integration.AspectInventory, integration.AspectPrice, integration.AspectProduct} {
		state[aspect] = m.Aspect(aspect)
	}
	return MappingResponse{
		ID:        m.ID,
		SKU:       m.SKU,
		Name:      m.Name,
		Status:    string(m.Status),
		Listings:  listings,
		Pricing:   m.Pricing,
		Inventory: m.Inventory,
		SyncState: state,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// AdjustInventoryRequest is the body of a manual stock adjustment
type AdjustInventoryRequest struct {
	SKU           string         `json:"sku" binding:"required,min=1,max=100"`
	PlatformScope string         `json:"platform_scope" binding:"required,oneof=SMARTSTORE SHOPIFY BOTH"`
	AdjustType    string         `json:"adjust_type" binding:"required,oneof=set add subtract"`
	Amount        int            `json:"amount" binding:"min=0"`
	Amounts       map[string]int `json:"amounts"`
	Reason        string         `json:"reason" binding:"max=500"`
}

// ToCommand converts the request into a manual AdjustCommand
func (r AdjustInventoryRequest) ToCommand() AdjustCommand {
	cmd := AdjustCommand{
		SKU:    r.SKU,
		Scope:  integration.PlatformScope(r.PlatformScope),
		Type:   integration.AdjustType(r.AdjustType),
		Amount: r.Amount,
		Reason: r.Reason,
		Actor:  integration.ActorManual,
	}
	if len(r.Amounts) > 0 {
		cmd.Amounts = make(map[integration.PlatformCode]int, len(r.Amounts))
		for code, amount := range r.Amounts {
			cmd.Amounts[integration.PlatformCode(code)] = amount
		}
	}
	return cmd
}

// PlatformOutcomeResponse is one platform's part of an adjustment response
type PlatformOutcomeResponse struct {
	Platform         integration.PlatformCode `json:"platform"`
	Success          bool                     `json:"success"`
	PreviousQuantity int                      `json:"previous_quantity"`
	NewQuantity      int                      `json:"new_quantity"`
	TransactionID    uuid.UUID                `json:"transaction_id"`
	Error            string                   `json:"error,omitempty"`
}

// AdjustResponse is the result of a manual adjustment
type AdjustResponse struct {
	SKU       string                    `json:"sku"`
	Outcome   string                    `json:"outcome"`
	Platforms []PlatformOutcomeResponse `json:"platforms"`
}

// ToAdjustResponse converts an AdjustResult
func ToAdjustResponse(r *AdjustResult) AdjustResponse {
	resp := AdjustResponse{SKU: r.SKU, Outcome: string(r.Outcome)}
	for _, p := range r.Platforms {
		out := PlatformOutcomeResponse{
			Platform:         p.Platform,
			Success:          p.Success,
			PreviousQuantity: p.PreviousQuantity,
			NewQuantity:      p.NewQuantity,
			TransactionID:    p.TransactionID,
		}
		if p.Err != nil {
			out.Error = p.Err.Error()
		}
		resp.Platforms = append(resp.Platforms, out)
	}
	return resp
}

// TransactionResponse represents an inventory transaction in API responses
type TransactionResponse struct {
	ID               uuid.UUID  `json:"id"`
	SKU              string     `json:"sku"`
	Platform         string     `json:"platform"`
	AdjustType       string     `json:"adjust_type"`
	PreviousQuantity int        `json:"previous_quantity"`
	Delta            int        `json:"delta"`
	NewQuantity      int        `json:"new_quantity"`
	Reason           string     `json:"reason,omitempty"`
	Actor            string     `json:"actor"`
	Outcome          string     `json:"outcome"`
	Error            string     `json:"error,omitempty"`
	JobID            *uuid.UUID `json:"job_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToTransactionResponses converts a page of transactions
func ToTransactionResponses(txs []integration.InventoryTransaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = TransactionResponse{
			ID:               tx.ID,
			SKU:              tx.SKU,
			Platform:         tx.Platform.String(),
			AdjustType:       string(tx.AdjustType),
			PreviousQuantity: tx.PreviousQuantity,
			Delta:            tx.Delta,
			NewQuantity:      tx.NewQuantity,
			Reason:           tx.Reason,
			Actor:            string(tx.Actor),
			Outcome:          string(tx.Outcome),
			Error:            tx.Error,
			JobID:            tx.JobID,
			CreatedAt:        tx.CreatedAt,
		}
	}
	return out
}

// JobResponse represents a sync job in API responses
type JobResponse struct {
	ID         uuid.UUID             `json:"id"`
	Type       string                `json:"type"`
	State      string                `json:"state"`
	SKU        string                `json:"sku,omitempty"`
	Trigger    string                `json:"trigger"`
	Counts     integration.JobCounts `json:"counts"`
	Error      string                `json:"error,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
}

// ToJobResponse converts a job
func ToJobResponse(j *integration.SyncJob) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Type:       string(j.Type),
		State:      string(j.State),
		SKU:        j.SKU,
		Trigger:    string(j.Trigger),
		Counts:     j.Counts,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}
