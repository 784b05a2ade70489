package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdjustType is the kind of quantity change
type AdjustType string

const (
	AdjustSet      AdjustType = "set"
	AdjustAdd      AdjustType = "add"
	AdjustSubtract AdjustType = "subtract"
)

// IsValid returns true if the adjust type is known
func (t AdjustType) IsValid() bool {
	switch t {
	case AdjustSet, AdjustAdd, AdjustSubtract:
		return true
	}
	return false
}

// Apply computes the new quantity. Subtract clamps at zero.
func (t AdjustType) Apply(current, amount int) int {
	switch t {
	case AdjustSet:
		return amount
	case AdjustAdd:
		return current + amount
	case AdjustSubtract:
		return max(0, current-amount)
	}
	return current
}

// Actor identifies who initiated a quantity change
type Actor string

const (
	ActorSystem  Actor = "system"
	ActorManual  Actor = "manual"
	ActorWebhook Actor = "webhook"
)

// IsValid returns true if the actor is known
func (a Actor) IsValid() bool {
	switch a {
	case ActorSystem, ActorManual, ActorWebhook:
		return true
	}
	return false
}

// TransactionOutcome is the result of the platform write
type TransactionOutcome string

const (
	OutcomeSuccess TransactionOutcome = "success"
	OutcomeError   TransactionOutcome = "error"
)

// InventoryTransaction is an immutable record of one quantity change attempt
// on one platform. Failed attempts keep NewQuantity equal to PreviousQuantity.
type InventoryTransaction struct {
	ID               uuid.UUID
	SKU              string
	Platform         PlatformCode
	AdjustType       AdjustType
	PreviousQuantity int
	Delta            int
	NewQuantity      int
	Reason           string
	Actor            Actor
	Outcome          TransactionOutcome
	Error            string
	JobID            *uuid.UUID
	CreatedAt        time.Time
}

// TransactionInput carries the fields shared by successful and failed records
type TransactionInput struct {
	SKU        string
	Platform   PlatformCode
	AdjustType AdjustType
	Delta      int
	Reason     string
	Actor      Actor
	JobID      *uuid.UUID
	At         time.Time
}

// NewSuccessfulTransaction records an applied change
func NewSuccessfulTransaction(in TransactionInput, previous, next int) *InventoryTransaction {
	return &InventoryTransaction{
		ID:               uuid.New(),
		SKU:              in.SKU,
		Platform:         in.Platform,
		AdjustType:       in.AdjustType,
		PreviousQuantity: previous,
		Delta:            in.Delta,
		NewQuantity:      next,
		Reason:           in.Reason,
		Actor:            in.Actor,
		Outcome:          OutcomeSuccess,
		JobID:            in.JobID,
		CreatedAt:        in.At,
	}
}

// NewFailedTransaction records an attempt that did not change the platform
func NewFailedTransaction(in TransactionInput, previous int, cause error) *InventoryTransaction {
	tx := &InventoryTransaction{
		ID:               uuid.New(),
		SKU:              in.SKU,
		Platform:         in.Platform,
		AdjustType:       in.AdjustType,
		PreviousQuantity: previous,
		Delta:            in.Delta,
		NewQuantity:      previous,
		Reason:           in.Reason,
		Actor:            in.Actor,
		Outcome:          OutcomeError,
		JobID:            in.JobID,
		CreatedAt:        in.At,
	}
	if cause != nil {
		tx.Error = cause.Error()
	}
	return tx
}

// InventoryTransactionRepository is append-only
type InventoryTransactionRepository interface {
	Append(ctx context.Context, tx *InventoryTransaction) error
	// ListBySKU returns newest-first history and the total count
	ListBySKU(ctx context.Context, sku string, page, pageSize int) ([]InventoryTransaction, int64, error)
}
