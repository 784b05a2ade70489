package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storelink/backend/internal/domain/integration"
)

// InventoryTransactionModel is the persistence model for the append-only InventoryTransaction
type InventoryTransactionModel struct {
	AppendOnlyModel
	SKU              string                         `gorm:"type:varchar(100);not null;index:idx_inventory_transactions_sku_created,priority:1"`
	Platform         integration.PlatformCode       `gorm:"type:varchar(20);not null"`
	AdjustType       integration.AdjustType         `gorm:"type:varchar(20);not null"`
	PreviousQuantity int                            `gorm:"not null"`
	Delta            int                            `gorm:"not null"`
	NewQuantity      int                            `gorm:"not null"`
	Reason           string                         `gorm:"type:varchar(255)"`
	Actor            integration.Actor              `gorm:"type:varchar(20);not null"`
	Outcome          integration.TransactionOutcome `gorm:"type:varchar(20);not null"`
	Error            string                         `gorm:"type:text"`
	JobID            *uuid.UUID                     `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (InventoryTransactionModel) TableName() string {
	return "inventory_transactions"
}

// ToDomain converts the persistence model to a domain InventoryTransaction
func (m *InventoryTransactionModel) ToDomain() *integration.InventoryTransaction {
	return &integration.InventoryTransaction{
		ID:               m.ID,
		SKU:              m.SKU,
		Platform:         m.Platform,
		AdjustType:       m.AdjustType,
		PreviousQuantity: m.PreviousQuantity,
		Delta:            m.Delta,
		NewQuantity:      m.NewQuantity,
		Reason:           m.Reason,
		Actor:            m.Actor,
		Outcome:          m.Outcome,
		Error:            m.Error,
		JobID:            m.JobID,
		CreatedAt:        m.CreatedAt,
	}
}

// InventoryTransactionModelFromDomain creates a persistence model from a domain InventoryTransaction
func InventoryTransactionModelFromDomain(tx *integration.InventoryTransaction) *InventoryTransactionModel {
	return &InventoryTransactionModel{
		AppendOnlyModel:  AppendOnlyModel{ID: tx.ID, CreatedAt: tx.CreatedAt},
		SKU:              tx.SKU,
		Platform:         tx.Platform,
		AdjustType:       tx.AdjustType,
		PreviousQuantity: tx.PreviousQuantity,
		Delta:            tx.Delta,
		NewQuantity:      tx.NewQuantity,
		Reason:           tx.Reason,
		Actor:            tx.Actor,
		Outcome:          tx.Outcome,
		Error:            tx.Error,
		JobID:            tx.JobID,
	}
}

// SyncJobModel is the persistence model for SyncJob
type SyncJobModel struct {
	AppendOnlyModel
	Type       integration.JobType    `gorm:"type:varchar(20);not null;index:idx_sync_jobs_type_created,priority:1"`
	State      integration.JobState   `gorm:"type:varchar(20);not null;index"`
	SKU        string                 `gorm:"type:varchar(100)"`
	Trigger    integration.JobTrigger `gorm:"type:varchar(20);not null"`
	Processed  int                    `gorm:"not null;default:0"`
	Succeeded  int                    `gorm:"column:success_count;not null;default:0"`
	Failed     int                    `gorm:"column:failed_count;not null;default:0"`
	Skipped    int                    `gorm:"column:skipped_count;not null;default:0"`
	Error      string                 `gorm:"type:text"`
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain SyncJob
func (m *SyncJobModel) ToDomain() *integration.SyncJob {
	return &integration.SyncJob{
		ID:      m.ID,
		Type:    m.Type,
		State:   m.State,
		SKU:     m.SKU,
		Trigger: m.Trigger,
		Counts: integration.JobCounts{
			Processed: m.Processed,
			Success:   m.Succeeded,
			Failed:    m.Failed,
			Skipped:   m.Skipped,
		},
		Error:      m.Error,
		CreatedAt:  m.CreatedAt,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

// SyncJobModelFromDomain creates a persistence model from a domain SyncJob
func SyncJobModelFromDomain(job *integration.SyncJob) *SyncJobModel {
	return &SyncJobModel{
		AppendOnlyModel: AppendOnlyModel{ID: job.ID, CreatedAt: job.CreatedAt},
		Type:            job.Type,
		State:           job.State,
		SKU:             job.SKU,
		Trigger:         job.Trigger,
		Processed:       job.Counts.Processed,
		Succeeded:       job.Counts.Success,
		Failed:          job.Counts.Failed,
		Skipped:         job.Counts.Skipped,
		Error:           job.Error,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
	}
}

// SyncLogModel is the persistence model for audit entries
type SyncLogModel struct {
	ID          uuid.UUID            `gorm:"type:uuid;primary_key"`
	Kind        string               `gorm:"type:varchar(50);not null"`
	Severity    integration.Severity `gorm:"type:varchar(10);not null;index:idx_sync_logs_severity_created,priority:1"`
	Message     string               `gorm:"type:text"`
	DetailsJSON string               `gorm:"type:jsonb;column:details"`
	JobID       *uuid.UUID           `gorm:"type:uuid;index"`
	CreatedAt   time.Time            `gorm:"not null;index:idx_sync_logs_severity_created,priority:2"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() *integration.SyncLog {
	entry := &integration.SyncLog{
		ID:        m.ID,
		Kind:      m.Kind,
		Severity:  m.Severity,
		Message:   m.Message,
		JobID:     m.JobID,
		CreatedAt: m.CreatedAt,
	}
	if m.DetailsJSON != "" {
		_ = json.Unmarshal([]byte(m.DetailsJSON), &entry.Details)
	}
	return entry
}

// SyncLogModelFromDomain creates a persistence model from a domain SyncLog
func SyncLogModelFromDomain(entry *integration.SyncLog) *SyncLogModel {
	return &SyncLogModel{
		ID:          entry.ID,
		Kind:        entry.Kind,
		Severity:    entry.Severity,
		Message:     entry.Message,
		DetailsJSON: marshalJSON(entry.Details, "{}"),
		JobID:       entry.JobID,
		CreatedAt:   entry.CreatedAt,
	}
}

// ExchangeRateModel is the persistence model for fetched exchange rates
type ExchangeRateModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	Base      string          `gorm:"type:char(3);not null;index:idx_exchange_rates_pair_fetched,priority:1"`
	Quote     string          `gorm:"type:char(3);not null;index:idx_exchange_rates_pair_fetched,priority:2"`
	Rate      decimal.Decimal `gorm:"type:decimal(20,10);not null"`
	Source    string          `gorm:"type:varchar(100)"`
	FetchedAt time.Time       `gorm:"not null;index:idx_exchange_rates_pair_fetched,priority:3"`
}

// TableName returns the table name for GORM
func (ExchangeRateModel) TableName() string {
	return "exchange_rates"
}

// ToDomain converts the persistence model to a domain ExchangeRate
func (m *ExchangeRateModel) ToDomain() *integration.ExchangeRate {
	return &integration.ExchangeRate{
		ID:        m.ID,
		Base:      m.Base,
		Quote:     m.Quote,
		Rate:      m.Rate,
		Source:    m.Source,
		FetchedAt: m.FetchedAt,
	}
}

// ExchangeRateModelFromDomain creates a persistence model from a domain ExchangeRate
func ExchangeRateModelFromDomain(rate *integration.ExchangeRate) *ExchangeRateModel {
	return &ExchangeRateModel{
		ID:        rate.ID,
		Base:      rate.Base,
		Quote:     rate.Quote,
		Rate:      rate.Rate,
		Source:    rate.Source,
		FetchedAt: rate.FetchedAt,
	}
}
