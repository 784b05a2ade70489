package integration

import (
	"context"
	"time"

	"github.com/storelink/backend/internal/domain/integration"
)

// Metrics records sync engine measurements
type Metrics interface {
	RecordAdjustment(ctx context.Context, platform integration.PlatformCode, adjustType integration.AdjustType, outcome integration.TransactionOutcome)
	RecordItem(ctx context.Context, jobType integration.JobType, outcome integration.ItemOutcome)
	RecordJob(ctx context.Context, jobType integration.JobType, state integration.JobState, duration time.Duration)
	RecordOrders(ctx context.Context, applied, skipped int)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) RecordAdjustment(context.Context, integration.PlatformCode, integration.AdjustType, integration.TransactionOutcome) {
}
func (NopMetrics) RecordItem(context.Context, integration.JobType, integration.ItemOutcome)                {}
func (NopMetrics) RecordJob(context.Context, integration.JobType, integration.JobState, time.Duration) {}
func (NopMetrics) RecordOrders(context.Context, int, int)                                                 {}
