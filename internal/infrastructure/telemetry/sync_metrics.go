package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/storelink/backend/internal/domain/integration"
)

// SyncMetrics exports sync engine measurements as OpenTelemetry instruments.
// It satisfies the application Metrics interface and provides observer
// callbacks for the credential cache, rate limiter and retry policy.
type SyncMetrics struct {
	jobs        *Counter
	jobDuration *Histogram
	items       *Counter
	adjustments *Counter
	orders      *Counter
	refreshes   *Counter
	rateWaits   *Counter
	retries     *Counter
}

// NewSyncMetrics creates all instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	if m.jobs, err = NewCounter(meter, "sync_jobs_total", "Finished sync jobs", "{job}"); err != nil {
		return nil, err
	}
	if m.jobDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "sync_job_duration_seconds",
		Description: "Sync job run time",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.items, err = NewCounter(meter, "sync_items_total", "Processed SKUs by outcome", "{item}"); err != nil {
		return nil, err
	}
	if m.adjustments, err = NewCounter(meter, "inventory_adjustments_total", "Stock adjustments by platform and outcome", "{adjustment}"); err != nil {
		return nil, err
	}
	if m.orders, err = NewCounter(meter, "order_lines_total", "Ingested order lines", "{line}"); err != nil {
		return nil, err
	}
	if m.refreshes, err = NewCounter(meter, "credential_refreshes_total", "Platform credential refreshes", "{refresh}"); err != nil {
		return nil, err
	}
	if m.rateWaits, err = NewCounter(meter, "rate_limit_waits_total", "Rate limiter wait cycles", "{wait}"); err != nil {
		return nil, err
	}
	if m.retries, err = NewCounter(meter, "remote_call_retries_total", "Retried remote calls", "{retry}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAdjustment counts one per-platform stock adjustment
func (m *SyncMetrics) RecordAdjustment(ctx context.Context, platform integration.PlatformCode, adjustType integration.AdjustType, outcome integration.TransactionOutcome) {
	m.adjustments.Inc(ctx,
		AttrPlatform.String(string(platform)),
		AttrAdjustType.String(string(adjustType)),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordItem counts one SKU processed by a job
func (m *SyncMetrics) RecordItem(ctx context.Context, jobType integration.JobType, outcome integration.ItemOutcome) {
	m.items.Inc(ctx, AttrJobType.String(string(jobType)), AttrOutcome.String(string(outcome)))
}

// RecordJob counts a finished job and records its duration
func (m *SyncMetrics) RecordJob(ctx context.Context, jobType integration.JobType, state integration.JobState, duration time.Duration) {
	attrs := []attribute.KeyValue{AttrJobType.String(string(jobType)), AttrJobState.String(string(state))}
	m.jobs.Inc(ctx, attrs...)
	m.jobDuration.RecordDuration(ctx, duration, attrs...)
}

// RecordOrders counts order lines applied to stock and lines skipped
func (m *SyncMetrics) RecordOrders(ctx context.Context, applied, skipped int) {
	if applied > 0 {
		m.orders.Add(ctx, int64(applied), AttrOutcome.String("applied"))
	}
	if skipped > 0 {
		m.orders.Add(ctx, int64(skipped), AttrOutcome.String("skipped"))
	}
}

// ObserveRefresh matches the credential cache refresh observer
func (m *SyncMetrics) ObserveRefresh(ctx context.Context, platform integration.PlatformCode, err error) {
	m.refreshes.Inc(ctx, AttrPlatform.String(string(platform)), AttrOutcome.String(outcomeOf(err)))
}

// ObserveRateLimitWait matches the rate limiter wait observer
func (m *SyncMetrics) ObserveRateLimitWait(ctx context.Context, key string, granted bool) {
	m.rateWaits.Inc(ctx, AttrBucket.String(key), AttrGranted.Bool(granted))
}

// ObserveRetry matches the retry policy observer
func (m *SyncMetrics) ObserveRetry(ctx context.Context, name string, attempt int, err error) {
	m.retries.Inc(ctx, AttrOperation.String(name))
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
