package integration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/domain/shared"
	"github.com/storelink/backend/internal/infrastructure/telemetry"
)

// Order ingestion defaults
const (
	DefaultOrderOverlap         = 10 * time.Minute
	DefaultOrderInitialLookback = 24 * time.Hour
	DefaultOrderPageDelay       = 500 * time.Millisecond
	DefaultOrderAckTTL          = 30 * 24 * time.Hour

	// maxOrderWindow is the widest range the order list accepts per query
	maxOrderWindow = 24 * time.Hour
	// maxOrderPages bounds one window so a misbehaving remote cannot loop forever
	maxOrderPages = 1000
	// confirmBatchSize is the number of product orders per confirm call
	confirmBatchSize = 30
)

// OrderIngestionConfig tunes the pipeline
type OrderIngestionConfig struct {
	PageSize        int
	PageDelay       time.Duration
	Overlap         time.Duration
	InitialLookback time.Duration
	AckTTL          time.Duration
	Statuses        []integration.OrderStatus
	// ConfirmOrders acknowledges ingested orders on the marketplace
	ConfirmOrders bool
}

func (c OrderIngestionConfig) withDefaults() OrderIngestionConfig {
	if c.PageSize <= 0 {
		c.PageSize = integration.DefaultOrderPageSize
	}
	if c.PageDelay < 0 {
		c.PageDelay = 0
	}
	if c.Overlap <= 0 {
		c.Overlap = DefaultOrderOverlap
	}
	if c.InitialLookback <= 0 {
		c.InitialLookback = DefaultOrderInitialLookback
	}
	if c.AckTTL <= 0 {
		c.AckTTL = DefaultOrderAckTTL
	}
	if len(c.Statuses) == 0 {
		c.Statuses = []integration.OrderStatus{integration.OrderStatusPayed}
	}
	return c
}

// IngestResult summarizes one ingestion pass
type IngestResult struct {
	From                time.Time `json:"from"`
	To                  time.Time `json:"to"`
	Orders              int       `json:"orders"`
	Acknowledged        int       `json:"acknowledged"`
	AlreadyAcknowledged int       `json:"already_acknowledged"`
	Excluded            int       `json:"excluded"`
	LinesApplied        int       `json:"lines_applied"`
	LinesSkipped        int       `json:"lines_skipped"`
	LinesFailed         int       `json:"lines_failed"`
	Confirmed           int       `json:"confirmed"`
}

// Counts maps the pass onto job counters: one item per order seen
func (r *IngestResult) Counts() integration.JobCounts {
	failed := r.Orders - r.Acknowledged - r.AlreadyAcknowledged
	return integration.JobCounts{
		Processed: r.Orders,
		Success:   r.Acknowledged - r.Excluded,
		Failed:    failed,
		Skipped:   r.AlreadyAcknowledged + r.Excluded,
	}
}

type lineStatus int

const (
	lineApplied lineStatus = iota
	lineSkipped
	lineFailed
)

// OrderIngestionPipeline turns paid marketplace orders into stock decrements on every platform
type OrderIngestionPipeline struct {
	source     integration.OrderSource
	reconciler *InventoryReconciler
	acks       shared.IdempotencyStore
	cfg        OrderIngestionConfig
	metrics    Metrics
	now        func() time.Time
	logger     *zap.Logger
}

// NewOrderIngestionPipeline creates the pipeline
func NewOrderIngestionPipeline(
	source integration.OrderSource,
	reconciler *InventoryReconciler,
	acks shared.IdempotencyStore,
	cfg OrderIngestionConfig,
	logger *zap.Logger,
) *OrderIngestionPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderIngestionPipeline{
		source:     source,
		reconciler: reconciler,
		acks:       acks,
		cfg:        cfg.withDefaults(),
		metrics:    reconciler.metrics,
		now:        reconciler.now,
		logger:     logger,
	}
}

// WindowStart returns where the next pass starts: the last run minus the
// overlap, or the initial lookback when the pipeline never ran.
func (p *OrderIngestionPipeline) WindowStart(lastRun *time.Time) time.Time {
	if lastRun == nil || lastRun.IsZero() {
		return p.now().Add(-p.cfg.InitialLookback)
	}
	return lastRun.Add(-p.cfg.Overlap)
}

// FetchSince lazily lists orders changed in [since, now). The end of the
// window is fixed when iteration starts, so every range over the sequence is
// a fresh, finite pass. A listing error is yielded once and ends the sequence.
func (p *OrderIngestionPipeline) FetchSince(ctx context.Context, since time.Time) iter.Seq2[integration.RemoteOrder, error] {
	return func(yield func(integration.RemoteOrder, error) bool) {
		p.fetch(ctx, since, p.now(), yield)
	}
}

func (p *OrderIngestionPipeline) fetch(ctx context.Context, from, to time.Time, yield func(integration.RemoteOrder, error) bool) {
	first := true
	for start := from; start.Before(to); {
		end := start.Add(maxOrderWindow)
		if end.After(to) {
			end = to
		}

		for page := 1; ; page++ {
			if page > maxOrderPages {
				p.logger.Warn("Order listing exceeded page limit",
					zap.Time("from", start),
					zap.Time("to", end),
					zap.Int("max_pages", maxOrderPages),
				)
				break
			}
			if !first {
				if err := sleepCtx(ctx, p.cfg.PageDelay); err != nil {
					yield(integration.RemoteOrder{}, err)
					return
				}
			}
			first = false

			result, err := p.source.ListOrders(ctx, integration.OrderQuery{
				From:     start,
				To:       end,
				Statuses: p.cfg.Statuses,
				Page:     page,
				PageSize: p.cfg.PageSize,
			})
			if err != nil {
				yield(integration.RemoteOrder{}, fmt.Errorf("failed to list orders page %d: %w", page, err))
				return
			}
			for _, order := range result.Orders {
				if !yield(order, nil) {
					return
				}
			}
			if result.IsLast() {
				break
			}
		}
		start = end
	}
}

// orderState tracks one order across the pages of a pass
type orderState struct {
	acknowledged bool
	complete     bool
	decremented  bool
	lineIDs      []string
}

// Ingest applies every new order line in [since, now) as a subtract on both
// platforms. Line markers are written per platform as soon as a decrement
// succeeds, so a retried order never decrements the same platform twice.
// Order markers are written at the end of a pass that read every page, for
// orders whose lines all succeeded or were skipped. cancelled is polled
// between orders.
func (p *OrderIngestionPipeline) Ingest(ctx context.Context, since time.Time, jobID *uuid.UUID, cancelled func() bool) (*IngestResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "orders", "ingest")
	defer span.End()

	result, err := p.ingest(ctx, since, jobID, cancelled)
	if result != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrOrders, result.Orders,
			"lines_applied", result.LinesApplied,
			"lines_failed", result.LinesFailed,
		)
	}
	telemetry.RecordError(span, err)
	return result, err
}

func (p *OrderIngestionPipeline) ingest(ctx context.Context, since time.Time, jobID *uuid.UUID, cancelled func() bool) (*IngestResult, error) {
	result := &IngestResult{From: since, To: p.now()}
	if !since.Before(result.To) {
		return result, integration.NewValidationError("since", "must be in the past")
	}

	var (
		ids    []string
		states = make(map[string]*orderState)
		runErr error
	)

	p.fetch(ctx, since, result.To, func(order integration.RemoteOrder, err error) bool {
		if err != nil {
			runErr = err
			return false
		}
		if cancelled != nil && cancelled() {
			runErr = integration.ErrJobCancelled
			return false
		}

		st, ok := states[order.OrderID]
		if !ok {
			done, err := p.acks.IsProcessed(ctx, orderAckKey(order.OrderID))
			if err != nil {
				runErr = fmt.Errorf("failed to check order %s: %w", order.OrderID, err)
				return false
			}
			st = &orderState{acknowledged: done, complete: true}
			states[order.OrderID] = st
			ids = append(ids, order.OrderID)
			result.Orders++
			if done {
				result.AlreadyAcknowledged++
			}
		}
		if st.acknowledged {
			return true
		}

		if order.IsExcluded() {
			p.logger.Info("Order excluded from stock decrement",
				zap.String("order_id", order.OrderID),
				zap.String("status", string(order.Status)),
			)
			return true
		}

		for _, line := range order.Lines {
			if line.IsExcluded() {
				continue
			}
			st.decremented = true
			status, err := p.applyLine(ctx, order.OrderID, line, jobID)
			switch status {
			case lineApplied:
				result.LinesApplied++
				st.lineIDs = append(st.lineIDs, line.LineID)
			case lineSkipped:
				result.LinesSkipped++
			case lineFailed:
				result.LinesFailed++
				st.complete = false
				if integration.IsJobFatal(err) {
					runErr = err
					return false
				}
			}
		}
		return true
	})

	// An order can continue on a page the aborted pass never read, so no
	// order is acknowledged after a stop. Line markers keep the re-run exact.
	if runErr != nil {
		ids = nil
	}

	var confirm []string
	for _, id := range ids {
		st := states[id]
		if st.acknowledged || !st.complete {
			continue
		}
		if _, err := p.acks.MarkProcessed(ctx, orderAckKey(id), p.cfg.AckTTL); err != nil {
			p.logger.Error("Failed to acknowledge order", zap.String("order_id", id), zap.Error(err))
			continue
		}
		result.Acknowledged++
		if !st.decremented {
			result.Excluded++
		}
		confirm = append(confirm, st.lineIDs...)
	}

	if p.cfg.ConfirmOrders && len(confirm) > 0 && runErr == nil {
		result.Confirmed = p.confirm(ctx, confirm)
	}

	p.metrics.RecordOrders(ctx, result.LinesApplied, result.LinesSkipped)
	p.logger.Info("Order ingestion pass finished",
		zap.Time("from", result.From),
		zap.Time("to", result.To),
		zap.Int("orders", result.Orders),
		zap.Int("acknowledged", result.Acknowledged),
		zap.Int("lines_applied", result.LinesApplied),
		zap.Int("lines_failed", result.LinesFailed),
		zap.Error(runErr),
	)
	return result, runErr
}

// applyLine decrements the platforms that have not yet recorded this line
func (p *OrderIngestionPipeline) applyLine(ctx context.Context, orderID string, line integration.OrderLine, jobID *uuid.UUID) (lineStatus, error) {
	logger := p.logger.With(
		zap.String("order_id", orderID),
		zap.String("line_id", line.LineID),
		zap.String("sku", line.SKU),
	)
	if line.Quantity <= 0 || line.SKU == "" {
		logger.Warn("Order line has no SKU or quantity, skipping")
		return lineSkipped, nil
	}

	var pending []integration.PlatformCode
	for _, code := range integration.AllPlatforms {
		done, err := p.acks.IsProcessed(ctx, lineAckKey(line.LineID, code))
		if err != nil {
			return lineFailed, err
		}
		if !done {
			pending = append(pending, code)
		}
	}
	if len(pending) == 0 {
		return lineApplied, nil
	}

	scope := integration.ScopeBoth
	if len(pending) == 1 {
		scope = integration.ScopeOf(pending[0])
	}
	adjust, err := p.reconciler.Adjust(ctx, AdjustCommand{
		SKU:    line.SKU,
		Scope:  scope,
		Type:   integration.AdjustSubtract,
		Amount: line.Quantity,
		Reason: fmt.Sprintf("order %s line %s", orderID, line.LineID),
		Actor:  integration.ActorWebhook,
		JobID:  jobID,
	})
	if errors.Is(err, integration.ErrMappingNotFound) || errors.Is(err, integration.ErrValidation) {
		logger.Info("Order line has no usable mapping, skipping", zap.Error(err))
		return lineSkipped, nil
	}
	if err != nil {
		logger.Error("Order line adjustment failed", zap.Error(err))
		return lineFailed, err
	}

	failed := false
	for _, outcome := range adjust.Platforms {
		if outcome.Success || errors.Is(outcome.Err, integration.ErrMappingNotFound) {
			if _, err := p.acks.MarkProcessed(ctx, lineAckKey(line.LineID, outcome.Platform), p.cfg.AckTTL); err != nil {
				logger.Error("Failed to record line marker",
					zap.String("platform", outcome.Platform.String()),
					zap.Error(err),
				)
			}
			continue
		}
		failed = true
	}
	if failed {
		return lineFailed, adjust.Err()
	}
	return lineApplied, nil
}

// confirm acknowledges product orders on the marketplace in batches. Failures are logged only.
func (p *OrderIngestionPipeline) confirm(ctx context.Context, lineIDs []string) int {
	confirmed := 0
	for start := 0; start < len(lineIDs); start += confirmBatchSize {
		end := min(start+confirmBatchSize, len(lineIDs))
		batch := lineIDs[start:end]
		if err := p.source.ConfirmOrders(ctx, batch); err != nil {
			p.logger.Warn("Failed to confirm orders on marketplace",
				zap.Int("count", len(batch)),
				zap.Error(err),
			)
			continue
		}
		confirmed += len(batch)
	}
	return confirmed
}

func orderAckKey(orderID string) string {
	return "order:" + orderID
}

func lineAckKey(lineID string, code integration.PlatformCode) string {
	return fmt.Sprintf("order-line:%s:%s", lineID, code)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
