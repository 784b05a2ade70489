package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/telemetry"
)

// AdjustCommand requests a stock change for one SKU on one or both platforms
type AdjustCommand struct {
	SKU    string
	Scope  integration.PlatformScope
	Type   integration.AdjustType
	Amount int
	// Amounts overrides Amount per platform
	Amounts map[integration.PlatformCode]int
	Reason  string
	Actor   integration.Actor
	JobID   *uuid.UUID
}

func (c *AdjustCommand) amountFor(code integration.PlatformCode) int {
	if v, ok := c.Amounts[code]; ok {
		return v
	}
	return c.Amount
}

// Validate normalizes the SKU and checks the command
func (c *AdjustCommand) Validate() error {
	sku, err := integration.NormalizeSKU(c.SKU)
	if err != nil {
		return err
	}
	c.SKU = sku
	if !c.Scope.IsValid() {
		return integration.NewValidationError("platform_scope", "must be SMARTSTORE, SHOPIFY or BOTH")
	}
	if !c.Type.IsValid() {
		return integration.NewValidationError("adjust_type", "must be set, add or subtract")
	}
	if c.Actor == "" {
		c.Actor = integration.ActorSystem
	}
	if !c.Actor.IsValid() {
		return integration.NewValidationError("actor", "must be system, manual or webhook")
	}
	for _, code := range c.Scope.Platforms() {
		if c.amountFor(code) < 0 {
			return integration.NewValidationError("amount", "must not be negative")
		}
	}
	for code := range c.Amounts {
		if !code.IsValid() {
			return integration.NewValidationError("amounts", "unsupported platform "+string(code))
		}
	}
	return nil
}

// AdjustOutcome summarizes an adjustment across platforms
type AdjustOutcome string

const (
	AdjustSucceeded AdjustOutcome = "success"
	AdjustPartial   AdjustOutcome = "partial"
	AdjustFailed    AdjustOutcome = "failed"
)

// PlatformOutcome is the independent result on one platform
type PlatformOutcome struct {
	Platform         integration.PlatformCode
	Success          bool
	PreviousQuantity int
	NewQuantity      int
	TransactionID    uuid.UUID
	Err              error
}

// AdjustResult holds the per-platform outcomes of one adjustment
type AdjustResult struct {
	SKU       string
	Outcome   AdjustOutcome
	Platforms []PlatformOutcome
}

// Err returns nil on full success, an ErrPartialFailure wrap on partial success
// and the joined platform errors when every platform failed.
func (r *AdjustResult) Err() error {
	var errs []error
	for _, p := range r.Platforms {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Platform, p.Err))
		}
	}
	switch r.Outcome {
	case AdjustSucceeded:
		return nil
	case AdjustPartial:
		return fmt.Errorf("%w: %w", integration.ErrPartialFailure, errors.Join(errs...))
	default:
		return errors.Join(errs...)
	}
}

// For returns the result for one platform
func (r *AdjustResult) For(code integration.PlatformCode) (PlatformOutcome, bool) {
	for _, p := range r.Platforms {
		if p.Platform == code {
			return p, true
		}
	}
	return PlatformOutcome{}, false
}

func (r *AdjustResult) summarize() {
	succeeded := 0
	for _, p := range r.Platforms {
		if p.Success {
			succeeded++
		}
	}
	switch {
	case succeeded == len(r.Platforms):
		r.Outcome = AdjustSucceeded
	case succeeded == 0:
		r.Outcome = AdjustFailed
	default:
		r.Outcome = AdjustPartial
	}
}

// InventoryReconciler applies stock adjustments to the platforms and records
// one InventoryTransaction per platform attempt.
type InventoryReconciler struct {
	mappings     integration.ProductMappingRepository
	transactions integration.InventoryTransactionRepository
	platforms    *integration.PlatformRegistry
	locker       Locker
	metrics      Metrics
	now          func() time.Time
	logger       *zap.Logger
}

// ReconcilerOption configures an InventoryReconciler
type ReconcilerOption func(*InventoryReconciler)

// WithLocker replaces the in-process per-SKU lock
func WithLocker(l Locker) ReconcilerOption {
	return func(r *InventoryReconciler) {
		r.locker = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) ReconcilerOption {
	return func(r *InventoryReconciler) {
		r.metrics = m
	}
}

// WithClock injects the time source
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *InventoryReconciler) {
		r.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ReconcilerOption {
	return func(r *InventoryReconciler) {
		r.logger = logger
	}
}

// NewInventoryReconciler creates a reconciler
func NewInventoryReconciler(
	mappings integration.ProductMappingRepository,
	transactions integration.InventoryTransactionRepository,
	platforms *integration.PlatformRegistry,
	opts ...ReconcilerOption,
) *InventoryReconciler {
	r := &InventoryReconciler{
		mappings:     mappings,
		transactions: transactions,
		platforms:    platforms,
		locker:       NewKeyedMutex(),
		metrics:      NopMetrics{},
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Adjust applies cmd on every platform of its scope. A platform failure never
// prevents the attempt on the other platform. The returned error is only set
// for invalid commands, missing mappings and lock or persistence failures;
// platform failures are reported through the result.
func (r *InventoryReconciler) Adjust(ctx context.Context, cmd AdjustCommand) (*AdjustResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "adjust")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSKU, cmd.SKU,
		"adjust_type", string(cmd.Type),
	)

	var result *AdjustResult
	err := r.withSKU(ctx, cmd.SKU, func(mapping *integration.ProductMapping) error {
		var err error
		result, err = r.applyLocked(ctx, mapping, cmd)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetAttributes(span, "outcome", string(result.Outcome))
	telemetry.RecordError(span, result.Err())
	return result, nil
}

// withSKU runs fn while holding the SKU lock, with a freshly loaded live mapping
func (r *InventoryReconciler) withSKU(ctx context.Context, sku string, fn func(mapping *integration.ProductMapping) error) error {
	release, err := r.locker.Lock(ctx, lockKey(sku))
	if err != nil {
		return fmt.Errorf("failed to lock sku %s: %w", sku, err)
	}
	defer release()

	mapping, err := r.mappings.FindBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if mapping.IsDeleted() {
		return fmt.Errorf("%w: %s", integration.ErrMappingNotFound, sku)
	}
	return fn(mapping)
}

// applyLocked adjusts every platform of the scope and saves the mapping. The SKU lock must be held.
func (r *InventoryReconciler) applyLocked(ctx context.Context, mapping *integration.ProductMapping, cmd AdjustCommand) (*AdjustResult, error) {
	result := &AdjustResult{SKU: cmd.SKU}
	var lastErr error
	for _, code := range cmd.Scope.Platforms() {
		outcome := r.adjustPlatform(ctx, mapping, cmd, code)
		if outcome.Err != nil {
			lastErr = outcome.Err
		}
		result.Platforms = append(result.Platforms, outcome)
	}
	result.summarize()

	now := r.now()
	if lastErr != nil {
		mapping.MarkFailed(integration.AspectInventory, now, lastErr)
	} else {
		mapping.MarkSynced(integration.AspectInventory, now)
	}
	if err := r.mappings.Save(ctx, mapping); err != nil {
		r.logger.Error("Failed to save mapping after adjustment",
			zap.String("sku", cmd.SKU),
			zap.Error(err),
		)
		return result, fmt.Errorf("failed to save mapping %s: %w", cmd.SKU, err)
	}

	if result.Outcome != AdjustSucceeded {
		r.logger.Warn("Inventory adjustment did not succeed on every platform",
			zap.String("sku", cmd.SKU),
			zap.String("outcome", string(result.Outcome)),
			zap.Error(result.Err()),
		)
	}
	return result, nil
}

// adjustPlatform runs read, compute, write and record for one platform
func (r *InventoryReconciler) adjustPlatform(ctx context.Context, mapping *integration.ProductMapping, cmd AdjustCommand, code integration.PlatformCode) PlatformOutcome {
	amount := cmd.amountFor(code)
	in := integration.TransactionInput{
		SKU:        cmd.SKU,
		Platform:   code,
		AdjustType: cmd.Type,
		Delta:      amount,
		Reason:     cmd.Reason,
		Actor:      cmd.Actor,
		JobID:      cmd.JobID,
	}
	outcome := PlatformOutcome{Platform: code}

	// Last known quantity, used for failed records when the platform was never read
	previous := 0
	if l, ok := mapping.Listing(code); ok {
		previous = l.Stock.Available
	}

	fail := func(err error) PlatformOutcome {
		in.At = r.now()
		tx := integration.NewFailedTransaction(in, previous, err)
		r.record(ctx, tx)
		r.metrics.RecordAdjustment(ctx, code, cmd.Type, integration.OutcomeError)
		outcome.PreviousQuantity = previous
		outcome.NewQuantity = previous
		outcome.TransactionID = tx.ID
		outcome.Err = err
		return outcome
	}

	ref, err := mapping.Ref(code)
	if err != nil {
		return fail(fmt.Errorf("%w: %s has no %s reference", integration.ErrMappingNotFound, cmd.SKU, code))
	}
	platform, err := r.platforms.Get(code)
	if err != nil {
		return fail(err)
	}

	current, err := platform.GetStock(ctx, ref)
	if err != nil {
		return fail(err)
	}
	previous = current

	next := cmd.Type.Apply(current, amount)
	if err := platform.SetStock(ctx, ref, next); err != nil {
		return fail(err)
	}

	in.At = r.now()
	tx := integration.NewSuccessfulTransaction(in, current, next)
	r.record(ctx, tx)
	r.metrics.RecordAdjustment(ctx, code, cmd.Type, integration.OutcomeSuccess)
	mapping.RecordStock(code, next, in.At)

	r.logger.Info("Inventory adjusted",
		zap.String("sku", cmd.SKU),
		zap.String("platform", code.String()),
		zap.String("adjust_type", string(cmd.Type)),
		zap.Int("previous", current),
		zap.Int("new", next),
		zap.String("actor", string(cmd.Actor)),
	)

	outcome.Success = true
	outcome.PreviousQuantity = current
	outcome.NewQuantity = next
	outcome.TransactionID = tx.ID
	return outcome
}

// record appends the transaction. Storage failures are logged and never change the platform outcome.
func (r *InventoryReconciler) record(ctx context.Context, tx *integration.InventoryTransaction) {
	if err := r.transactions.Append(ctx, tx); err != nil {
		r.logger.Error("Failed to append inventory transaction",
			zap.String("sku", tx.SKU),
			zap.String("platform", tx.Platform.String()),
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err),
		)
	}
}

// TransactionHistory returns a page of the SKU's transactions, newest first
func (r *InventoryReconciler) TransactionHistory(ctx context.Context, sku string, page, pageSize int) ([]integration.InventoryTransaction, int64, error) {
	normalized, err := integration.NormalizeSKU(sku)
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return r.transactions.ListBySKU(ctx, normalized, page, pageSize)
}

func lockKey(sku string) string {
	return "inventory:" + sku
}
