package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
	applog "github.com/storelink/backend/internal/infrastructure/logger"
)

// InventorySyncer reconciles the stock of one SKU
type InventorySyncer interface {
	SyncSKU(ctx context.Context, sku string, jobID *uuid.UUID) (integration.ItemOutcome, error)
}

// PriceSyncer reconciles the price of one SKU
type PriceSyncer interface {
	SyncSKU(ctx context.Context, sku string) (integration.ItemOutcome, error)
}

// OrderIngester runs one order ingestion pass
type OrderIngester interface {
	WindowStart(lastRun *time.Time) time.Time
	Ingest(ctx context.Context, since time.Time, jobID *uuid.UUID, cancelled func() bool) (*appintegration.IngestResult, error)
}

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// Concurrency bounds the SKUs processed in parallel by one job
	Concurrency int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Concurrency: 4,
		JobTimeout:  2 * time.Hour,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Concurrency <= 0 || c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncSchedulerDeps are the collaborators of the scheduler. Prices, Orders,
// Audit, Notifier and Metrics are optional.
type SyncSchedulerDeps struct {
	Jobs      integration.SyncJobRepository
	Mappings  integration.ProductMappingReader
	Inventory InventorySyncer
	Prices    PriceSyncer
	Orders    OrderIngester
	Audit     integration.SyncLogRepository
	Notifier  integration.Notifier
	Metrics   appintegration.Metrics
}

// runningJob is a job owned by this process
type runningJob struct {
	mu        sync.Mutex
	job       *integration.SyncJob
	cancelled atomic.Bool
}

func (r *runningJob) snapshot() *integration.SyncJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := *r.job
	return &job
}

func (r *runningJob) update(fn func(job *integration.SyncJob)) *integration.SyncJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.job)
	job := *r.job
	return &job
}

// SyncScheduler runs sync jobs in the background with per-key exclusion
type SyncScheduler struct {
	config SyncSchedulerConfig
	deps   SyncSchedulerDeps
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	active  map[string]*runningJob
	byID    map[uuid.UUID]*runningJob
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, deps SyncSchedulerDeps, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.Jobs == nil || deps.Mappings == nil || deps.Inventory == nil {
		return nil, fmt.Errorf("%w: jobs, mappings and inventory are required", ErrInvalidConfig)
	}
	if deps.Notifier == nil {
		deps.Notifier = integration.NopNotifier{}
	}
	if deps.Metrics == nil {
		deps.Metrics = appintegration.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SyncScheduler{
		config:  config,
		deps:    deps,
		logger:  logger,
		now:     time.Now,
		active:  make(map[string]*runningJob),
		byID:    make(map[uuid.UUID]*runningJob),
		baseCtx: ctx,
		cancel:  cancel,
	}, nil
}

// Start marks jobs left pending or running by a previous process as failed
func (s *SyncScheduler) Start(ctx context.Context) error {
	n, err := s.deps.Jobs.FailStale(ctx, s.now(), "interrupted by restart")
	if err != nil {
		return fmt.Errorf("failed to fail stale jobs: %w", err)
	}
	if n > 0 {
		s.logger.Warn("Marked stale sync jobs as failed", zap.Int64("count", n))
	}
	s.logger.Info("Sync scheduler started",
		zap.Int("concurrency", s.config.Concurrency),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for them to finish
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerFullSync starts inventory and price reconciliation of every active mapping
func (s *SyncScheduler) TriggerFullSync(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	return s.trigger(ctx, integration.JobTypeFull, "", trigger)
}

// TriggerSKUSync starts inventory reconciliation of one SKU
func (s *SyncScheduler) TriggerSKUSync(ctx context.Context, sku string, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	if sku == "" {
		return nil, integration.NewValidationError("sku", "must not be empty")
	}
	return s.trigger(ctx, integration.JobTypeInventory, sku, trigger)
}

// TriggerPriceSync starts price reconciliation of every active mapping
func (s *SyncScheduler) TriggerPriceSync(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	if s.deps.Prices == nil {
		return nil, fmt.Errorf("%w: price sync", integration.ErrPlatformNotConfigured)
	}
	return s.trigger(ctx, integration.JobTypePrice, "", trigger)
}

// TriggerOrderIngestion starts one order ingestion pass
func (s *SyncScheduler) TriggerOrderIngestion(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	if s.deps.Orders == nil {
		return nil, fmt.Errorf("%w: order ingestion", integration.ErrPlatformNotConfigured)
	}
	return s.trigger(ctx, integration.JobTypeOrder, "", trigger)
}

// trigger creates a pending job and runs it in the background. The returned
// job is a snapshot taken before the run starts.
func (s *SyncScheduler) trigger(ctx context.Context, jobType integration.JobType, sku string, trigger integration.JobTrigger) (*integration.SyncJob, error) {
	job, err := integration.NewSyncJob(jobType, sku, trigger, s.now())
	if err != nil {
		return nil, err
	}
	key := job.ExclusionKey()

	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		s.mu.Unlock()
		return nil, ErrSchedulerNotRunning
	}
	if running, ok := s.active[key]; ok {
		s.mu.Unlock()
		return running.snapshot(), fmt.Errorf("%w: %s", integration.ErrJobAlreadyRunning, key)
	}
	if err := s.deps.Jobs.Save(ctx, job); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	rj := &runningJob{job: job}
	s.active[key] = rj
	s.byID[job.ID] = rj
	s.wg.Add(1)
	s.mu.Unlock()

	snapshot := rj.snapshot()
	go s.run(rj, key)

	s.logger.Info("Sync job triggered",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(jobType)),
		zap.String("sku", sku),
		zap.String("trigger", string(trigger)),
	)
	return snapshot, nil
}

// Cancel requests cancellation. Running jobs stop between SKUs.
func (s *SyncScheduler) Cancel(ctx context.Context, id uuid.UUID) (*integration.SyncJob, error) {
	s.mu.Lock()
	rj, ok := s.byID[id]
	s.mu.Unlock()
	if ok {
		rj.cancelled.Store(true)
		s.logger.Info("Sync job cancellation requested", zap.String("job_id", id.String()))
		return rj.snapshot(), nil
	}

	job, err := s.deps.Jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State.IsTerminal() {
		return job, fmt.Errorf("%w: job is %s", integration.ErrInvalidJobTransition, job.State)
	}
	// owned by another process or left behind by a crash
	if err := job.Cancel(s.now()); err != nil {
		return nil, err
	}
	if err := s.deps.Jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// JobStatus returns the live state of a job owned by this process, or the stored record
func (s *SyncScheduler) JobStatus(ctx context.Context, id uuid.UUID) (*integration.SyncJob, error) {
	s.mu.Lock()
	rj, ok := s.byID[id]
	s.mu.Unlock()
	if ok {
		return rj.snapshot(), nil
	}
	return s.deps.Jobs.FindByID(ctx, id)
}

// RecentJobs lists the newest stored jobs, overlaying the live state of jobs
// this process is running. An empty jobType lists every type.
func (s *SyncScheduler) RecentJobs(ctx context.Context, jobType integration.JobType, limit int) ([]integration.SyncJob, error) {
	jobs, err := s.deps.Jobs.ListRecent(ctx, jobType, limit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range jobs {
		if rj, ok := s.byID[jobs[i].ID]; ok {
			jobs[i] = *rj.snapshot()
		}
	}
	return jobs, nil
}

// Wait blocks until every job started so far has finished
func (s *SyncScheduler) Wait() {
	s.wg.Wait()
}

// run executes one job to a terminal state
func (s *SyncScheduler) run(rj *runningJob, key string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.active, key)
		delete(s.byID, rj.job.ID)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.baseCtx, s.config.JobTimeout)
	defer cancel()
	ctx, logger := applog.WithJobID(ctx, s.logger.With(zap.String("job_type", string(rj.job.Type))), rj.job.ID.String())

	if rj.cancelled.Load() {
		s.finish(ctx, rj, integration.ErrJobCancelled, logger)
		return
	}

	job := rj.update(func(job *integration.SyncJob) { _ = job.Start(s.now()) })
	if err := s.deps.Jobs.Save(ctx, job); err != nil {
		logger.Error("Failed to save running job", zap.Error(err))
	}
	s.notify(ctx, job, integration.EventJobStarted, "")

	var err error
	switch job.Type {
	case integration.JobTypeFull:
		err = s.runSKUs(ctx, rj, true, true)
	case integration.JobTypeInventory:
		if job.SKU != "" {
			err = s.runSKU(ctx, rj, job.SKU)
		} else {
			err = s.runSKUs(ctx, rj, true, false)
		}
	case integration.JobTypePrice:
		err = s.runSKUs(ctx, rj, false, true)
	case integration.JobTypeOrder:
		err = s.runOrders(ctx, rj)
	}
	s.finish(ctx, rj, err, logger)
}

// finish moves the job to its terminal state, persists it and emits audit, metrics and events
func (s *SyncScheduler) finish(ctx context.Context, rj *runningJob, runErr error, logger *zap.Logger) {
	if rj.cancelled.Load() && runErr == nil {
		runErr = integration.ErrJobCancelled
	}
	now := s.now()
	job := rj.update(func(job *integration.SyncJob) {
		switch {
		case errors.Is(runErr, integration.ErrJobCancelled):
			_ = job.Cancel(now)
		case runErr != nil:
			_ = job.Fail(now, runErr)
		default:
			_ = job.Complete(now)
		}
	})

	saveCtx := context.WithoutCancel(ctx)
	if err := s.deps.Jobs.Save(saveCtx, job); err != nil {
		logger.Error("Failed to save finished job", zap.Error(err))
	}
	s.deps.Metrics.RecordJob(saveCtx, job.Type, job.State, job.Duration())

	severity := integration.SeverityInfo
	event := integration.EventJobCompleted
	switch job.State {
	case integration.JobStateFailed:
		severity, event = integration.SeverityError, integration.EventJobFailed
	case integration.JobStateCancelled:
		severity, event = integration.SeverityWarn, integration.EventJobCancelled
	}
	s.audit(saveCtx, "job."+string(job.Type), severity, fmt.Sprintf("sync job %s", job.State), &job.ID, map[string]any{
		"sku":       job.SKU,
		"trigger":   string(job.Trigger),
		"processed": job.Counts.Processed,
		"success":   job.Counts.Success,
		"failed":    job.Counts.Failed,
		"skipped":   job.Counts.Skipped,
		"error":     job.Error,
	})
	s.notify(saveCtx, job, event, job.Error)

	logger.Info("Sync job finished",
		zap.String("state", string(job.State)),
		zap.Int("processed", job.Counts.Processed),
		zap.Int("success", job.Counts.Success),
		zap.Int("failed", job.Counts.Failed),
		zap.Int("skipped", job.Counts.Skipped),
		zap.Duration("duration", job.Duration()),
		zap.Error(runErr),
	)
}

// runSKU syncs one SKU. Only job-fatal errors fail the job.
func (s *SyncScheduler) runSKU(ctx context.Context, rj *runningJob, sku string) error {
	outcome, err := s.deps.Inventory.SyncSKU(ctx, sku, &rj.job.ID)
	s.record(ctx, rj, sku, outcome, err)
	if integration.IsJobFatal(err) {
		return err
	}
	return nil
}

// runSKUs processes every syncable mapping with bounded concurrency.
// A job-fatal error stops the remaining SKUs; it fails the job only when no
// SKU succeeded before it.
func (s *SyncScheduler) runSKUs(ctx context.Context, rj *runningJob, inventory, price bool) error {
	mappings, err := s.deps.Mappings.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}
	if price && s.deps.Prices == nil {
		price = false
	}

	var (
		stop      atomic.Bool
		fatalMu   sync.Mutex
		fatal     error
		succeeded atomic.Int32
	)
	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)

	for _, m := range mappings {
		if !m.IsSyncable() {
			continue
		}
		if rj.cancelled.Load() || stop.Load() || ctx.Err() != nil {
			break
		}
		sku := m.SKU
		g.Go(func() error {
			if rj.cancelled.Load() || stop.Load() {
				return nil
			}
			outcome, err := s.syncOne(ctx, rj, sku, inventory, price)
			s.record(ctx, rj, sku, outcome, err)
			if outcome == integration.ItemSuccess {
				succeeded.Add(1)
			}
			if integration.IsJobFatal(err) {
				stop.Store(true)
				fatalMu.Lock()
				if fatal == nil && succeeded.Load() == 0 {
					fatal = err
				}
				fatalMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if rj.cancelled.Load() {
		return integration.ErrJobCancelled
	}
	return fatal
}

// syncOne runs the requested aspects for one SKU and merges their outcomes
func (s *SyncScheduler) syncOne(ctx context.Context, rj *runningJob, sku string, inventory, price bool) (integration.ItemOutcome, error) {
	var outcomes []integration.ItemOutcome
	var errs []error
	if inventory {
		outcome, err := s.deps.Inventory.SyncSKU(ctx, sku, &rj.job.ID)
		outcomes = append(outcomes, outcome)
		if err != nil && outcome != integration.ItemSkipped {
			errs = append(errs, err)
		}
		if integration.IsJobFatal(err) {
			return integration.ItemFailed, err
		}
	}
	if price {
		outcome, err := s.deps.Prices.SyncSKU(ctx, sku)
		outcomes = append(outcomes, outcome)
		if err != nil && outcome != integration.ItemSkipped {
			errs = append(errs, err)
		}
	}
	return mergeOutcomes(outcomes), errors.Join(errs...)
}

func mergeOutcomes(outcomes []integration.ItemOutcome) integration.ItemOutcome {
	merged := integration.ItemSkipped
	for _, o := range outcomes {
		switch o {
		case integration.ItemFailed:
			return integration.ItemFailed
		case integration.ItemSuccess:
			merged = integration.ItemSuccess
		}
	}
	return merged
}

// record counts one item outcome
func (s *SyncScheduler) record(ctx context.Context, rj *runningJob, sku string, outcome integration.ItemOutcome, err error) {
	job := rj.update(func(job *integration.SyncJob) { job.Counts.Add(outcome) })
	s.deps.Metrics.RecordItem(ctx, job.Type, outcome)
	if outcome != integration.ItemFailed {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.logger.Warn("Sync item failed",
		zap.String("job_id", job.ID.String()),
		zap.String("sku", sku),
		zap.Error(err),
	)
	s.deps.Notifier.Notify(ctx, integration.SyncEvent{
		Type:       integration.EventItemFailed,
		JobID:      job.ID,
		JobType:    job.Type,
		SKU:        sku,
		Message:    msg,
		OccurredAt: s.now(),
	})
}

// runOrders ingests orders since the last started order job
func (s *SyncScheduler) runOrders(ctx context.Context, rj *runningJob) error {
	lastRun, err := s.lastOrderRun(ctx)
	if err != nil {
		return err
	}
	since := s.deps.Orders.WindowStart(lastRun)

	result, err := s.deps.Orders.Ingest(ctx, since, &rj.job.ID, rj.cancelled.Load)
	if result != nil {
		counts := result.Counts()
		rj.update(func(job *integration.SyncJob) { job.Counts = counts })
	}
	return err
}

// lastOrderRun returns the start time of the last completed order job
func (s *SyncScheduler) lastOrderRun(ctx context.Context) (*time.Time, error) {
	last, err := s.deps.Jobs.LastCompleted(ctx, integration.JobTypeOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to load last order job: %w", err)
	}
	if last == nil || last.StartedAt == nil {
		return nil, nil
	}
	at := *last.StartedAt
	return &at, nil
}

func (s *SyncScheduler) notify(ctx context.Context, job *integration.SyncJob, eventType integration.SyncEventType, msg string) {
	counts := job.Counts
	s.deps.Notifier.Notify(ctx, integration.SyncEvent{
		Type:       eventType,
		JobID:      job.ID,
		JobType:    job.Type,
		SKU:        job.SKU,
		Message:    msg,
		Counts:     &counts,
		OccurredAt: s.now(),
	})
}

func (s *SyncScheduler) audit(ctx context.Context, kind string, severity integration.Severity, msg string, jobID *uuid.UUID, details map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	entry := integration.NewSyncLog(kind, severity, msg, details)
	entry.JobID = jobID
	if err := s.deps.Audit.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to write sync audit log", zap.String("kind", kind), zap.Error(err))
	}
}
