package scheduler

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type memoryJobs struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]integration.SyncJob
	staleSeen bool
}

func newMemoryJobs(seed ...integration.SyncJob) *memoryJobs {
	m := &memoryJobs{jobs: make(map[uuid.UUID]integration.SyncJob)}
	for _, j := range seed {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *memoryJobs) Save(_ context.Context, job *integration.SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobs) FindByID(_ context.Context, id uuid.UUID) (*integration.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, integration.ErrJobNotFound
	}
	return &job, nil
}

func (m *memoryJobs) ListRecent(_ context.Context, jobType integration.JobType, limit int) ([]integration.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncJob
	for _, j := range m.jobs {
		if jobType == "" || j.Type == jobType {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryJobs) LastCompleted(_ context.Context, jobType integration.JobType) (*integration.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *integration.SyncJob
	for _, j := range m.jobs {
		if j.Type != jobType || j.State != integration.JobStateCompleted || j.StartedAt == nil {
			continue
		}
		if last == nil || j.StartedAt.After(*last.StartedAt) {
			job := j
			last = &job
		}
	}
	return last, nil
}

func (m *memoryJobs) FailStale(_ context.Context, before time.Time, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleSeen = true
	var n int64
	for id, j := range m.jobs {
		if !j.State.IsTerminal() && j.CreatedAt.Before(before) {
			j.State = integration.JobStateFailed
			j.Error = reason
			m.jobs[id] = j
			n++
		}
	}
	return n, nil
}

func (m *memoryJobs) get(t *testing.T, id uuid.UUID) integration.SyncJob {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	require.True(t, ok, "job %s not saved", id)
	return job
}

type memoryMappings struct {
	mappings []integration.ProductMapping
}

func (m *memoryMappings) FindBySKU(_ context.Context, sku string) (*integration.ProductMapping, error) {
	for i := range m.mappings {
		if m.mappings[i].SKU == sku {
			mapping := m.mappings[i]
			return &mapping, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (m *memoryMappings) FindActive(context.Context) ([]integration.ProductMapping, error) {
	return m.mappings, nil
}

func (m *memoryMappings) List(context.Context, integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error) {
	return m.mappings, int64(len(m.mappings)), nil
}

func (m *memoryMappings) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	_, err := m.FindBySKU(ctx, sku)
	return err == nil, nil
}

type memoryLogs struct {
	mu      sync.Mutex
	entries []integration.SyncLog
}

func (m *memoryLogs) Append(_ context.Context, entry *integration.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryLogs) FindLowSeverityBefore(_ context.Context, before time.Time, limit int) ([]integration.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncLog
	for _, e := range m.entries {
		if (e.Severity == integration.SeverityDebug || e.Severity == integration.SeverityInfo) && e.CreatedAt.Before(before) {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryLogs) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.entries[:0]
	var n int64
	for _, e := range m.entries {
		if drop[e.ID] {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

func (m *memoryLogs) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Kind
	}
	return out
}

func (m *memoryLogs) last() integration.SyncLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []integration.SyncEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event integration.SyncEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []integration.SyncEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]integration.SyncEventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// skuSyncer answers SyncSKU from a per-SKU table. When gate is set every call
// blocks on it after signalling entered.
type skuSyncer struct {
	mu       sync.Mutex
	outcomes map[string]syncResult
	calls    []string
	entered  chan string
	gate     chan struct{}
}

type syncResult struct {
	outcome integration.ItemOutcome
	err     error
}

func newSKUSyncer() *skuSyncer {
	return &skuSyncer{outcomes: make(map[string]syncResult)}
}

func (s *skuSyncer) set(sku string, outcome integration.ItemOutcome, err error) *skuSyncer {
	s.outcomes[sku] = syncResult{outcome: outcome, err: err}
	return s
}

func (s *skuSyncer) sync(ctx context.Context, sku string) (integration.ItemOutcome, error) {
	s.mu.Lock()
	s.calls = append(s.calls, sku)
	res, ok := s.outcomes[sku]
	s.mu.Unlock()

	if s.entered != nil {
		s.entered <- sku
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return integration.ItemFailed, ctx.Err()
		}
	}
	if !ok {
		return integration.ItemSuccess, nil
	}
	return res.outcome, res.err
}

func (s *skuSyncer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type inventorySyncer struct{ *skuSyncer }

func (s inventorySyncer) SyncSKU(ctx context.Context, sku string, _ *uuid.UUID) (integration.ItemOutcome, error) {
	return s.sync(ctx, sku)
}

type priceSyncer struct{ *skuSyncer }

func (s priceSyncer) SyncSKU(ctx context.Context, sku string) (integration.ItemOutcome, error) {
	return s.sync(ctx, sku)
}

// MockOrderIngester is a mock implementation of OrderIngester
type MockOrderIngester struct {
	mock.Mock
}

func (m *MockOrderIngester) WindowStart(lastRun *time.Time) time.Time {
	args := m.Called(lastRun)
	return args.Get(0).(time.Time)
}

func (m *MockOrderIngester) Ingest(ctx context.Context, since time.Time, jobID *uuid.UUID, cancelled func() bool) (*appintegration.IngestResult, error) {
	args := m.Called(ctx, since, jobID, cancelled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.IngestResult), args.Error(1)
}

func syncableMapping(t *testing.T, sku string) integration.ProductMapping {
	t.Helper()
	mapping, err := integration.NewProductMapping(sku, sku)
	require.NoError(t, err)
	require.NoError(t, mapping.SetListing(integration.PlatformSmartStore, integration.PlatformListing{
		Ref: integration.PlatformRef{ProductID: "ss-" + sku},
	}))
	require.NoError(t, mapping.SetListing(integration.PlatformShopify, integration.PlatformListing{
		Ref: integration.PlatformRef{InventoryID: "inv-" + sku, LocationID: "loc-1"},
	}))
	require.NoError(t, mapping.Activate())
	return *mapping
}

type schedulerFixture struct {
	jobs      *memoryJobs
	mappings  *memoryMappings
	inventory *skuSyncer
	prices    *skuSyncer
	logs      *memoryLogs
	notifier  *recordingNotifier
	scheduler *SyncScheduler
}

func newSchedulerFixture(t *testing.T, concurrency int, orders OrderIngester, skus ...string) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		jobs:      newMemoryJobs(),
		mappings:  &memoryMappings{},
		inventory: newSKUSyncer(),
		prices:    newSKUSyncer(),
		logs:      &memoryLogs{},
		notifier:  &recordingNotifier{},
	}
	for _, sku := range skus {
		f.mappings.mappings = append(f.mappings.mappings, syncableMapping(t, sku))
	}

	deps := SyncSchedulerDeps{
		Jobs:      f.jobs,
		Mappings:  f.mappings,
		Inventory: inventorySyncer{f.inventory},
		Prices:    priceSyncer{f.prices},
		Audit:     f.logs,
		Notifier:  f.notifier,
	}
	if orders != nil {
		deps.Orders = orders
	}
	config := DefaultSyncSchedulerConfig()
	config.Concurrency = concurrency
	s, err := NewSyncScheduler(config, deps, newTestLogger())
	require.NoError(t, err)
	f.scheduler = s
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return f
}

// finished waits for all jobs and returns the stored record
func (f *schedulerFixture) finished(t *testing.T, id uuid.UUID) integration.SyncJob {
	t.Helper()
	f.scheduler.Wait()
	return f.jobs.get(t, id)
}
