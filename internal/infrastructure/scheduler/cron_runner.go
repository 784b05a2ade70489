package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// TaskLock claims one cron firing across instances.
// ok is false when another instance already claimed the key.
type TaskLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// CronTask is a named job fired on a cron schedule
type CronTask struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// CronRunnerConfig holds configuration for the cron runner
type CronRunnerConfig struct {
	// Location is the time zone schedules are evaluated in
	Location *time.Location
	// TaskTimeout bounds a single task run
	TaskTimeout time.Duration
	// LockTTL is how long a firing stays claimed; it must exceed the skew between instances
	LockTTL time.Duration
}

// DefaultCronRunnerConfig returns default configuration
func DefaultCronRunnerConfig() CronRunnerConfig {
	return CronRunnerConfig{
		Location:    time.UTC,
		TaskTimeout: 10 * time.Minute,
		LockTTL:     5 * time.Minute,
	}
}

// CronRunner fires registered tasks on their schedules and writes an audit
// entry for every run
type CronRunner struct {
	config CronRunnerConfig
	cron   *cron.Cron
	lock   TaskLock
	audit  integration.SyncLogRepository
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	tasks   map[string]CronTask
	entries map[string]cron.EntryID
	started bool
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewCronRunner creates a cron runner. lock and audit may be nil.
func NewCronRunner(config CronRunnerConfig, lock TaskLock, audit integration.SyncLogRepository, logger *zap.Logger) *CronRunner {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultCronRunnerConfig().TaskTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultCronRunnerConfig().LockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronRunner{
		config: config,
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		lock:    lock,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
		tasks:   make(map[string]CronTask),
		entries: make(map[string]cron.EntryID),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Register adds a task. Tasks must be registered before Start.
func (r *CronRunner) Register(task CronTask) error {
	if task.Name == "" || task.Run == nil {
		return fmt.Errorf("%w: task name and run func are required", ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(task.Schedule); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, task.Schedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrCronAlreadyStarted
	}
	if _, ok := r.tasks[task.Name]; ok {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, task.Name)
	}

	id, err := r.cron.AddFunc(task.Schedule, func() { r.fire(task) })
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, task.Schedule, err)
	}
	r.tasks[task.Name] = task
	r.entries[task.Name] = id
	return nil
}

// Start begins firing tasks
func (r *CronRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.started = true
	r.cron.Start()

	for name, id := range r.entries {
		r.logger.Info("Cron task scheduled",
			zap.String("task", name),
			zap.String("schedule", r.tasks[name].Schedule),
			zap.Time("next_run", r.cron.Entry(id).Next),
		)
	}
	return nil
}

// Stop stops firing tasks and waits for running ones to return
func (r *CronRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	r.cancel()
	stopped := r.cron.Stop()

	select {
	case <-stopped.Done():
		r.logger.Info("Cron runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs a registered task immediately, bypassing the cross-instance lock
func (r *CronRunner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	task, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("cron task %q not registered", name)
	}
	return r.execute(ctx, task)
}

// fire is the cron entry point. The firing is claimed under a key that
// includes the scheduled minute, so instances firing the same slot agree on it.
func (r *CronRunner) fire(task CronTask) {
	ctx := r.baseCtx
	if r.lock != nil {
		slot := r.now().In(r.config.Location).Truncate(time.Minute)
		key := fmt.Sprintf("cron:%s:%d", task.Name, slot.Unix())
		_, ok, err := r.lock.TryLock(ctx, key, r.config.LockTTL)
		if err != nil {
			r.logger.Error("Failed to claim cron firing", zap.String("task", task.Name), zap.Error(err))
			return
		}
		if !ok {
			r.logger.Debug("Cron firing claimed by another instance", zap.String("task", task.Name))
			return
		}
	}
	_ = r.execute(ctx, task)
}

func (r *CronRunner) execute(ctx context.Context, task CronTask) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.TaskTimeout)
	defer cancel()

	start := r.now()
	err := task.Run(ctx)
	duration := r.now().Sub(start)

	severity := integration.SeverityInfo
	msg := "cron task succeeded"
	details := map[string]any{"duration_ms": duration.Milliseconds()}
	switch {
	case errors.Is(err, integration.ErrJobAlreadyRunning):
		severity, msg = integration.SeverityWarn, "cron task skipped: job already running"
	case err != nil:
		severity, msg = integration.SeverityError, "cron task failed"
	}
	if err != nil {
		details["error"] = err.Error()
		r.logger.Warn("Cron task returned error",
			zap.String("task", task.Name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		r.logger.Info("Cron task finished",
			zap.String("task", task.Name),
			zap.Duration("duration", duration),
		)
	}

	if r.audit != nil {
		entry := integration.NewSyncLog("cron."+task.Name, severity, msg, details)
		if aerr := r.audit.Append(context.WithoutCancel(ctx), entry); aerr != nil {
			r.logger.Error("Failed to write cron audit log", zap.String("task", task.Name), zap.Error(aerr))
		}
	}
	return err
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
