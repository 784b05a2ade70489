package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType is the kind of sync job
type JobType string

const (
	JobTypeFull      JobType = "full"
	JobTypeInventory JobType = "inventory"
	JobTypePrice     JobType = "price"
	JobTypeOrder     JobType = "order"
)

// IsValid returns true if the job type is known
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeFull, JobTypeInventory, JobTypePrice, JobTypeOrder:
		return true
	}
	return false
}

// JobState is the lifecycle state of a sync job
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// IsTerminal returns true if no further transition is possible
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// JobTrigger records what started a job
type JobTrigger string

const (
	TriggerManual JobTrigger = "manual"
	TriggerCron   JobTrigger = "cron"
)

// ItemOutcome is the result of processing one SKU inside a job
type ItemOutcome string

const (
	ItemSuccess ItemOutcome = "success"
	ItemFailed  ItemOutcome = "failed"
	ItemSkipped ItemOutcome = "skipped"
)

// JobCounts aggregates per-item outcomes
type JobCounts struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add records one item outcome
func (c *JobCounts) Add(outcome ItemOutcome) {
	c.Processed++
	switch outcome {
	case ItemSuccess:
		c.Success++
	case ItemFailed:
		c.Failed++
	case ItemSkipped:
		c.Skipped++
	}
}

// SyncJob is one scheduler-triggered run.
// State machine: pending -> running -> completed | failed | cancelled.
// A pending job may also be cancelled before it starts.
type SyncJob struct {
	ID         uuid.UUID
	Type       JobType
	State      JobState
	SKU        string
	Trigger    JobTrigger
	Counts     JobCounts
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// NewSyncJob creates a pending job. sku is only set for single-SKU jobs.
func NewSyncJob(jobType JobType, sku string, trigger JobTrigger, now time.Time) (*SyncJob, error) {
	if !jobType.IsValid() {
		return nil, NewValidationError("job_type", "unsupported job type")
	}
	if sku != "" {
		normalized, err := NormalizeSKU(sku)
		if err != nil {
			return nil, err
		}
		sku = normalized
	}
	return &SyncJob{
		ID:        uuid.New(),
		Type:      jobType,
		State:     JobStatePending,
		SKU:       sku,
		Trigger:   trigger,
		CreatedAt: now,
	}, nil
}

// ExclusionKey identifies jobs that must not run concurrently
func (j *SyncJob) ExclusionKey() string {
	if j.SKU != "" {
		return fmt.Sprintf("%s:%s", j.Type, j.SKU)
	}
	return string(j.Type)
}

// Start transitions pending -> running
func (j *SyncJob) Start(now time.Time) error {
	if j.State != JobStatePending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, j.State, JobStateRunning)
	}
	j.State = JobStateRunning
	j.StartedAt = &now
	return nil
}

// Complete transitions running -> completed. Item failures do not prevent completion.
func (j *SyncJob) Complete(now time.Time) error {
	if j.State != JobStateRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, j.State, JobStateCompleted)
	}
	j.State = JobStateCompleted
	j.FinishedAt = &now
	return nil
}

// Fail transitions running -> failed
func (j *SyncJob) Fail(now time.Time, cause error) error {
	if j.State != JobStateRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, j.State, JobStateFailed)
	}
	j.State = JobStateFailed
	j.FinishedAt = &now
	if cause != nil {
		j.Error = cause.Error()
	}
	return nil
}

// Cancel transitions pending|running -> cancelled
func (j *SyncJob) Cancel(now time.Time) error {
	if j.State != JobStatePending && j.State != JobStateRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, j.State, JobStateCancelled)
	}
	j.State = JobStateCancelled
	j.FinishedAt = &now
	return nil
}

// Duration returns the run time of a finished job
func (j *SyncJob) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// SyncJobRepository persists job records
type SyncJobRepository interface {
	Save(ctx context.Context, job *SyncJob) error
	// FindByID returns ErrJobNotFound when the job does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*SyncJob, error)
	ListRecent(ctx context.Context, jobType JobType, limit int) ([]SyncJob, error)
	// LastCompleted returns the completed job of jobType that started last, or nil
	LastCompleted(ctx context.Context, jobType JobType) (*SyncJob, error)
	// FailStale marks jobs left pending/running by a crashed process as failed
	FailStale(ctx context.Context, before time.Time, reason string) (int64, error)
}
