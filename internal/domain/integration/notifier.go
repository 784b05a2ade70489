package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncEventType names a notification emitted by the sync engine
type SyncEventType string

const (
	EventJobStarted   SyncEventType = "job.started"
	EventJobCompleted SyncEventType = "job.completed"
	EventJobFailed    SyncEventType = "job.failed"
	EventJobCancelled SyncEventType = "job.cancelled"
	EventItemFailed   SyncEventType = "item.failed"
)

// SyncEvent is a structured notification for the surrounding application
type SyncEvent struct {
	Type       SyncEventType
	JobID      uuid.UUID
	JobType    JobType
	SKU        string
	Message    string
	Counts     *JobCounts
	OccurredAt time.Time
}

// Notifier delivers sync events. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, event SyncEvent)
}

// NopNotifier discards all events
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(context.Context, SyncEvent) {}
