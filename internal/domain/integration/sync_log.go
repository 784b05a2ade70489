package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity ranks audit log entries
type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// LowSeverities are the levels removed by log retention
var LowSeverities = []Severity{SeverityDebug, SeverityInfo}

// SyncLog is a structured audit entry written for every scheduled run,
// independently of the job's own state.
type SyncLog struct {
	ID        uuid.UUID
	Kind      string
	Severity  Severity
	Message   string
	Details   map[string]any
	JobID     *uuid.UUID
	CreatedAt time.Time
}

// NewSyncLog creates an audit entry
func NewSyncLog(kind string, severity Severity, message string, details map[string]any) *SyncLog {
	return &SyncLog{
		ID:        uuid.New(),
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Details:   details,
		CreatedAt: time.Now(),
	}
}

// SyncLogRepository stores audit entries
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLog) error
	// FindLowSeverityBefore returns at most limit debug/info entries older than before, oldest first
	FindLowSeverityBefore(ctx context.Context, before time.Time, limit int) ([]SyncLog, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
