package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// Archiver stores a pruned batch before it is deleted
type Archiver interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
}

// MarkerPurger removes expired order acknowledgment markers
type MarkerPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// LogRetentionConfig holds configuration for audit log retention
type LogRetentionConfig struct {
	// Retention is how long debug and info entries are kept
	Retention time.Duration
	// BatchSize is the number of entries pruned per round trip
	BatchSize int
	// ArchivePrefix is the object key prefix of archived batches
	ArchivePrefix string
}

// DefaultLogRetentionConfig returns default configuration
func DefaultLogRetentionConfig() LogRetentionConfig {
	return LogRetentionConfig{
		Retention:     30 * 24 * time.Hour,
		BatchSize:     500,
		ArchivePrefix: "sync-logs",
	}
}

// LogRetention prunes low-severity audit entries, optionally archiving
// each batch as NDJSON first. Warn and error entries are never removed.
type LogRetention struct {
	config   LogRetentionConfig
	logs     integration.SyncLogRepository
	archiver Archiver
	markers  MarkerPurger
	logger   *zap.Logger
	now      func() time.Time
}

// NewLogRetention creates a retention task. archiver may be nil.
func NewLogRetention(config LogRetentionConfig, logs integration.SyncLogRepository, archiver Archiver, logger *zap.Logger) *LogRetention {
	defaults := DefaultLogRetentionConfig()
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.ArchivePrefix == "" {
		config.ArchivePrefix = defaults.ArchivePrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRetention{
		config:   config,
		logs:     logs,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMarkerPurger makes each run also drop expired acknowledgment markers
func (r *LogRetention) WithMarkerPurger(p MarkerPurger) *LogRetention {
	r.markers = p
	return r
}

// Run prunes every eligible entry and returns the number deleted
func (r *LogRetention) Run(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.config.Retention)
	var total int64
	for batch := 0; ; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		entries, err := r.logs.FindLowSeverityBefore(ctx, cutoff, r.config.BatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to load expired logs: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		if r.archiver != nil {
			body, err := encodeNDJSON(entries)
			if err != nil {
				return total, err
			}
			key := fmt.Sprintf("%s/%s-%04d.ndjson", r.config.ArchivePrefix, cutoff.UTC().Format("20060102T150405Z"), batch)
			if err := r.archiver.Upload(ctx, key, body, "application/x-ndjson"); err != nil {
				return total, fmt.Errorf("failed to archive logs: %w", err)
			}
		}

		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		n, err := r.logs.DeleteByIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("failed to delete expired logs: %w", err)
		}
		total += n

		if len(entries) < r.config.BatchSize {
			break
		}
	}

	if r.markers != nil {
		purged, err := r.markers.PurgeExpired(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to purge acknowledgment markers: %w", err)
		}
		r.logger.Info("Expired acknowledgment markers purged", zap.Int64("count", purged))
	}

	r.logger.Info("Sync log retention finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", total),
		zap.Bool("archived", r.archiver != nil),
	)
	return total, nil
}

type archivedLog struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	JobID     *uuid.UUID     `json:"job_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func encodeNDJSON(entries []integration.SyncLog) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(archivedLog{
			ID:        e.ID,
			Kind:      e.Kind,
			Severity:  string(e.Severity),
			Message:   e.Message,
			Details:   e.Details,
			JobID:     e.JobID,
			CreatedAt: e.CreatedAt,
		}); err != nil {
			return nil, fmt.Errorf("failed to encode log %s: %w", e.ID, err)
		}
	}
	return buf.Bytes(), nil
}
