// Package shared holds ports used across the sync layers.
package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys of work already applied, such as ingested
// orders and order lines, so replays over an overlapping window are no-ops.
type IdempotencyStore interface {
	// MarkProcessed sets the marker for key until ttl elapses.
	// It reports false when a live marker already existed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether a live marker exists for key
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
