// Package event delivers sync engine notifications to in-process subscribers.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// DefaultBufferSize is the queue length used when none is configured
const DefaultBufferSize = 256

// Handler consumes one event
type Handler func(ctx context.Context, event integration.SyncEvent) error

type subscription struct {
	name    string
	types   map[integration.SyncEventType]bool
	handler Handler
}

func (s subscription) accepts(t integration.SyncEventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// AsyncNotifier queues events on a bounded channel and dispatches them on a
// single goroutine. Notify never blocks: a full queue drops the event.
type AsyncNotifier struct {
	queue   chan integration.SyncEvent
	logger  *zap.Logger
	dropped atomic.Int64

	mu     sync.RWMutex
	subs   []subscription
	closed bool

	stopOnce sync.Once
	done     chan struct{}
}

// NewAsyncNotifier creates a notifier and starts its dispatcher
func NewAsyncNotifier(bufferSize int, logger *zap.Logger) *AsyncNotifier {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &AsyncNotifier{
		queue:  make(chan integration.SyncEvent, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Subscribe registers a handler for the given event types, or all types when none are given
func (n *AsyncNotifier) Subscribe(name string, handler Handler, types ...integration.SyncEventType) {
	sub := subscription{name: name, handler: handler}
	if len(types) > 0 {
		sub.types = make(map[integration.SyncEventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	n.logger.Debug("Notification handler subscribed", zap.String("handler", name))
}

// Notify implements integration.Notifier
func (n *AsyncNotifier) Notify(_ context.Context, event integration.SyncEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}

	select {
	case n.queue <- event:
	default:
		total := n.dropped.Add(1)
		n.logger.Warn("Notification queue full, event dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("job_id", event.JobID.String()),
			zap.Int64("dropped_total", total),
		)
	}
}

// Dropped returns the number of events dropped so far
func (n *AsyncNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Stop stops accepting events and waits until queued ones are delivered
func (n *AsyncNotifier) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})

	select {
	case <-n.done:
		n.logger.Info("Notifier stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		n.mu.RLock()
		subs := make([]subscription, len(n.subs))
		copy(subs, n.subs)
		n.mu.RUnlock()

		for _, sub := range subs {
			if sub.accepts(event.Type) {
				n.dispatch(sub, event)
			}
		}
	}
}

// dispatch isolates a failing or panicking handler from the others
func (n *AsyncNotifier) dispatch(sub subscription, event integration.SyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Notification handler panicked",
				zap.String("handler", sub.name),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r),
			)
		}
	}()

	if err := sub.handler(context.Background(), event); err != nil {
		n.logger.Error("Notification handler failed",
			zap.String("handler", sub.name),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// LogHandler writes every event to logger
func LogHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, event integration.SyncEvent) error {
		fields := []zap.Field{
			zap.String("event_type", string(event.Type)),
			zap.String("job_id", event.JobID.String()),
			zap.String("job_type", string(event.JobType)),
			zap.Time("occurred_at", event.OccurredAt),
		}
		if event.SKU != "" {
			fields = append(fields, zap.String("sku", event.SKU))
		}
		if event.Message != "" {
			fields = append(fields, zap.String("message", event.Message))
		}
		if event.Counts != nil {
			fields = append(fields,
				zap.Int("processed", event.Counts.Processed),
				zap.Int("failed", event.Counts.Failed),
			)
		}

		switch event.Type {
		case integration.EventJobFailed, integration.EventItemFailed:
			logger.Warn("Sync event", fields...)
		default:
			logger.Info("Sync event", fields...)
		}
		return nil
	}
}

var _ integration.Notifier = (*AsyncNotifier)(nil)
