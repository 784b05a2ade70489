package cache

import (
	"context"
	"sync"
	"time"

	"github.com/storelink/backend/internal/domain/shared"
)

// DefaultCleanupInterval is how often expired markers are swept
const DefaultCleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed markers in a map.
// Markers are lost on restart and not shared between instances, so it only
// suits tests and single-instance development.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	expiry    map[string]time.Time
	now       func() time.Time
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryIdempotencyStore
type InMemoryOption func(*InMemoryIdempotencyStore)

// WithClock injects the time source
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		s.now = now
	}
}

// WithCleanupInterval overrides the sweep interval
func WithCleanupInterval(d time.Duration) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		s.interval = d
	}
}

// NewInMemoryIdempotencyStore creates a store and starts its sweeper
func NewInMemoryIdempotencyStore(opts ...InMemoryOption) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		expiry:   make(map[string]time.Time),
		now:      time.Now,
		interval: DefaultCleanupInterval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}

	store.wg.Add(1)
	go store.cleanupLoop()
	return store
}

// MarkProcessed sets the marker unless a live one exists.
// An expired marker is overwritten and reported as new.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.expiry[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether a live marker exists
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.expiry[key]
	return ok && s.now().Before(expiresAt), nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expiresAt := range s.expiry {
		if !now.Before(expiresAt) {
			delete(s.expiry, key)
		}
	}
}

// Size returns the number of stored markers, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiry)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
