package ratelimit

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// MemoryStore keeps one token bucket per key in process memory
type MemoryStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewMemoryStore creates an in-memory store for single-instance deployments
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{limiters: make(map[string]*rate.Limiter)}
}

// Take implements Store
func (s *MemoryStore) Take(_ context.Context, key string, rule Rule) (bool, error) {
	return s.limiter(key, rule).Allow(), nil
}

// Remaining implements Store
func (s *MemoryStore) Remaining(_ context.Context, key string, rule Rule) (int, error) {
	tokens := s.limiter(key, rule).Tokens()
	if tokens < 0 {
		return 0, nil
	}
	return int(math.Floor(tokens)), nil
}

func (s *MemoryStore) limiter(key string, rule Rule) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limiters[key]; ok {
		return l
	}
	every := rate.Limit(float64(rule.Points) / rule.Duration.Seconds())
	l := rate.NewLimiter(every, rule.Points)
	s.limiters[key] = l
	return l
}
