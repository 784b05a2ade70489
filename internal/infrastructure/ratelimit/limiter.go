// Package ratelimit gates outbound platform calls with a per-platform token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// DefaultWaitInterval is how long Consume sleeps before its single retry
const DefaultWaitInterval = 500 * time.Millisecond

// Rule is a request budget: Points requests per Duration
type Rule struct {
	Points   int
	Duration time.Duration
}

// Validate checks the rule values
func (r Rule) Validate() error {
	if r.Points <= 0 {
		return fmt.Errorf("rate limit points must be positive, got %d", r.Points)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("rate limit duration must be positive, got %s", r.Duration)
	}
	return nil
}

// Store is the backing store of the buckets
type Store interface {
	// Take consumes one point for key and reports whether it was granted
	Take(ctx context.Context, key string, rule Rule) (bool, error)
	// Remaining reports the points currently available for key
	Remaining(ctx context.Context, key string, rule Rule) (int, error)
}

// WaitObserver is notified whenever a caller has to wait for the bucket
type WaitObserver func(ctx context.Context, key string, granted bool)

// Limiter converts bursts into a steady stream per platform key
type Limiter struct {
	store        Store
	rules        map[string]Rule
	defaultRule  Rule
	waitInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	observer     WaitObserver
	logger       *zap.Logger
}

// Option configures a Limiter
type Option func(*Limiter)

// WithRule sets the budget of one key
func WithRule(key string, rule Rule) Option {
	return func(l *Limiter) {
		l.rules[key] = rule
	}
}

// WithWaitInterval overrides the wait before the single retry
func WithWaitInterval(d time.Duration) Option {
	return func(l *Limiter) {
		l.waitInterval = d
	}
}

// WithWaitObserver registers a callback for wait cycles
func WithWaitObserver(o WaitObserver) Option {
	return func(l *Limiter) {
		l.observer = o
	}
}

// WithLogger sets the limiter logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a Limiter over store using defaultRule for keys without a rule
func New(store Store, defaultRule Rule, opts ...Option) (*Limiter, error) {
	if err := defaultRule.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		store:        store,
		rules:        make(map[string]Rule),
		defaultRule:  defaultRule,
		waitInterval: DefaultWaitInterval,
		sleep:        sleepContext,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	for key, rule := range l.rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", key, err)
		}
	}
	return l, nil
}

// Consume takes one point for key. When the bucket is empty it waits one
// interval and tries exactly once more before returning ErrRateLimitExceeded.
func (l *Limiter) Consume(ctx context.Context, key string) error {
	rule := l.ruleFor(key)

	ok, err := l.store.Take(ctx, key, rule)
	if err != nil {
		return fmt.Errorf("rate limiter store: %w", err)
	}
	if ok {
		return nil
	}

	l.logger.Debug("Rate limit reached, waiting",
		zap.String("key", key),
		zap.Duration("wait", l.waitInterval),
	)
	if err := l.sleep(ctx, l.waitInterval); err != nil {
		return err
	}

	ok, err = l.store.Take(ctx, key, rule)
	if err != nil {
		return fmt.Errorf("rate limiter store: %w", err)
	}
	if l.observer != nil {
		l.observer(ctx, key, ok)
	}
	if !ok {
		return fmt.Errorf("%w: %s", integration.ErrRateLimitExceeded, key)
	}
	return nil
}

// Remaining reports the current headroom of key
func (l *Limiter) Remaining(ctx context.Context, key string) (int, error) {
	return l.store.Remaining(ctx, key, l.ruleFor(key))
}

// Rule returns the budget applied to key
func (l *Limiter) Rule(key string) Rule {
	return l.ruleFor(key)
}

func (l *Limiter) ruleFor(key string) Rule {
	if rule, ok := l.rules[key]; ok {
		return rule
	}
	return l.defaultRule
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
