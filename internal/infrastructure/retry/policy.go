// Package retry wraps single remote calls with bounded, capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// Config holds retry parameters
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the randomization factor applied to each delay (0 disables it)
	Jitter float64
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

// Classifier decides whether an error is worth retrying
type Classifier func(error) bool

// Observer is notified before every retry with the attempt that just failed
type Observer func(ctx context.Context, name string, attempt int, err error)

// Policy retries transient failures of a single operation
type Policy struct {
	config    Config
	retryable Classifier
	observer  Observer
	logger    *zap.Logger
}

// Option configures a Policy
type Option func(*Policy)

// WithClassifier overrides the retryable-error classifier
func WithClassifier(c Classifier) Option {
	return func(p *Policy) {
		p.retryable = c
	}
}

// WithObserver registers a retry callback
func WithObserver(o Observer) Option {
	return func(p *Policy) {
		p.observer = o
	}
}

// WithLogger sets the logger used for retry notices
func WithLogger(logger *zap.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New creates a Policy. Zero config values fall back to defaults.
func New(cfg Config, opts ...Option) *Policy {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		cfg.Jitter = 0
	}

	p := &Policy{
		config:    cfg,
		retryable: integration.IsTransient,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Error is returned when an operation did not succeed. It unwraps to the last error.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Attempts extracts the attempt count from an error returned by Do
func Attempts(err error) int {
	var retryErr *Error
	if errors.As(err, &retryErr) {
		return retryErr.Attempts
	}
	return 0
}

// Do runs op until it succeeds, fails permanently, or attempts are exhausted.
// It returns the number of attempts made.
func (p *Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		p.logger.Warn("Retrying remote call",
			zap.String("operation", name),
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if p.observer != nil {
			p.observer(ctx, name, attempts, err)
		}
	}

	err := backoff.RetryNotify(operation, p.newBackOff(ctx), notify)
	if err == nil {
		return attempts, nil
	}
	return attempts, &Error{Attempts: attempts, Err: err}
}

// DoValue is Do for operations that return a value
func DoValue[T any](ctx context.Context, p *Policy, name string, op func(ctx context.Context) (T, error)) (T, int, error) {
	var result T
	attempts, err := p.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, attempts, err
}

func (p *Policy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.BaseDelay
	b.MaxInterval = p.config.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = p.config.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.config.MaxAttempts-1)), ctx)
}

// Config returns the effective configuration
func (p *Policy) Config() Config {
	return p.config
}
