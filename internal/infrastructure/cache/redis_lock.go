package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lock defaults
const (
	DefaultLockPrefix       = "storelink:lock:"
	DefaultLockLease        = 30 * time.Second
	DefaultLockPollInterval = 50 * time.Millisecond
)

// ErrLockNotHeld is returned by a release whose lease expired or was taken over
var ErrLockNotHeld = errors.New("cache: lock not held")

// releaseScript deletes the key only if it still carries the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a lease-based lock over SET NX PX with an owner token.
// It serves both blocking per-key locks and one-shot claims.
type RedisLock struct {
	client       redis.UniversalClient
	prefix       string
	lease        time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// RedisLockOption configures a RedisLock
type RedisLockOption func(*RedisLock)

// WithLockLease sets the lease used by Lock
func WithLockLease(d time.Duration) RedisLockOption {
	return func(l *RedisLock) {
		l.lease = d
	}
}

// WithLockPollInterval sets how often Lock retries a held key
func WithLockPollInterval(d time.Duration) RedisLockOption {
	return func(l *RedisLock) {
		l.pollInterval = d
	}
}

// WithLockLogger sets the logger
func WithLockLogger(logger *zap.Logger) RedisLockOption {
	return func(l *RedisLock) {
		l.logger = logger
	}
}

// NewRedisLock creates a lock on client
func NewRedisLock(client redis.UniversalClient, prefix string, opts ...RedisLockOption) *RedisLock {
	if prefix == "" {
		prefix = DefaultLockPrefix
	}
	l := &RedisLock{
		client:       client,
		prefix:       prefix,
		lease:        DefaultLockLease,
		pollInterval: DefaultLockPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock claims key for ttl without waiting. ok is false when the key is held.
func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return l.releaser(key, token), true, nil
}

// Lock blocks until key is acquired or ctx is done. The lease bounds how long
// a crashed holder can block others.
func (l *RedisLock) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		release, ok, err := l.TryLock(ctx, key, l.lease)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLock) releaser(key, token string) func() {
	return func() {
		if err := l.release(context.Background(), key, token); err != nil {
			l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}
}

func (l *RedisLock) release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
