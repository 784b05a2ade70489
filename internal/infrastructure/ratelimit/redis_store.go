package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript increments the window counter and sets its expiry on first use
var takeScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore is a fixed-window counter shared by every instance
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// RedisStoreOption configures a RedisStore
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store for multi-instance deployments
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: "ratelimit:",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take implements Store
func (s *RedisStore) Take(ctx context.Context, key string, rule Rule) (bool, error) {
	count, err := takeScript.Run(ctx, s.client, []string{s.windowKey(key, rule)}, max(1, rule.Duration.Milliseconds())).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to take rate limit point: %w", err)
	}
	return count <= int64(rule.Points), nil
}

// Remaining implements Store
func (s *RedisStore) Remaining(ctx context.Context, key string, rule Rule) (int, error) {
	used, err := s.client.Get(ctx, s.windowKey(key, rule)).Int()
	if errors.Is(err, redis.Nil) {
		return rule.Points, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return max(0, rule.Points-used), nil
}

func (s *RedisStore) windowKey(key string, rule Rule) string {
	window := s.now().UnixMilli() / max(1, rule.Duration.Milliseconds())
	return fmt.Sprintf("%s%s:%d", s.keyPrefix, key, window)
}
