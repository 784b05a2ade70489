package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore shares platform tokens between instances through Redis
type RedisTokenStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTokenStore creates a Redis-backed SharedStore
func NewRedisTokenStore(client redis.UniversalClient, keyPrefix string) *RedisTokenStore {
	if keyPrefix == "" {
		keyPrefix = "storelink:"
	}
	return &RedisTokenStore{client: client, keyPrefix: keyPrefix}
}

// Get returns the token and its remaining TTL, or an empty token when absent
func (s *RedisTokenStore) Get(ctx context.Context, key string) (string, time.Duration, error) {
	fullKey := s.keyPrefix + key
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, fullKey)
	ttlCmd := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, fmt.Errorf("failed to read shared token: %w", err)
	}

	token, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to read shared token: %w", err)
	}
	return token, ttlCmd.Val(), nil
}

// Set stores the token with a TTL
func (s *RedisTokenStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store shared token: %w", err)
	}
	return nil
}

// Delete removes the token
func (s *RedisTokenStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete shared token: %w", err)
	}
	return nil
}
