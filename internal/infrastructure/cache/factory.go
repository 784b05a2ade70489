package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/shared"
)

// IdempotencyStoreFactory picks the marker store for the configured backend
type IdempotencyStoreFactory struct {
	client                redis.UniversalClient
	keyPrefix             string
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to the
// in-memory store. Default is false.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a factory. client may be nil when Redis is disabled.
func NewIdempotencyStoreFactory(client redis.UniversalClient, keyPrefix string, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore creates a Redis store after checking the connection
func (f *IdempotencyStoreFactory) CreateRedisStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if f.client == nil {
		return nil, errors.New("redis client is not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisIdempotencyStore(f.client, f.keyPrefix), nil
}

// CreateInMemoryStore creates an in-memory store.
// Markers are not shared across instances, so duplicate decrements become
// possible when more than one instance ingests orders.
func (f *IdempotencyStoreFactory) CreateInMemoryStore() shared.IdempotencyStore {
	return NewInMemoryIdempotencyStore()
}

// CreateStore prefers Redis and falls back to memory when allowed
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	store, err := f.CreateRedisStore(ctx)
	if err == nil {
		f.logger.Info("Using Redis acknowledgment store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for acknowledgments but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory acknowledgment store. "+
		"Orders may be applied twice in multi-instance deployments.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
