package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/domain/shared"
	"github.com/storelink/backend/internal/infrastructure/auth"
	"github.com/storelink/backend/internal/infrastructure/cache"
	"github.com/storelink/backend/internal/infrastructure/config"
	"github.com/storelink/backend/internal/infrastructure/ecommerce"
	"github.com/storelink/backend/internal/infrastructure/persistence"
	"github.com/storelink/backend/internal/infrastructure/ratelimit"
	"github.com/storelink/backend/internal/infrastructure/retry"
	"github.com/storelink/backend/internal/infrastructure/telemetry"
)

// platforms holds the configured adapters. smartStore is nil when the
// marketplace is disabled, which also disables order ingestion.
type platforms struct {
	registry   *integration.PlatformRegistry
	smartStore *ecommerce.SmartStoreAdapter
}

func newRetryPolicy(cfg config.RetryConfig, metrics *telemetry.SyncMetrics, log *zap.Logger) *retry.Policy {
	return retry.New(retry.Config{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Jitter:      cfg.Jitter,
	},
		retry.WithObserver(metrics.ObserveRetry),
		retry.WithLogger(log.Named("retry")),
	)
}

// newRateLimitStore returns the bucket store shared by the platform limiter
// and the API middleware
func newRateLimitStore(cfg config.RateLimitConfig, redisClient redis.UniversalClient, keyPrefix string) ratelimit.Store {
	if cfg.Store == "redis" && redisClient != nil {
		return ratelimit.NewRedisStore(redisClient, ratelimit.WithKeyPrefix(keyPrefix+"ratelimit:"))
	}
	return ratelimit.NewMemoryStore()
}

func newPlatformLimiter(cfg config.RateLimitConfig, store ratelimit.Store, metrics *telemetry.SyncMetrics, log *zap.Logger) (*ratelimit.Limiter, error) {
	smartStore := ratelimit.Rule{Points: cfg.SmartStorePoints, Duration: cfg.SmartStoreDuration}
	shopify := ratelimit.Rule{Points: cfg.ShopifyPoints, Duration: cfg.ShopifyDuration}
	return ratelimit.New(store, smartStore,
		ratelimit.WithRule(string(integration.PlatformSmartStore), smartStore),
		ratelimit.WithRule(string(integration.PlatformShopify), shopify),
		ratelimit.WithWaitInterval(cfg.WaitInterval),
		ratelimit.WithWaitObserver(metrics.ObserveRateLimitWait),
		ratelimit.WithLogger(log.Named("ratelimit")),
	)
}

func newPlatforms(
	cfg *config.Config,
	limiter *ratelimit.Limiter,
	policy *retry.Policy,
	redisClient redis.UniversalClient,
	metrics *telemetry.SyncMetrics,
	log *zap.Logger,
) (*platforms, error) {
	var (
		out      platforms
		adapters []integration.EcommercePlatform
	)

	if cfg.SmartStore.Enabled {
		ssCfg := &ecommerce.SmartStoreConfig{
			ClientID:       cfg.SmartStore.ClientID,
			ClientSecret:   cfg.SmartStore.ClientSecret,
			APIBaseURL:     cfg.SmartStore.APIBaseURL,
			TimeoutSeconds: cfg.SmartStore.TimeoutSeconds,
		}
		if err := ssCfg.Validate(); err != nil {
			return nil, err
		}
		httpClient := &http.Client{Timeout: time.Duration(ssCfg.TimeoutSeconds) * time.Second}

		cacheOpts := []auth.CacheOption{
			auth.WithRefreshObserver(metrics.ObserveRefresh),
			auth.WithLogger(log.Named("credentials")),
		}
		if redisClient != nil {
			cacheOpts = append(cacheOpts, auth.WithSharedStore(auth.NewRedisTokenStore(redisClient, cfg.Redis.KeyPrefix+"token:")))
		}
		credentials := auth.NewCredentialCache(
			integration.PlatformSmartStore,
			ecommerce.NewSmartStoreTokenSource(ssCfg, httpClient, nil, policy),
			cacheOpts...,
		)

		caller := ecommerce.NewRemoteCaller(integration.PlatformSmartStore, credentials, limiter, policy)
		adapter, err := ecommerce.NewSmartStoreAdapter(ssCfg, caller, httpClient)
		if err != nil {
			return nil, fmt.Errorf("smartstore adapter: %w", err)
		}
		out.smartStore = adapter
		adapters = append(adapters, adapter)
	}

	if cfg.Shopify.Enabled {
		shCfg := &ecommerce.ShopifyConfig{
			ShopDomain:     cfg.Shopify.ShopDomain,
			AccessToken:    cfg.Shopify.AccessToken,
			APIVersion:     cfg.Shopify.APIVersion,
			LocationID:     cfg.Shopify.LocationID,
			APIBaseURL:     cfg.Shopify.APIBaseURL,
			TimeoutSeconds: cfg.Shopify.TimeoutSeconds,
		}
		if err := shCfg.Validate(); err != nil {
			return nil, err
		}
		httpClient := &http.Client{Timeout: time.Duration(shCfg.TimeoutSeconds) * time.Second}

		caller := ecommerce.NewRemoteCaller(integration.PlatformShopify, auth.NewStaticCredentials(shCfg.AccessToken), limiter, policy)
		adapter, err := ecommerce.NewShopifyAdapter(shCfg, caller, httpClient)
		if err != nil {
			return nil, fmt.Errorf("shopify adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	out.registry = integration.NewPlatformRegistry(adapters...)
	return &out, nil
}

// newAckStore returns the order acknowledgment store. purger is set for
// the database store, whose expired rows are removed by log retention.
func newAckStore(ctx context.Context, cfg *config.Config, db *persistence.Database, redisClient redis.UniversalClient, log *zap.Logger) (store shared.IdempotencyStore, purger *persistence.GormAcknowledgmentStore, err error) {
	switch cfg.Orders.AckStore {
	case "redis":
		factory := cache.NewIdempotencyStoreFactory(redisClient, cfg.Redis.KeyPrefix+"ack:", cache.WithLogger(log))
		store, err = factory.CreateRedisStore(ctx)
		return store, nil, err
	case "memory":
		log.Warn("Using in-memory acknowledgment store; orders may be applied twice after a restart")
		return cache.NewInMemoryIdempotencyStore(), nil, nil
	default:
		acks := persistence.NewGormAcknowledgmentStore(db.DB)
		return acks, acks, nil
	}
}

// newSKULocker serializes adjustments of one SKU across instances when Redis is available
func newSKULocker(redisClient redis.UniversalClient, keyPrefix string, log *zap.Logger) appintegration.Locker {
	if redisClient == nil {
		return appintegration.NewKeyedMutex()
	}
	return cache.NewRedisLock(redisClient, keyPrefix+"lock:sku:", cache.WithLockLogger(log.Named("sku-lock")))
}

func parseCurrencyPairs(pairs []string) ([]appintegration.CurrencyPair, error) {
	out := make([]appintegration.CurrencyPair, 0, len(pairs))
	for _, p := range pairs {
		base, quote, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(p)), "/")
		if !ok || len(base) != 3 || len(quote) != 3 {
			return nil, fmt.Errorf("invalid currency pair %q, expected BASE/QUOTE", p)
		}
		out = append(out, appintegration.CurrencyPair{Base: base, Quote: quote})
	}
	return out, nil
}

func parseFallbackRates(fallbacks map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(fallbacks))
	for pair, value := range fallbacks {
		rate, err := decimal.NewFromString(value)
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("invalid fallback rate %q for %s", value, pair)
		}
		out[pair] = rate
	}
	return out, nil
}
