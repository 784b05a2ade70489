package main

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/infrastructure/cache"
	"github.com/storelink/backend/internal/infrastructure/config"
	"github.com/storelink/backend/internal/infrastructure/ratelimit"
)

func TestParseCurrencyPairs(t *testing.T) {
	pairs, err := parseCurrencyPairs([]string{"KRW/USD", " krw/jpy "})
	require.NoError(t, err)
	assert.Equal(t, []appintegration.CurrencyPair{
		{Base: "KRW", Quote: "USD"},
		{Base: "KRW", Quote: "JPY"},
	}, pairs)

	for _, bad := range []string{"KRWUSD", "KRW/US", "/USD"} {
		_, err := parseCurrencyPairs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseFallbackRates(t *testing.T) {
	rates, err := parseFallbackRates(map[string]string{"KRW/USD": "0.00075"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.00075").Equal(rates["KRW/USD"]))

	_, err = parseFallbackRates(map[string]string{"KRW/USD": "abc"})
	assert.Error(t, err)
	_, err = parseFallbackRates(map[string]string{"KRW/USD": "-1"})
	assert.Error(t, err)
}

func TestNewRateLimitStore(t *testing.T) {
	assert.IsType(t, &ratelimit.MemoryStore{}, newRateLimitStore(config.RateLimitConfig{Store: "memory"}, nil, ""))
	// redis requested without a client falls back to memory
	assert.IsType(t, &ratelimit.MemoryStore{}, newRateLimitStore(config.RateLimitConfig{Store: "redis"}, nil, ""))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &ratelimit.RedisStore{}, newRateLimitStore(config.RateLimitConfig{Store: "redis"}, client, "storelink:"))
}

func TestNewSKULocker(t *testing.T) {
	assert.IsType(t, &appintegration.KeyedMutex{}, newSKULocker(nil, "", nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &cache.RedisLock{}, newSKULocker(client, "storelink:", zap.NewNop()))
}
