// Package auth manages platform access credentials for outbound API calls.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/storelink/backend/internal/domain/integration"
)

// DefaultSafetyMargin is subtracted from the reported expiry before caching
const DefaultSafetyMargin = 30 * time.Minute

// Token is an access token minted by a platform auth endpoint
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

// TokenSource mints new tokens from the remote auth endpoint
type TokenSource interface {
	FetchToken(ctx context.Context) (*Token, error)
}

// SharedStore lets several instances reuse one minted token
type SharedStore interface {
	Get(ctx context.Context, key string) (string, time.Duration, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RefreshObserver is notified after every refresh attempt
type RefreshObserver func(ctx context.Context, platform integration.PlatformCode, err error)

// CredentialCache caches one platform token and refreshes it single-flight
type CredentialCache struct {
	platform integration.PlatformCode
	source   TokenSource
	shared   SharedStore
	margin   time.Duration
	now      func() time.Time
	observer RefreshObserver
	logger   *zap.Logger

	group      singleflight.Group
	mu         sync.RWMutex
	token      string
	validUntil time.Time
}

// CacheOption configures a CredentialCache
type CacheOption func(*CredentialCache)

// WithClock injects the time source
func WithClock(now func() time.Time) CacheOption {
	return func(c *CredentialCache) {
		c.now = now
	}
}

// WithSafetyMargin overrides the expiry safety margin
func WithSafetyMargin(d time.Duration) CacheOption {
	return func(c *CredentialCache) {
		c.margin = d
	}
}

// WithSharedStore shares the token across instances
func WithSharedStore(s SharedStore) CacheOption {
	return func(c *CredentialCache) {
		c.shared = s
	}
}

// WithRefreshObserver registers a refresh callback
func WithRefreshObserver(o RefreshObserver) CacheOption {
	return func(c *CredentialCache) {
		c.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *CredentialCache) {
		c.logger = logger
	}
}

// NewCredentialCache creates a cache for one platform
func NewCredentialCache(platform integration.PlatformCode, source TokenSource, opts ...CacheOption) *CredentialCache {
	c := &CredentialCache{
		platform: platform,
		source:   source,
		margin:   DefaultSafetyMargin,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a cached token or mints a new one. Concurrent callers share a
// single refresh; a caller whose context ends stops waiting but does not cancel it.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	ch := c.group.DoChan(string(c.platform), func() (any, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token if it is still the given one.
// An empty token drops whatever is cached.
func (c *CredentialCache) Invalidate(ctx context.Context, stale string) {
	c.mu.Lock()
	if stale == "" || c.token == stale {
		c.token = ""
		c.validUntil = time.Time{}
	}
	c.mu.Unlock()

	if c.shared != nil {
		if err := c.shared.Delete(ctx, c.sharedKey()); err != nil {
			c.logger.Warn("Failed to drop shared platform token",
				zap.String("platform", c.platform.String()),
				zap.Error(err),
			)
		}
	}
}

// Call runs op with a token. On a 401 it invalidates the token, mints a new
// one and retries op exactly once.
func (c *CredentialCache) Call(ctx context.Context, op func(ctx context.Context, token string) error) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	err = op(ctx, token)
	if !errors.Is(err, integration.ErrUnauthorized) {
		return err
	}

	c.logger.Warn("Platform rejected access token, refreshing once",
		zap.String("platform", c.platform.String()),
		zap.Error(err),
	)
	c.Invalidate(ctx, token)

	token, err = c.Token(ctx)
	if err != nil {
		return err
	}
	err = op(ctx, token)
	if errors.Is(err, integration.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", integration.ErrAuthFailure, err)
	}
	return err
}

// ValidUntil returns when the cached token stops being served
func (c *CredentialCache) ValidUntil() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validUntil
}

func (c *CredentialCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Before(c.validUntil) {
		return c.token, true
	}
	return "", false
}

func (c *CredentialCache) refresh(ctx context.Context) (string, error) {
	if token, ok := c.fromShared(ctx); ok {
		return token, nil
	}

	tok, err := c.source.FetchToken(ctx)
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errors.New("token endpoint returned an empty token")
	}
	if c.observer != nil {
		c.observer(ctx, c.platform, err)
	}
	if err != nil {
		c.logger.Error("Failed to obtain platform access token",
			zap.String("platform", c.platform.String()),
			zap.Error(err),
		)
		if errors.Is(err, integration.ErrAuthFailure) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", integration.ErrAuthFailure, c.platform, err)
	}

	ttl := c.ttlFor(tok.ExpiresIn)
	c.store(tok.AccessToken, ttl)

	if c.shared != nil {
		if err := c.shared.Set(ctx, c.sharedKey(), tok.AccessToken, ttl); err != nil {
			c.logger.Warn("Failed to share platform token",
				zap.String("platform", c.platform.String()),
				zap.Error(err),
			)
		}
	}

	c.logger.Info("Platform access token refreshed",
		zap.String("platform", c.platform.String()),
		zap.Duration("expires_in", tok.ExpiresIn),
		zap.Duration("cache_ttl", ttl),
	)
	return tok.AccessToken, nil
}

func (c *CredentialCache) fromShared(ctx context.Context) (string, bool) {
	if c.shared == nil {
		return "", false
	}
	token, ttl, err := c.shared.Get(ctx, c.sharedKey())
	if err != nil || token == "" || ttl <= 0 {
		return "", false
	}
	c.store(token, ttl)
	return token, true
}

func (c *CredentialCache) store(token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.validUntil = c.now().Add(ttl)
}

// ttlFor keeps the safety margin; tokens shorter than the margin are cached for half their life
func (c *CredentialCache) ttlFor(expiresIn time.Duration) time.Duration {
	ttl := expiresIn - c.margin
	if ttl <= 0 {
		ttl = expiresIn / 2
	}
	return ttl
}

func (c *CredentialCache) sharedKey() string {
	return "platform_token:" + string(c.platform)
}

// StaticCredentials serves a long-lived token that cannot be refreshed
type StaticCredentials struct {
	token string
}

// NewStaticCredentials wraps a fixed access token
func NewStaticCredentials(token string) *StaticCredentials {
	return &StaticCredentials{token: token}
}

// Call runs op with the static token. A 401 cannot be fixed by refreshing.
func (s *StaticCredentials) Call(ctx context.Context, op func(ctx context.Context, token string) error) error {
	if s.token == "" {
		return fmt.Errorf("%w: access token not configured", integration.ErrAuthFailure)
	}
	err := op(ctx, s.token)
	if errors.Is(err, integration.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", integration.ErrAuthFailure, err)
	}
	return err
}
