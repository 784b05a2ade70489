package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/infrastructure/logger"
	"github.com/storelink/backend/internal/infrastructure/ratelimit"
	"github.com/storelink/backend/internal/interfaces/http/dto"
)

// apiKeyPrefix keeps API client buckets apart from the platform buckets
// sharing the same store
const apiKeyPrefix = "api:"

// RateLimit limits requests per client IP
func RateLimit(store ratelimit.Store, rule ratelimit.Rule) gin.HandlerFunc {
	return RateLimitByKey(store, rule, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RateLimitByKey limits requests per key returned by keyFunc. A store
// failure lets the request through.
func RateLimitByKey(store ratelimit.Store, rule ratelimit.Rule, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	limit := strconv.Itoa(rule.Points)
	retryAfter := strconv.Itoa(max(1, int(rule.Duration.Seconds())))

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := apiKeyPrefix + keyFunc(c)

		granted, err := store.Take(ctx, key, rule)
		if err != nil {
			logger.GetGinLogger(c).Warn("Rate limit store unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limit)
		if !granted {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				GetRequestID(c),
			))
			return
		}

		if remaining, err := store.Remaining(ctx, key, rule); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		c.Next()
	}
}
