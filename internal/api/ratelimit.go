package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cvtailor/internal/redis"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiter enforces a fixed per-IP request budget per minute, counted in
// Redis so every instance shares the same view.
type RateLimiter struct {
	client    *redis.Client
	perMinute int
	logger    *zap.Logger
}

// NewRateLimiter builds the limiter. A nil client or non-positive budget
// disables limiting.
func NewRateLimiter(client *redis.Client, perMinute int, logger *zap.Logger) *RateLimiter {
	if client == nil || perMinute <= 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{client: client, perMinute: perMinute, logger: logger}
}

// Middleware rejects requests over the per-minute budget with 429. Redis
// failures let the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, c.ClientIP(), time.Now().Unix()/60)
		count, err := rl.client.Incr(c.Request.Context(), key)
		if err != nil {
			rl.logger.Warn("rate limit counter", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.client.Expire(c.Request.Context(), key, time.Minute); err != nil {
				rl.logger.Warn("rate limit expire", zap.Error(err))
			}
		}
		if count > int64(rl.perMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, slow down"})
			return
		}
		c.Next()
	}
}
