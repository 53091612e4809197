package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	blockedKeyPrefix   = "blocked_ip:"
)

// RateLimit is a fixed-window per-IP limiter backed by Redis. An IP that
// exceeds the window budget is blocked for cfg.BlockDuration. Redis errors
// fail open: protection is best-effort, availability wins.
func RateLimit(client *redis.Client, cfg utils.RateLimitConfig, logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ip := utils.ClientIP(c.Request)

		blocked, err := client.Exists(ctx, blockedKeyPrefix+ip).Result()
		if err == nil && blocked > 0 {
			tooManyRequests(c)
			return
		}

		key := rateLimitKeyPrefix + ip
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Debugw("rate limit unavailable, failing open", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, cfg.Window).Err(); err != nil {
				// A counter without a TTL would throttle the IP forever.
				client.Del(ctx, key)
				logger.Debugw("rate limit unavailable, failing open", "error", err)
				c.Next()
				return
			}
		}

		if count > int64(cfg.MaxRequests) {
			if err := client.Set(ctx, blockedKeyPrefix+ip, "1", cfg.BlockDuration).Err(); err == nil {
				logger.Warnw("ip blocked for excessive requests", "ip", ip, "count", count)
			}
			tooManyRequests(c)
			return
		}

		c.Next()
	}
}

func tooManyRequests(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error":   "Too many requests, please try again later",
	})
	c.Abort()
}
