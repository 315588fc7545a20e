package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/pkg/response"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRateLimitMax = 50
	rateLimitWindow     = time.Second
	rateLimitPrefix     = "nine3v:rate_limit:"
)

// RateLimit caps anonymous page lookups per client IP in one-second
// windows. Editors are never limited. max <= 0 uses 50.
func RateLimit(rdb *redis.Client, max int64, log *zap.Logger) gin.HandlerFunc {
	if max <= 0 {
		max = defaultRateLimitMax
	}
	if log == nil {
		log = zap.NewNop()
	}
	limit := strconv.FormatInt(max, 10)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rdb == nil || ip == "" || IsAuthenticated(c) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := rateLimitWindowKey(ip, time.Now())
		var incr *redis.IntCmd
		if _, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.PExpire(ctx, key, 2*rateLimitWindow)
			return nil
		}); err != nil {
			c.Next()
			return
		}

		count := incr.Val()
		remaining := max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count <= max {
			c.Next()
			return
		}
		if count == max+1 {
			log.Warn("rate limited", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
		}
		c.Header("Retry-After", "1")
		response.TooManyRequests(c, "Too many requests, slow down.")
	}
}

func rateLimitWindowKey(ip string, now time.Time) string {
	return rateLimitPrefix + ip + ":" + strconv.FormatInt(now.Unix(), 10)
}
