package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/Su5hant/sow-backend/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit 对认证类接口按客户端 IP 限流。
//
// 限流器不可用（如 Redis 故障）时放行，不把限流故障放大成接口故障。
func RateLimit(limiter *ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		allowed, retryAfter, err := limiter.AllowKey(ctx, c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			seconds := int(retryAfter / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "retry_after": seconds})
			c.Abort()
			return
		}

		c.Next()
	}
}
