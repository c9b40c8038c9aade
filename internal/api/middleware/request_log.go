package middleware

import (
	"strconv"
	"time"

	"log/slog"

	"github.com/Su5hant/sow-backend/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs HTTP request/response metadata and feeds the request metrics.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		clientIP := c.ClientIP()

		if metrics.HTTPRequestsTotal != nil {
			metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(latency.Seconds())
		}

		if logger != nil {
			logger.Info("http request",
				slog.String("method", method),
				slog.String("path", c.Request.URL.Path),
				slog.Int("status", status),
				slog.String("client_ip", clientIP),
				slog.String("latency", latency.String()),
			)
		}
	}
}
