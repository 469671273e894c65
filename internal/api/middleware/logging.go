package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// SlogRequestLogger logs one structured line per request via logger.
func SlogRequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		if logger != nil {
			logger.Info("api request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", c.Writer.Status()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.String("client_ip", c.ClientIP()),
			)
		}
	}
}
