package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoflow/internal/observability"
)

// Probe and scrape endpoints hit every few seconds and would drown out
// real traffic in the logs.
var unloggedPaths = map[string]bool{
	"/metrics": true,
	"/healthz": true,
}

// LoggingMiddleware logs each request with slog and records its duration.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			fmt.Sprintf("%d", status),
		).Observe(duration.Seconds())

		if unloggedPaths[path] {
			return
		}

		slog.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", duration.String(),
			"bytes", c.Writer.Size(),
			"ip", c.ClientIP(),
		)
	}
}
