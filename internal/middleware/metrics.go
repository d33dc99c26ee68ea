package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics records one served request
type HTTPMetrics interface {
	HTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration)
}

// MetricsMiddleware creates a middleware that records HTTP metrics
func MetricsMiddleware(metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route pattern keeps label cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		metrics.HTTPRequest(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
