package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/team-registry-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records per-route request metrics. Requests that match no route share one
// label so scanners cannot grow the series count.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		release := metricsSvc.TrackInFlight()
		defer release()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
