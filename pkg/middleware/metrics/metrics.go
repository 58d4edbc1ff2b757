// Package metrics records Prometheus metrics for HTTP requests.
package metrics

import (
	"time"

	"github.com/cargodesk/cargodesk/pkg/observability/metrics"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// Metrics creates middleware that records the request duration histogram,
// request counter, and in-flight gauge.
func Metrics() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			metrics.IncrementInFlight()
			defer metrics.DecrementInFlight()

			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			metrics.RecordHTTPMetrics(
				c.Request().Method,
				c.Request().URL.Path,
				c.Response().Status(),
				duration,
			)

			return err
		}
	}
}
