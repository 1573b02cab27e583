package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	metricsvc "github.com/heroesdelapatria/portal/services/metrics"
)

// metricsMiddleware records every request under its route path.
// Errors are handled here so the recorded status is the one sent.
func metricsMiddleware(rec *metricsvc.PrometheusRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}
			endpoint := ctx.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			rec.RecordAPIRequest(ctx.Request().Method, endpoint, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
