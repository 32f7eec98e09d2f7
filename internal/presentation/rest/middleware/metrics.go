package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// MetricsMiddleware メトリクス記録ミドルウェア
// ErrorHandlerMiddlewareの外側に置き、書き込まれたステータスコードで分類する
func MetricsMiddleware(metrics *otelinfra.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			method := c.Request().Method

			err := next(c)

			// ルート未確定のパスは値の爆発を避けるためまとめる
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(ctx, method, route)
			metrics.RecordResponseTime(ctx, method, route, time.Since(start).Seconds())

			status := c.Response().Status
			switch {
			case err != nil || status >= 500:
				metrics.RecordError(ctx, "server_error")
			case status >= 400:
				metrics.RecordError(ctx, "client_error")
			}

			return err
		}
	}
}
