package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// LoggingMiddleware アクセスログミドルウェア
// 5xxはError、4xxはWarn、それ以外はInfoで出力する
func LoggingMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()
			fields := map[string]interface{}{
				"method":      req.Method,
				"path":        req.URL.Path,
				"route":       c.Path(),
				"status_code": res.Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": c.RealIP(),
				"user_agent":  req.UserAgent(),
			}
			if requestID := res.Header().Get(echo.HeaderXRequestID); requestID != "" {
				fields["request_id"] = requestID
			}
			if userID, ok := c.Get("user_id").(string); ok && userID != "" {
				fields["user_id"] = userID
			}

			switch {
			case err != nil:
				logger.Error(req.Context(), "HTTP request failed", err, fields)
			case res.Status >= 500:
				logger.Error(req.Context(), "HTTP request failed", nil, fields)
			case res.Status >= 400:
				logger.Warn(req.Context(), "HTTP request rejected", fields)
			default:
				logger.Info(req.Context(), "HTTP request completed", fields)
			}

			return err
		}
	}
}
