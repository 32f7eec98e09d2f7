package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		handler     echo.HandlerFunc
		userID      string
		wantErr     bool
		wantLevel   zapcore.Level
		wantMessage string
		wantStatus  int64
	}{
		{
			name: "正常系: 2xxはInfo",
			handler: func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			},
			userID:      "user123",
			wantLevel:   zapcore.InfoLevel,
			wantMessage: "HTTP request completed",
			wantStatus:  http.StatusOK,
		},
		{
			name: "異常系: 4xxはWarn",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusConflict, ErrorResponse{Error: "insufficient_funds"})
			},
			wantLevel:   zapcore.WarnLevel,
			wantMessage: "HTTP request rejected",
			wantStatus:  http.StatusConflict,
		},
		{
			name: "異常系: 5xxはError",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "concurrency_conflict"})
			},
			wantLevel:   zapcore.ErrorLevel,
			wantMessage: "HTTP request failed",
			wantStatus:  http.StatusServiceUnavailable,
		},
		{
			name: "異常系: 未処理のエラーはError",
			handler: func(c echo.Context) error {
				return errors.New("test error")
			},
			wantErr:     true,
			wantLevel:   zapcore.ErrorLevel,
			wantMessage: "HTTP request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			logger := otelinfra.NewLoggerWithCore(noop.NewTracerProvider().Tracer("test"), core)

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/me/balance", nil)
			req.Header.Set("User-Agent", "test-agent")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.Response().Header().Set(echo.HeaderXRequestID, "req-1")
			if tt.userID != "" {
				c.Set("user_id", tt.userID)
			}

			err := LoggingMiddleware(logger)(tt.handler)(c)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantMessage, entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, "POST", fields["method"])
			assert.Equal(t, "/api/v1/me/balance", fields["path"])
			assert.Equal(t, "req-1", fields["request_id"])
			assert.Equal(t, "test-agent", fields["user_agent"])
			if tt.wantStatus != 0 {
				assert.EqualValues(t, tt.wantStatus, fields["status_code"])
			}
			if tt.userID != "" {
				assert.Equal(t, tt.userID, fields["user_id"])
			} else {
				assert.NotContains(t, fields, "user_id")
			}
		})
	}
}
