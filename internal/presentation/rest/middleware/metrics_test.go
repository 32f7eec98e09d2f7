package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// collectCounter 指定カウンターのデータポイントを属性値ごとに集計する
func collectCounter(t *testing.T, reader *sdkmetric.ManualReader, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(key)
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		route      string
		handler    echo.HandlerFunc
		wantErr    bool
		wantErrors map[string]int64
	}{
		{
			name:  "正常系: 2xxはエラーを記録しない",
			route: "/api/v1/me/balance",
			handler: func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			},
			wantErrors: map[string]int64{},
		},
		{
			name:  "正常系: 3xxはエラーを記録しない",
			route: "/redirect",
			handler: func(c echo.Context) error {
				return c.Redirect(http.StatusFound, "/")
			},
			wantErrors: map[string]int64{},
		},
		{
			name:  "異常系: 4xxはclient_error",
			route: "/api/v1/gacha/pools/:pool_id/pull",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusConflict, ErrorResponse{Error: "insufficient_funds"})
			},
			wantErrors: map[string]int64{"client_error": 1},
		},
		{
			name:  "異常系: 5xxはserver_error",
			route: "/api/v1/webhooks/payment",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "concurrency_conflict"})
			},
			wantErrors: map[string]int64{"server_error": 1},
		},
		{
			name:  "異常系: 未処理のエラーはserver_error",
			route: "",
			handler: func(c echo.Context) error {
				return errors.New("boom")
			},
			wantErr:    true,
			wantErrors: map[string]int64{"server_error": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := sdkmetric.NewManualReader()
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
			metrics, err := otelinfra.NewMetricsWithMeter(mp.Meter("test"))
			require.NoError(t, err)

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetPath(tt.route)

			err = MetricsMiddleware(metrics)(tt.handler)(c)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			wantRoute := tt.route
			if wantRoute == "" {
				wantRoute = "unmatched"
			}
			requests := collectCounter(t, reader, "requests_total", "path")
			assert.Equal(t, map[string]int64{wantRoute: 1}, requests)
			assert.Equal(t, tt.wantErrors, collectCounter(t, reader, "errors_total", "error_type"))
		})
	}
}
