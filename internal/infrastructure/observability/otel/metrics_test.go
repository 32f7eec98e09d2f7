package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsWithMeter(t *testing.T) {
	metrics, err := NewMetricsWithMeter(noop.NewMeterProvider().Meter("test-meter"))
	require.NoError(t, err)
	assert.NotNil(t, metrics)

	assert.NotNil(t, metrics.TransactionCount)
	assert.NotNil(t, metrics.CurrencyBalance)
	assert.NotNil(t, metrics.InsufficientFundsCount)
	assert.NotNil(t, metrics.PullCount)
	assert.NotNil(t, metrics.DrawOutcomeCount)
	assert.NotNil(t, metrics.GuaranteeCount)
	assert.NotNil(t, metrics.PityCount)
	assert.NotNil(t, metrics.WebhookDuplicateCount)
	assert.NotNil(t, metrics.RetryCount)
	assert.NotNil(t, metrics.StreakResetCount)
	assert.NotNil(t, metrics.OutboxPublishCount)
	assert.NotNil(t, metrics.RequestCount)
	assert.NotNil(t, metrics.ResponseTime)
	assert.NotNil(t, metrics.ErrorCount)
}

func TestMetrics_Record(t *testing.T) {
	metrics, err := NewMetricsWithMeter(noop.NewMeterProvider().Meter("test-meter"))
	require.NoError(t, err)

	ctx := context.Background()

	// エラーが発生しないことを確認
	metrics.RecordTransaction(ctx, "gacha_spend", "diamonds")
	metrics.RecordCurrencyBalance(ctx, "user123", "diamonds", 1000)
	metrics.RecordInsufficientFunds(ctx, "diamonds")
	metrics.RecordPull(ctx, "pool-1", "ten", "diamonds")
	metrics.RecordDrawOutcome(ctx, "pool-1", "SSR", true, false)
	metrics.RecordWebhookDuplicate(ctx)
	metrics.RecordRetry(ctx, "ledger.debit")
	metrics.RecordStreakReset(ctx, 3)
	metrics.RecordOutboxPublish(ctx, "gacha.pulled", "sent")
	metrics.RecordRequest(ctx, "GET", "/api/v1/me/balance")
	metrics.RecordResponseTime(ctx, "GET", "/api/v1/me/balance", 0.1)
	metrics.RecordError(ctx, "internal")
}

func TestMetrics_RecordDrawOutcome_CountsGuaranteeAndPity(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetricsWithMeter(provider.Meter("test-meter"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordDrawOutcome(ctx, "pool-1", "R", false, false)
	metrics.RecordDrawOutcome(ctx, "pool-1", "SR", true, false)
	metrics.RecordDrawOutcome(ctx, "pool-1", "SSR", false, true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(3), totals["gacha_draw_outcomes_total"])
	assert.Equal(t, int64(1), totals["gacha_guarantee_total"])
	assert.Equal(t, int64(1), totals["gacha_pity_total"])
}
