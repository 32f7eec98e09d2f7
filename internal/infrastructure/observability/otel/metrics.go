package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// トランザクション数（分類・通貨別）
	TransactionCount metric.Int64Counter

	// 通貨残高
	CurrencyBalance metric.Int64Gauge

	// 残高不足による拒否件数
	InsufficientFundsCount metric.Int64Counter

	// ガチャ実行数
	PullCount metric.Int64Counter

	// 排出結果（レアリティ別）
	DrawOutcomeCount metric.Int64Counter

	// 10連保証・天井の発動数
	GuaranteeCount metric.Int64Counter
	PityCount      metric.Int64Counter

	// 決済通知の重複受信数
	WebhookDuplicateCount metric.Int64Counter

	// 競合によるリトライ数
	RetryCount metric.Int64Counter

	// 連続日数リセット件数
	StreakResetCount metric.Int64Counter

	// アウトボックス送信数
	OutboxPublishCount metric.Int64Counter

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー数
	ErrorCount metric.Int64Counter
}

// NewMetrics グローバルのメータープロバイダーから新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter 指定したメーターで新しいMetricsを作成
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
	}{
		{&m.TransactionCount, "transactions_total", "Total number of ledger transactions"},
		{&m.InsufficientFundsCount, "insufficient_funds_total", "Total number of debits rejected for insufficient funds"},
		{&m.PullCount, "gacha_pulls_total", "Total number of gacha pulls"},
		{&m.DrawOutcomeCount, "gacha_draw_outcomes_total", "Total number of drawn prizes by rarity"},
		{&m.GuaranteeCount, "gacha_guarantee_total", "Total number of ten-pull guarantee replacements"},
		{&m.PityCount, "gacha_pity_total", "Total number of pity replacements"},
		{&m.WebhookDuplicateCount, "payment_webhook_duplicates_total", "Total number of redelivered payment confirmations"},
		{&m.RetryCount, "unit_of_work_retries_total", "Total number of unit of work retries after a conflict"},
		{&m.StreakResetCount, "streak_resets_total", "Total number of streaks reset by the sweep"},
		{&m.OutboxPublishCount, "outbox_publish_total", "Total number of outbox events published"},
		{&m.RequestCount, "requests_total", "Total number of requests"},
		{&m.ErrorCount, "errors_total", "Total number of errors"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, err
		}
	}

	m.CurrencyBalance, err = meter.Int64Gauge(
		"currency_balance",
		metric.WithDescription("Currency balance"),
	)
	if err != nil {
		return nil, err
	}

	m.ResponseTime, err = meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTransaction トランザクションを記録
func (m *Metrics) RecordTransaction(ctx context.Context, kind, currencyType string) {
	m.TransactionCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("currency_type", currencyType),
		),
	)
}

// RecordCurrencyBalance 通貨残高を記録
func (m *Metrics) RecordCurrencyBalance(ctx context.Context, userID, currencyType string, balance int64) {
	m.CurrencyBalance.Record(ctx, balance,
		metric.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("currency_type", currencyType),
		),
	)
}

// RecordInsufficientFunds 残高不足を記録
func (m *Metrics) RecordInsufficientFunds(ctx context.Context, currencyType string) {
	m.InsufficientFundsCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("currency_type", currencyType),
		),
	)
}

// RecordPull ガチャ実行を記録
func (m *Metrics) RecordPull(ctx context.Context, poolID, pullType, paymentMethod string) {
	m.PullCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("pool_id", poolID),
			attribute.String("pull_type", pullType),
			attribute.String("payment_method", paymentMethod),
		),
	)
}

// RecordDrawOutcome 排出結果を記録
func (m *Metrics) RecordDrawOutcome(ctx context.Context, poolID, rarity string, guaranteed, pity bool) {
	attrs := metric.WithAttributes(
		attribute.String("pool_id", poolID),
		attribute.String("rarity", rarity),
	)
	m.DrawOutcomeCount.Add(ctx, 1, attrs)
	if guaranteed {
		m.GuaranteeCount.Add(ctx, 1, attrs)
	}
	if pity {
		m.PityCount.Add(ctx, 1, attrs)
	}
}

// RecordWebhookDuplicate 決済通知の重複受信を記録
func (m *Metrics) RecordWebhookDuplicate(ctx context.Context) {
	m.WebhookDuplicateCount.Add(ctx, 1)
}

// RecordRetry ユニットオブワークの再試行を記録
func (m *Metrics) RecordRetry(ctx context.Context, operation string) {
	m.RetryCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
		),
	)
}

// RecordStreakReset 連続日数リセット件数を記録
func (m *Metrics) RecordStreakReset(ctx context.Context, count int64) {
	m.StreakResetCount.Add(ctx, count)
}

// RecordOutboxPublish アウトボックス送信を記録
func (m *Metrics) RecordOutboxPublish(ctx context.Context, eventType, result string) {
	m.OutboxPublishCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event_type", eventType),
			attribute.String("result", result),
		),
	)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
