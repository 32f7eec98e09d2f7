package kafka

import (
	"context"

	"fan-ledger/internal/domain/outbox"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// LogPublisher Kafka無効時の送信先。イベントをログに出力するだけ
type LogPublisher struct {
	logger *otelinfra.Logger
}

// NewLogPublisher 新しいLogPublisherを作成
func NewLogPublisher(logger *otelinfra.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish イベントをログに出力
func (p *LogPublisher) Publish(ctx context.Context, event *outbox.Event) error {
	p.logger.Info(ctx, "Outbox event", map[string]interface{}{
		"event_id":       event.EventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"payload":        string(event.Payload),
	})
	return nil
}
