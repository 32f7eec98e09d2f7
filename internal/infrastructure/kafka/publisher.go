package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/outbox"
	"fan-ledger/internal/infrastructure/config"
)

// messageWriter kafka.Writerの送信部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher アウトボックスイベントをKafkaへ送信する
type Publisher struct {
	writer messageWriter
	topic  string
	tracer trace.Tracer
}

// NewPublisher 新しいPublisherを作成
func NewPublisher(cfg *config.KafkaConfig) *Publisher {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}

	return newPublisherWithWriter(writer, cfg.Topic)
}

func newPublisherWithWriter(w messageWriter, topic string) *Publisher {
	return &Publisher{
		writer: w,
		topic:  topic,
		tracer: otel.Tracer("kafka-publisher"),
	}
}

// Publish イベントを1件送信。集約IDをキーにして同じ集約の順序を保つ
func (p *Publisher) Publish(ctx context.Context, event *outbox.Event) error {
	ctx, span := p.tracer.Start(ctx, "Publisher.Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", p.topic),
		attribute.String("messaging.message.id", event.EventID),
		attribute.String("event.type", event.EventType),
	)

	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to publish event %s: %w", event.EventID, err)
	}

	span.SetStatus(otelcodes.Ok, "event published")
	return nil
}

// Close Writerを閉じる
func (p *Publisher) Close() error {
	return p.writer.Close()
}
