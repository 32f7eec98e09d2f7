package outbox

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/outbox"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// RelayResult 1回のリレー実行結果
type RelayResult struct {
	Fetched   int
	Published int
	Failed    int
}

// RelayService 未送信のアウトボックスイベントをメッセージブローカーへ送る
// 送信は少なくとも1回（at-least-once）。受信側はevent_idで重複を除く
type RelayService struct {
	repo       outbox.Repository
	publisher  outbox.Publisher
	batchSize  int
	maxRetries int
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
}

// NewRelayService 新しいRelayServiceを作成
func NewRelayService(
	repo outbox.Repository,
	publisher outbox.Publisher,
	batchSize int,
	maxRetries int,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *RelayService {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &RelayService{
		repo:       repo,
		publisher:  publisher,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("outbox-relay"),
	}
}

// Relay 未送信イベントを古い順に送信する
// 送信に失敗したイベントは再試行回数を増やし、上限に達したらfailedになる
func (s *RelayService) Relay(ctx context.Context) (*RelayResult, error) {
	ctx, span := s.tracer.Start(ctx, "RelayService.Relay")
	defer span.End()

	events, err := s.repo.FetchPending(ctx, s.batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to fetch pending outbox events", err, nil)
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	result := &RelayResult{Fetched: len(events)}
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.publisher.Publish(ctx, event); err != nil {
			result.Failed++
			s.metrics.RecordOutboxPublish(ctx, event.EventType, "failed")
			s.logger.Warn(ctx, "Failed to publish outbox event", map[string]interface{}{
				"event_id":    event.EventID,
				"event_type":  event.EventType,
				"retry_count": event.RetryCount,
				"error":       err.Error(),
			})
			if err := s.repo.MarkFailed(ctx, event.ID, s.maxRetries); err != nil {
				s.logger.Error(ctx, "Failed to record outbox failure", err, map[string]interface{}{
					"event_id": event.EventID,
				})
			}
			continue
		}

		if err := s.repo.MarkSent(ctx, event.ID); err != nil {
			// 次回再送される
			s.logger.Error(ctx, "Failed to mark outbox event sent", err, map[string]interface{}{
				"event_id": event.EventID,
			})
			continue
		}
		result.Published++
		s.metrics.RecordOutboxPublish(ctx, event.EventType, "sent")
	}

	span.SetAttributes(
		attribute.Int("outbox.fetched", result.Fetched),
		attribute.Int("outbox.published", result.Published),
		attribute.Int("outbox.failed", result.Failed),
	)
	if result.Fetched > 0 {
		s.logger.Debug(ctx, "Outbox relay finished", map[string]interface{}{
			"fetched":   result.Fetched,
			"published": result.Published,
			"failed":    result.Failed,
		})
	}
	return result, nil
}
