package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/outbox"
)

// OutboxRepository MySQL実装のアウトボックスリポジトリ
type OutboxRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewOutboxRepository 新しいOutboxRepositoryを作成
func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		tracer: otel.Tracer("outbox-repository"),
	}
}

// Append イベントを追加（呼び出し元のトランザクション内で実行）
func (r *OutboxRepository) Append(ctx context.Context, event *outbox.Event) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.Append")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.event_id", event.EventID),
		attribute.String("db.event_type", event.EventType),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "outbox_events"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO outbox_events (
			event_id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		event.EventID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		string(outbox.EventStatusPending),
		event.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to append outbox event: %w", mapError(err))
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}

	span.SetStatus(otelcodes.Ok, "outbox event appended")
	return nil
}

// FetchPending 未送信イベントを古い順に取得
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*outbox.Event, error) {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.FetchPending")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "outbox_events"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, created_at, sent_at
		FROM outbox_events
		WHERE status = ?
		ORDER BY id
		LIMIT ?`, string(outbox.EventStatusPending), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []*outbox.Event
	for rows.Next() {
		var e outbox.Event
		var status string
		var sentAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &status, &e.RetryCount, &e.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Status = outbox.EventStatus(status)
		if sentAt.Valid {
			t := sentAt.Time
			e.SentAt = &t
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(events)))
	span.SetStatus(otelcodes.Ok, "pending outbox events fetched")
	return events, nil
}

// MarkSent 送信済みにする
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkSent")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("db.id", id),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "outbox_events"),
	)

	_, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE outbox_events SET status = ?, sent_at = ? WHERE id = ?`,
		string(outbox.EventStatusSent), time.Now().UTC(), id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "outbox event sent")
	return nil
}

// MarkFailed 送信失敗を記録。maxRetriesに達したらfailedにする
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, maxRetries int) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkFailed")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("db.id", id),
		attribute.Int("db.max_retries", maxRetries),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "outbox_events"),
	)

	_, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
			status = CASE WHEN retry_count >= ? THEN ? ELSE status END
		WHERE id = ?`,
		maxRetries, string(outbox.EventStatusFailed), id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "outbox event failure recorded")
	return nil
}
