package mysql

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/gacha"
)

// DrawBatchRepository MySQL実装のDrawBatchRepository
type DrawBatchRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewDrawBatchRepository 新しいDrawBatchRepositoryを作成
func NewDrawBatchRepository(db *DB) *DrawBatchRepository {
	return &DrawBatchRepository{
		db:     db,
		tracer: otel.Tracer("draw-batch-repository"),
	}
}

// Save バッチと各抽選記録を保存
func (r *DrawBatchRepository) Save(ctx context.Context, batch *gacha.DrawBatch) error {
	ctx, span := r.tracer.Start(ctx, "DrawBatchRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.batch_id", batch.BatchID),
		attribute.String("db.user_id", batch.UserID),
		attribute.String("db.pool_id", batch.PoolID),
		attribute.Int("db.draw_count", len(batch.Draws)),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "gacha_draw_batches"),
	)

	conn := r.db.conn(ctx)
	_, err := conn.ExecContext(ctx, `
		INSERT INTO gacha_draw_batches (
			batch_id, user_id, pool_id, pull_type, currency, amount_spent, transaction_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.BatchID,
		batch.UserID,
		batch.PoolID,
		batch.PullType.String(),
		batch.Currency.String(),
		batch.AmountSpent,
		batch.TransactionID,
		batch.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save draw batch: %w", mapError(err))
	}

	for _, d := range batch.Draws {
		if _, err := conn.ExecContext(ctx, `
		INSERT INTO gacha_draws (
			batch_id, draw_index, prize_id, rarity, is_duplicate, is_guaranteed, is_pity
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batch.BatchID,
			d.Index,
			d.PrizeID,
			d.Rarity.String(),
			d.Duplicate,
			d.Guaranteed,
			d.Pity,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return fmt.Errorf("failed to save draw %d: %w", d.Index, mapError(err))
		}
	}

	span.SetStatus(otelcodes.Ok, "draw batch saved")
	return nil
}

// FindByUserID ユーザーの抽選履歴を取得（新しい順）
func (r *DrawBatchRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*gacha.DrawBatch, error) {
	ctx, span := r.tracer.Start(ctx, "DrawBatchRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "gacha_draw_batches"),
	)

	conn := r.db.conn(ctx)
	rows, err := conn.QueryContext(ctx, `
		SELECT batch_id, user_id, pool_id, pull_type, currency, amount_spent, transaction_id, created_at
		FROM gacha_draw_batches
		WHERE user_id = ?
		ORDER BY created_at DESC, batch_id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query draw batches: %w", err)
	}

	var batches []*gacha.DrawBatch
	for rows.Next() {
		var b gacha.DrawBatch
		var pullType, dbCurrency string
		var createdAt time.Time
		if err := rows.Scan(&b.BatchID, &b.UserID, &b.PoolID, &pullType, &dbCurrency, &b.AmountSpent, &b.TransactionID, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan draw batch: %w", err)
		}
		b.PullType = gacha.PullType(pullType)
		b.Currency = currency.CurrencyType(dbCurrency)
		b.CreatedAt = createdAt
		batches = append(batches, &b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate draw batches: %w", err)
	}
	rows.Close()

	for _, b := range batches {
		draws, err := r.findDraws(ctx, conn, b.BatchID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		b.Draws = draws
	}

	span.SetAttributes(attribute.Int("db.result_count", len(batches)))
	span.SetStatus(otelcodes.Ok, "draw batches found")
	return batches, nil
}

func (r *DrawBatchRepository) findDraws(ctx context.Context, conn executor, batchID string) ([]gacha.DrawRecord, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT draw_index, prize_id, rarity, is_duplicate, is_guaranteed, is_pity
		FROM gacha_draws
		WHERE batch_id = ?
		ORDER BY draw_index`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}
	defer rows.Close()

	var draws []gacha.DrawRecord
	for rows.Next() {
		var d gacha.DrawRecord
		var rarity string
		if err := rows.Scan(&d.Index, &d.PrizeID, &rarity, &d.Duplicate, &d.Guaranteed, &d.Pity); err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		d.Rarity = gacha.Rarity(rarity)
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draws: %w", err)
	}
	return draws, nil
}
