package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/transaction"
)

// PityRepository MySQL実装のPityRepository
type PityRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewPityRepository 新しいPityRepositoryを作成
func NewPityRepository(db *DB) *PityRepository {
	return &PityRepository{
		db:     db,
		tracer: otel.Tracer("pity-repository"),
	}
}

const selectPityForUpdate = `
		SELECT draws_since_hit, version
		FROM gacha_pity_counters
		WHERE user_id = ? AND pool_id = ?
		FOR UPDATE`

// FindForUpdate 行ロック付きで取得（存在しない場合はゼロで作成）
func (r *PityRepository) FindForUpdate(ctx context.Context, userID, poolID string) (*gacha.PityCounter, error) {
	ctx, span := r.tracer.Start(ctx, "PityRepository.FindForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.pool_id", poolID),
		attribute.String("db.operation", "SELECT FOR UPDATE"),
		attribute.String("db.table", "gacha_pity_counters"),
	)

	conn := r.db.conn(ctx)
	counter := &gacha.PityCounter{UserID: userID, PoolID: poolID}
	err := conn.QueryRowContext(ctx, selectPityForUpdate, userID, poolID).Scan(&counter.DrawsSinceHit, &counter.Version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err = insertIfAbsent(ctx, conn, `
		INSERT INTO gacha_pity_counters (user_id, pool_id, draws_since_hit, version)
		VALUES (?, ?, 0, 0)`, userID, poolID); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to create pity counter: %w", err)
		}
		err = conn.QueryRowContext(ctx, selectPityForUpdate, userID, poolID).Scan(&counter.DrawsSinceHit, &counter.Version)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to lock pity counter: %w", mapError(err))
	}

	span.SetStatus(otelcodes.Ok, "pity counter locked")
	return counter, nil
}

// Save カウンターを保存（楽観的ロック対応）
func (r *PityRepository) Save(ctx context.Context, counter *gacha.PityCounter) error {
	ctx, span := r.tracer.Start(ctx, "PityRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", counter.UserID),
		attribute.String("db.pool_id", counter.PoolID),
		attribute.Int("db.draws_since_hit", counter.DrawsSinceHit),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "gacha_pity_counters"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE gacha_pity_counters
		SET draws_since_hit = ?, version = version + 1
		WHERE user_id = ? AND pool_id = ? AND version = ?`,
		counter.DrawsSinceHit, counter.UserID, counter.PoolID, counter.Version,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save pity counter: %w", mapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Error, "version mismatch")
		return fmt.Errorf("%w: pity counter version mismatch", transaction.ErrConcurrencyConflict)
	}

	counter.Version++
	span.SetStatus(otelcodes.Ok, "pity counter saved")
	return nil
}
