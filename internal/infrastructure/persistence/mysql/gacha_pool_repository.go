package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/gacha"
)

// GachaPoolRepository MySQL実装のPoolRepository
type GachaPoolRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewGachaPoolRepository 新しいGachaPoolRepositoryを作成
func NewGachaPoolRepository(db *DB) *GachaPoolRepository {
	return &GachaPoolRepository{
		db:     db,
		tracer: otel.Tracer("gacha-pool-repository"),
	}
}

// FindByID プールをエントリと景品定義込みで取得
func (r *GachaPoolRepository) FindByID(ctx context.Context, poolID string) (*gacha.Pool, error) {
	ctx, span := r.tracer.Start(ctx, "GachaPoolRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.pool_id", poolID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "gacha_pools"),
	)

	conn := r.db.conn(ctx)

	var name string
	var active bool
	var startAt, endAt time.Time
	err := conn.QueryRowContext(ctx, `
		SELECT name, is_active, start_at, end_at
		FROM gacha_pools
		WHERE pool_id = ?`, poolID).Scan(&name, &active, &startAt, &endAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "pool not found")
		return nil, gacha.ErrPoolNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find pool: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT p.prize_id, p.name, p.rarity, p.is_unique, p.payout, e.weight, e.is_active
		FROM gacha_pool_entries e
		JOIN gacha_prizes p ON p.prize_id = e.prize_id
		WHERE e.pool_id = ?
		ORDER BY p.prize_id`, poolID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query pool entries: %w", err)
	}
	defer rows.Close()

	var entries []gacha.PoolEntry
	for rows.Next() {
		var prizeID, prizeName, dbRarity string
		var unique, entryActive bool
		var payoutJSON sql.NullString
		var weight float64
		if err := rows.Scan(&prizeID, &prizeName, &dbRarity, &unique, &payoutJSON, &weight, &entryActive); err != nil {
			return nil, fmt.Errorf("failed to scan pool entry: %w", err)
		}

		rarity, err := gacha.NewRarity(dbRarity)
		if err != nil {
			return nil, fmt.Errorf("invalid prize %s: %w", prizeID, err)
		}

		var payout map[string]interface{}
		if payoutJSON.Valid && payoutJSON.String != "" {
			if err := json.Unmarshal([]byte(payoutJSON.String), &payout); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payout: %w", err)
			}
		}

		entries = append(entries, gacha.PoolEntry{
			Prize: gacha.Prize{
				PrizeID: prizeID,
				Name:    prizeName,
				Rarity:  rarity,
				Unique:  unique,
				Payout:  payout,
			},
			Weight: weight,
			Active: entryActive,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pool entries: %w", err)
	}

	span.SetAttributes(attribute.Int("db.entry_count", len(entries)))
	span.SetStatus(otelcodes.Ok, "pool found")
	return gacha.NewPool(poolID, name, active, startAt, endAt, entries), nil
}
