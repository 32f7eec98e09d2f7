package mysql

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/gacha"
)

// uniqueDedupKey ユニーク景品の重複防止キー（UNIQUE(user_id, prize_id, dedup_key)）
const uniqueDedupKey = "unique"

// PrizeInventoryRepository MySQL実装のInventoryRepository
type PrizeInventoryRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewPrizeInventoryRepository 新しいPrizeInventoryRepositoryを作成
func NewPrizeInventoryRepository(db *DB) *PrizeInventoryRepository {
	return &PrizeInventoryRepository{
		db:     db,
		tracer: otel.Tracer("prize-inventory-repository"),
	}
}

// Add 所持品を追加。ユニーク景品を既に所持している場合は追加せずfalseを返す
func (r *PrizeInventoryRepository) Add(ctx context.Context, entry *gacha.InventoryEntry) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "PrizeInventoryRepository.Add")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", entry.UserID),
		attribute.String("db.prize_id", entry.PrizeID),
		attribute.Bool("db.unique", entry.Unique),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "prize_inventory"),
	)

	// 非ユニーク景品はdedup_keyがNULLのため一意制約に掛からない
	var dedupKey interface{}
	if entry.Unique {
		dedupKey = uniqueDedupKey
	}

	added, err := insertIfAbsent(ctx, r.db.conn(ctx), `
		INSERT INTO prize_inventory (user_id, prize_id, batch_id, dedup_key, acquired_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.UserID,
		entry.PrizeID,
		entry.BatchID,
		dedupKey,
		entry.AcquiredAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to add inventory: %w", err)
	}

	span.SetAttributes(attribute.Bool("db.added", added))
	span.SetStatus(otelcodes.Ok, "inventory added")
	return added, nil
}

// FindByUserID ユーザーの所持品を取得（新しい順）
func (r *PrizeInventoryRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*gacha.InventoryEntry, error) {
	ctx, span := r.tracer.Start(ctx, "PrizeInventoryRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "prize_inventory"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, `
		SELECT user_id, prize_id, batch_id, dedup_key IS NOT NULL, acquired_at
		FROM prize_inventory
		WHERE user_id = ?
		ORDER BY acquired_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var entries []*gacha.InventoryEntry
	for rows.Next() {
		var e gacha.InventoryEntry
		if err := rows.Scan(&e.UserID, &e.PrizeID, &e.BatchID, &e.Unique, &e.AcquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inventory: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "inventory found")
	return entries, nil
}
