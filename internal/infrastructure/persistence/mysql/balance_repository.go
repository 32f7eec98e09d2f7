package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/transaction"
)

// BalanceRepository MySQL実装のBalanceRepository
type BalanceRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewBalanceRepository 新しいBalanceRepositoryを作成
func NewBalanceRepository(db *DB) *BalanceRepository {
	return &BalanceRepository{
		db:     db,
		tracer: otel.Tracer("balance-repository"),
	}
}

const selectBalance = `
		SELECT user_id, diamonds, tickets, points, version
		FROM user_balances
		WHERE user_id = ?`

// FindByUserID ユーザーIDで残高を取得
func (r *BalanceRepository) FindByUserID(ctx context.Context, userID string) (*currency.Balance, error) {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "user_balances"),
	)

	b, err := scanBalance(r.db.conn(ctx).QueryRowContext(ctx, selectBalance, userID))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "balance not found")
		return nil, currency.ErrBalanceNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find balance: %w", mapError(err))
	}

	span.SetStatus(otelcodes.Ok, "balance found")
	return b, nil
}

// FindByUserIDForUpdate 行ロック付きで残高を取得。行が無ければゼロ残高で作成してからロックする
func (r *BalanceRepository) FindByUserIDForUpdate(ctx context.Context, userID string) (*currency.Balance, error) {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.FindByUserIDForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT FOR UPDATE"),
		attribute.String("db.table", "user_balances"),
	)

	conn := r.db.conn(ctx)
	b, err := scanBalance(conn.QueryRowContext(ctx, selectBalance+" FOR UPDATE", userID))
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now().UTC()
		if _, err = insertIfAbsent(ctx, conn, `
		INSERT INTO user_balances (user_id, diamonds, tickets, points, version, created_at, updated_at)
		VALUES (?, 0, 0, 0, 0, ?, ?)`, userID, now, now); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to create balance: %w", err)
		}
		b, err = scanBalance(conn.QueryRowContext(ctx, selectBalance+" FOR UPDATE", userID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to lock balance: %w", mapError(err))
	}

	span.SetStatus(otelcodes.Ok, "balance locked")
	return b, nil
}

// Save 残高を保存（楽観的ロック）。成功したらエンティティのバージョンを進める
func (r *BalanceRepository) Save(ctx context.Context, b *currency.Balance) error {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", b.UserID()),
		attribute.Int("db.version", b.Version()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "user_balances"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE user_balances
		SET diamonds = ?, tickets = ?, points = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		b.Diamonds(), b.Tickets(), b.Points(), time.Now().UTC(), b.UserID(), b.Version(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save balance: %w", mapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Error, "version mismatch")
		return fmt.Errorf("%w: balance version mismatch for user %s", transaction.ErrConcurrencyConflict, b.UserID())
	}

	b.IncrementVersion()
	span.SetStatus(otelcodes.Ok, "balance saved")
	return nil
}

func scanBalance(row scanner) (*currency.Balance, error) {
	var userID string
	var diamonds, tickets, points int64
	var version int
	if err := row.Scan(&userID, &diamonds, &tickets, &points, &version); err != nil {
		return nil, err
	}
	b, err := currency.NewBalance(userID, diamonds, tickets, points, version)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct balance entity: %w", err)
	}
	return b, nil
}
