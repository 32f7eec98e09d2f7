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

// TransactionRepository MySQL実装のTransactionRepository
type TransactionRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewTransactionRepository 新しいTransactionRepositoryを作成
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		tracer: otel.Tracer("transaction-repository"),
	}
}

const selectTransaction = `
		SELECT transaction_id, user_id, currency, amount, kind, description,
			reference, status, balance_after, created_at
		FROM currency_transactions`

// Save トランザクションを保存（追記のみ）
func (r *TransactionRepository) Save(ctx context.Context, t *transaction.Transaction) error {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.transaction_id", t.TransactionID()),
		attribute.String("db.user_id", t.UserID()),
		attribute.String("db.kind", t.Kind().String()),
		attribute.String("db.currency_type", t.CurrencyType().String()),
		attribute.Int64("db.amount", t.Amount()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "currency_transactions"),
	)

	var reference interface{}
	if t.Reference() != nil {
		reference = *t.Reference()
	}

	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO currency_transactions (
			transaction_id, user_id, currency, amount, kind, description,
			reference, status, balance_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID(),
		t.UserID(),
		t.CurrencyType().String(),
		t.Amount(),
		t.Kind().String(),
		t.Description(),
		reference,
		t.Status().String(),
		t.BalanceAfter(),
		t.CreatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if isDuplicateEntry(err) {
			return fmt.Errorf("%w: %s", transaction.ErrDuplicateTransactionID, t.TransactionID())
		}
		return fmt.Errorf("failed to save transaction: %w", mapError(err))
	}

	span.SetStatus(otelcodes.Ok, "transaction saved")
	return nil
}

// FindByTransactionID トランザクションIDでトランザクションを取得
func (r *TransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.FindByTransactionID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.transaction_id", transactionID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "currency_transactions"),
	)

	t, err := scanTransaction(r.db.conn(ctx).QueryRowContext(ctx, selectTransaction+`
		WHERE transaction_id = ?`, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "transaction not found")
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "transaction found")
	return t, nil
}

// FindByUserID ユーザーIDでトランザクション一覧を取得（新しい順、ページネーション対応）
func (r *TransactionRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "currency_transactions"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, selectTransaction+`
		WHERE user_id = ?
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(transactions)))
	span.SetStatus(otelcodes.Ok, "transactions found")
	return transactions, nil
}

// SumByUserID ユーザーの通貨ごとの金額合計を取得
func (r *TransactionRepository) SumByUserID(ctx context.Context, userID string) (map[currency.CurrencyType]int64, error) {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.SumByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "currency_transactions"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, `
		SELECT currency, COALESCE(SUM(amount), 0)
		FROM currency_transactions
		WHERE user_id = ?
		GROUP BY currency`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}
	defer rows.Close()

	sums := make(map[currency.CurrencyType]int64)
	for rows.Next() {
		var dbCurrency string
		var sum int64
		if err := rows.Scan(&dbCurrency, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan sum: %w", err)
		}
		ct, err := currency.NewCurrencyType(dbCurrency)
		if err != nil {
			return nil, fmt.Errorf("invalid currency type: %w", err)
		}
		sums[ct] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sums: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "transactions summed")
	return sums, nil
}

func scanTransaction(row scanner) (*transaction.Transaction, error) {
	var transactionID, userID, dbCurrency, dbKind, description, dbStatus string
	var amount, balanceAfter int64
	var reference sql.NullString
	var createdAt time.Time

	if err := row.Scan(
		&transactionID,
		&userID,
		&dbCurrency,
		&amount,
		&dbKind,
		&description,
		&reference,
		&dbStatus,
		&balanceAfter,
		&createdAt,
	); err != nil {
		return nil, err
	}

	ct, err := currency.NewCurrencyType(dbCurrency)
	if err != nil {
		return nil, fmt.Errorf("invalid currency type: %w", err)
	}
	kind, err := transaction.NewTransactionKind(dbKind)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction kind: %w", err)
	}
	status, err := transaction.NewTransactionStatus(dbStatus)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction status: %w", err)
	}

	var referencePtr *string
	if reference.Valid {
		referencePtr = &reference.String
	}

	t, err := transaction.Reconstruct(
		transactionID,
		userID,
		ct,
		amount,
		kind,
		description,
		referencePtr,
		status,
		balanceAfter,
		createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct transaction entity: %w", err)
	}
	return t, nil
}
