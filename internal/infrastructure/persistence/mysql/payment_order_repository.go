package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/payment"
)

// PaymentOrderRepository MySQL実装のOrderRepository
type PaymentOrderRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewPaymentOrderRepository 新しいPaymentOrderRepositoryを作成
func NewPaymentOrderRepository(db *DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{
		db:     db,
		tracer: otel.Tracer("payment-order-repository"),
	}
}

const selectPaymentOrder = `
		SELECT order_id, payer_id, gross_amount, credited_amount, credited, transaction_id, credited_at, created_at
		FROM payment_orders
		WHERE order_id = ?`

// EnsureExists 注文行が無ければ未付与で作成（既存なら何もしない）
func (r *PaymentOrderRepository) EnsureExists(ctx context.Context, order *payment.Order) error {
	ctx, span := r.tracer.Start(ctx, "PaymentOrderRepository.EnsureExists")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.order_id", order.OrderID()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "payment_orders"),
	)

	created, err := insertIfAbsent(ctx, r.db.conn(ctx), `
		INSERT INTO payment_orders (order_id, payer_id, gross_amount, credited_amount, credited, created_at)
		VALUES (?, ?, ?, 0, FALSE, ?)`,
		order.OrderID(),
		order.PayerID(),
		order.GrossAmount().StringFixed(2),
		order.CreatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to ensure payment order: %w", err)
	}
	span.SetAttributes(attribute.Bool("db.created", created))

	span.SetStatus(otelcodes.Ok, "payment order ensured")
	return nil
}

// FindByOrderIDForUpdate 行ロック付きで注文を取得
func (r *PaymentOrderRepository) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*payment.Order, error) {
	return r.find(ctx, "PaymentOrderRepository.FindByOrderIDForUpdate", selectPaymentOrder+"\n\t\tFOR UPDATE", orderID)
}

// FindByOrderID 注文を取得
func (r *PaymentOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*payment.Order, error) {
	return r.find(ctx, "PaymentOrderRepository.FindByOrderID", selectPaymentOrder, orderID)
}

func (r *PaymentOrderRepository) find(ctx context.Context, spanName, query, orderID string) (*payment.Order, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.order_id", orderID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "payment_orders"),
	)

	var (
		id, payerID    string
		gross          string
		creditedAmount int64
		credited       bool
		txID           sql.NullString
		creditedAt     sql.NullTime
		createdAt      time.Time
	)
	err := r.db.conn(ctx).QueryRowContext(ctx, query, orderID).
		Scan(&id, &payerID, &gross, &creditedAmount, &credited, &txID, &creditedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "payment order not found")
		return nil, payment.ErrOrderNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find payment order: %w", mapError(err))
	}

	grossAmount, err := decimal.NewFromString(gross)
	if err != nil {
		return nil, fmt.Errorf("invalid gross amount in storage: %w", err)
	}

	var txIDPtr *string
	if txID.Valid {
		txIDPtr = &txID.String
	}
	var creditedAtPtr *time.Time
	if creditedAt.Valid {
		creditedAtPtr = &creditedAt.Time
	}

	span.SetStatus(otelcodes.Ok, "payment order found")
	return payment.ReconstructOrder(id, payerID, grossAmount, creditedAmount, credited, txIDPtr, creditedAtPtr, createdAt), nil
}

// MarkCredited 付与済みマーカーを保存
func (r *PaymentOrderRepository) MarkCredited(ctx context.Context, order *payment.Order) error {
	ctx, span := r.tracer.Start(ctx, "PaymentOrderRepository.MarkCredited")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.order_id", order.OrderID()),
		attribute.Int64("db.credited_amount", order.CreditedAmount()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "payment_orders"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE payment_orders
		SET credited = TRUE, credited_amount = ?, transaction_id = ?, credited_at = ?
		WHERE order_id = ? AND credited = FALSE`,
		order.CreditedAmount(),
		order.TransactionID(),
		order.CreditedAt(),
		order.OrderID(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to mark payment order credited: %w", mapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Error, "order already credited")
		return fmt.Errorf("%w: order %s already credited", payment.ErrInvalidOrder, order.OrderID())
	}

	span.SetStatus(otelcodes.Ok, "payment order credited")
	return nil
}
