package payment

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/application/ledger"
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/outbox"
	"fan-ledger/internal/domain/payment"
	"fan-ledger/internal/domain/transaction"
	"fan-ledger/internal/infrastructure/clock"
	"fan-ledger/internal/infrastructure/idgen"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// LedgerWriter 呼び出し元のユニットオブワーク内で通貨を付与する
type LedgerWriter interface {
	CreditInTx(ctx context.Context, m ledger.Mutation) (*ledger.MutationResult, error)
}

// PaymentApplicationService 決済完了通知による通貨付与アプリケーションサービス
// 注文ごとの付与済みマーカーにより、同じ通知を何度受けても付与は1回だけ行う
type PaymentApplicationService struct {
	ledger     LedgerWriter
	orderRepo  payment.OrderRepository
	outboxRepo outbox.Repository
	txManager  transaction.TransactionManager
	converter  *payment.Converter
	idGen      idgen.Generator
	clock      clock.Clock
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
	maxRetries int
}

// NewPaymentApplicationService 新しいPaymentApplicationServiceを作成
func NewPaymentApplicationService(
	ledgerWriter LedgerWriter,
	orderRepo payment.OrderRepository,
	outboxRepo outbox.Repository,
	txManager transaction.TransactionManager,
	converter *payment.Converter,
	idGen idgen.Generator,
	clk clock.Clock,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	maxRetries int,
) *PaymentApplicationService {
	return &PaymentApplicationService{
		ledger:     ledgerWriter,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		converter:  converter,
		idGen:      idGen,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("payment-service"),
		maxRetries: maxRetries,
	}
}

// HandlePaymentConfirmed 決済完了通知を処理し、未付与ならダイヤを付与する
func (s *PaymentApplicationService) HandlePaymentConfirmed(ctx context.Context, req *PaymentConfirmedRequest) (*PaymentConfirmedResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentApplicationService.HandlePaymentConfirmed")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("payer_id", req.PayerID),
		attribute.String("gross_amount", req.GrossAmount),
	)

	s.logger.Info(ctx, "Handling payment confirmation", map[string]interface{}{
		"order_id": req.OrderID,
		"payer_id": req.PayerID,
	})

	fail := func(err error) (*PaymentConfirmedResponse, error) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	// バリデーション
	gross, err := payment.ParseGrossAmount(req.GrossAmount)
	if err != nil {
		return fail(err)
	}
	if err := currency.ValidateUserID(req.PayerID); err != nil {
		return fail(fmt.Errorf("%w: %w", payment.ErrInvalidOrder, err))
	}
	order, err := payment.NewOrder(req.OrderID, req.PayerID, gross, s.clock.Now())
	if err != nil {
		return fail(err)
	}
	amount, err := s.converter.Convert(gross)
	if err != nil {
		return fail(err)
	}
	if amount <= 0 {
		return fail(fmt.Errorf("%w: gross %s converts to zero", currency.ErrInvalidAmount, req.GrossAmount))
	}

	var resp *PaymentConfirmedResponse
	err = transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		var err error
		resp, err = s.creditInTx(ctx, order, amount)
		return err
	}, func(attempt int, err error) {
		s.metrics.RecordRetry(ctx, "payment.confirmed")
		s.logger.Warn(ctx, "Retrying payment after concurrency conflict", map[string]interface{}{
			"order_id": req.OrderID,
			"attempt":  attempt,
			"error":    err.Error(),
		})
	})
	if err != nil {
		fields := map[string]interface{}{
			"order_id": req.OrderID,
			"payer_id": req.PayerID,
		}
		if errors.Is(err, payment.ErrPayerMismatch) {
			s.logger.Warn(ctx, "Payer mismatch", fields)
		} else {
			s.logger.Error(ctx, "Failed to handle payment confirmation", err, fields)
			s.metrics.RecordError(ctx, "payment_credit_failed")
		}
		return fail(err)
	}

	if !resp.Credited {
		s.metrics.RecordWebhookDuplicate(ctx)
		s.logger.Info(ctx, "Payment already credited", map[string]interface{}{
			"order_id":       req.OrderID,
			"transaction_id": resp.TransactionID,
		})
	} else {
		s.logger.Info(ctx, "Payment credited successfully", map[string]interface{}{
			"order_id":       req.OrderID,
			"amount":         resp.Amount,
			"transaction_id": resp.TransactionID,
		})
	}
	span.SetAttributes(attribute.Bool("credited", resp.Credited))

	return resp, nil
}

func (s *PaymentApplicationService) creditInTx(ctx context.Context, incoming *payment.Order, amount int64) (*PaymentConfirmedResponse, error) {
	if err := s.orderRepo.EnsureExists(ctx, incoming); err != nil {
		return nil, fmt.Errorf("failed to ensure order: %w", err)
	}
	order, err := s.orderRepo.FindByOrderIDForUpdate(ctx, incoming.OrderID())
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if err := order.EnsurePayer(incoming.PayerID()); err != nil {
		return nil, err
	}

	if order.IsCredited() {
		resp := &PaymentConfirmedResponse{
			OrderID:  order.OrderID(),
			Credited: false,
			Amount:   order.CreditedAmount(),
		}
		if id := order.TransactionID(); id != nil {
			resp.TransactionID = *id
		}
		return resp, nil
	}

	reference := "order:" + order.OrderID()
	result, err := s.ledger.CreditInTx(ctx, ledger.Mutation{
		UserID:      order.PayerID(),
		Currency:    currency.CurrencyTypeDiamonds,
		Amount:      amount,
		Kind:        transaction.KindPaymentCredit,
		Description: fmt.Sprintf("payment %s", order.GrossAmount().StringFixed(2)),
		Reference:   &reference,
	})
	if err != nil {
		return nil, err
	}
	txID := result.Transaction.TransactionID()

	if err := order.MarkCredited(amount, txID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.orderRepo.MarkCredited(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to mark order credited: %w", err)
	}

	event, err := outbox.NewEvent(
		s.idGen.NewID("evt"),
		outbox.AggregatePaymentOrder,
		order.OrderID(),
		outbox.EventTypePaymentCredited,
		outbox.PaymentCreditedPayload{
			OrderID:       order.OrderID(),
			PayerID:       order.PayerID(),
			GrossAmount:   order.GrossAmount().StringFixed(2),
			Amount:        amount,
			TransactionID: txID,
		},
		s.clock.Now(),
	)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append outbox event: %w", err)
	}

	return &PaymentConfirmedResponse{
		OrderID:       order.OrderID(),
		Credited:      true,
		Amount:        amount,
		TransactionID: txID,
	}, nil
}

// GetOrder 注文の付与状態を取得
func (s *PaymentApplicationService) GetOrder(ctx context.Context, orderID string) (*GetOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentApplicationService.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := s.orderRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if !errors.Is(err, payment.ErrOrderNotFound) {
			s.logger.Error(ctx, "Failed to find order", err, map[string]interface{}{"order_id": orderID})
		}
		return nil, err
	}

	return &GetOrderResponse{
		OrderID:        order.OrderID(),
		PayerID:        order.PayerID(),
		GrossAmount:    order.GrossAmount().StringFixed(2),
		Credited:       order.IsCredited(),
		CreditedAmount: order.CreditedAmount(),
		TransactionID:  order.TransactionID(),
		CreditedAt:     order.CreditedAt(),
		CreatedAt:      order.CreatedAt(),
	}, nil
}
