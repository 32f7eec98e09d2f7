package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/service"
	"fan-ledger/internal/domain/transaction"
	"fan-ledger/internal/infrastructure/clock"
	"fan-ledger/internal/infrastructure/idgen"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// LedgerApplicationService 通貨台帳アプリケーションサービス
// 残高を変更する唯一の経路。残高の更新と監査ログの追記は同じユニットオブワークで行う
type LedgerApplicationService struct {
	balanceRepo     currency.BalanceRepository
	transactionRepo transaction.TransactionRepository
	txManager       transaction.TransactionManager
	conservation    *service.ConservationService
	idGen           idgen.Generator
	clock           clock.Clock
	logger          *otelinfra.Logger
	metrics         *otelinfra.Metrics
	tracer          trace.Tracer
	maxRetries      int
}

// NewLedgerApplicationService 新しいLedgerApplicationServiceを作成
func NewLedgerApplicationService(
	balanceRepo currency.BalanceRepository,
	transactionRepo transaction.TransactionRepository,
	txManager transaction.TransactionManager,
	conservation *service.ConservationService,
	idGen idgen.Generator,
	clk clock.Clock,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	maxRetries int,
) *LedgerApplicationService {
	if maxRetries <= 0 {
		maxRetries = transaction.DefaultMaxRetries
	}
	return &LedgerApplicationService{
		balanceRepo:     balanceRepo,
		transactionRepo: transactionRepo,
		txManager:       txManager,
		conservation:    conservation,
		idGen:           idGen,
		clock:           clk,
		logger:          logger,
		metrics:         metrics,
		tracer:          otel.Tracer("ledger-service"),
		maxRetries:      maxRetries,
	}
}

// GetBalance 残高を取得（未作成のユーザーはゼロ）
func (s *LedgerApplicationService) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.GetBalance")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", req.UserID))

	if err := currency.ValidateUserID(req.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	balance, err := s.balanceRepo.FindByUserID(ctx, req.UserID)
	if errors.Is(err, currency.ErrBalanceNotFound) {
		balance, err = currency.NewEmptyBalance(req.UserID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to find balance", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to find balance: %w", err)
	}

	balances := snapshot(balance)
	for ct, v := range balances {
		s.metrics.RecordCurrencyBalance(ctx, req.UserID, ct, v)
	}

	return &GetBalanceResponse{
		UserID:   req.UserID,
		Balances: balances,
	}, nil
}

// Credit 通貨を付与（独立したユニットオブワーク、競合時は再試行）
func (s *LedgerApplicationService) Credit(ctx context.Context, req *CreditRequest) (*MutationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Credit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("currency", req.Currency),
		attribute.Int64("amount", req.Amount),
		attribute.String("kind", req.Kind),
	)

	m, err := toMutation(req.UserID, req.Currency, req.Amount, req.Kind, req.Description, req.Reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	var result *MutationResult
	err = transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		var err error
		result, err = s.CreditInTx(ctx, m)
		return err
	}, s.onRetry(ctx, "ledger.credit"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to credit currency", err, mutationFields(m))
		s.metrics.RecordError(ctx, "credit_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Currency credited successfully", map[string]interface{}{
		"user_id":        m.UserID,
		"transaction_id": result.Transaction.TransactionID(),
		"balance_after":  result.Transaction.BalanceAfter(),
	})

	return toResponse(result), nil
}

// Debit 通貨を消費（独立したユニットオブワーク、競合時は再試行）
func (s *LedgerApplicationService) Debit(ctx context.Context, req *DebitRequest) (*MutationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Debit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("currency", req.Currency),
		attribute.Int64("amount", req.Amount),
		attribute.String("kind", req.Kind),
	)

	m, err := toMutation(req.UserID, req.Currency, req.Amount, req.Kind, req.Description, req.Reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	var result *MutationResult
	err = transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		var err error
		result, err = s.DebitInTx(ctx, m)
		return err
	}, s.onRetry(ctx, "ledger.debit"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, currency.ErrInsufficientFunds) {
			s.logger.Warn(ctx, "Insufficient funds", mutationFields(m))
		} else {
			s.logger.Error(ctx, "Failed to debit currency", err, mutationFields(m))
			s.metrics.RecordError(ctx, "debit_failed")
		}
		return nil, err
	}

	s.logger.Info(ctx, "Currency debited successfully", map[string]interface{}{
		"user_id":        m.UserID,
		"transaction_id": result.Transaction.TransactionID(),
		"balance_after":  result.Transaction.BalanceAfter(),
	})

	return toResponse(result), nil
}

// CreditInTx 呼び出し元のユニットオブワーク内で付与する
func (s *LedgerApplicationService) CreditInTx(ctx context.Context, m Mutation) (*MutationResult, error) {
	return s.apply(ctx, m, true)
}

// DebitInTx 呼び出し元のユニットオブワーク内で消費する
// 行ロックを取った状態で残高を確認し、不足していれば*currency.InsufficientFundsErrorを返す
func (s *LedgerApplicationService) DebitInTx(ctx context.Context, m Mutation) (*MutationResult, error) {
	return s.apply(ctx, m, false)
}

func (s *LedgerApplicationService) apply(ctx context.Context, m Mutation, credit bool) (*MutationResult, error) {
	if err := validateMutation(m); err != nil {
		return nil, err
	}

	balance, err := s.balanceRepo.FindByUserIDForUpdate(ctx, m.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock balance: %w", err)
	}

	signed := m.Amount
	if credit {
		err = balance.Credit(m.Currency, m.Amount)
	} else {
		err = balance.Debit(m.Currency, m.Amount)
		signed = -m.Amount
	}
	if err != nil {
		if errors.Is(err, currency.ErrInsufficientFunds) {
			s.metrics.RecordInsufficientFunds(ctx, m.Currency.String())
		}
		return nil, err
	}

	if err := s.balanceRepo.Save(ctx, balance); err != nil {
		return nil, fmt.Errorf("failed to save balance: %w", err)
	}

	txn, err := transaction.NewTransaction(
		s.idGen.NewID("txn"),
		m.UserID,
		m.Currency,
		signed,
		m.Kind,
		m.Description,
		m.Reference,
		balance.Of(m.Currency),
		s.clock.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	if err := s.transactionRepo.Save(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	s.metrics.RecordTransaction(ctx, m.Kind.String(), m.Currency.String())
	s.metrics.RecordCurrencyBalance(ctx, m.UserID, m.Currency.String(), balance.Of(m.Currency))

	return &MutationResult{Balance: balance, Transaction: txn}, nil
}

// Audit 通貨ごとに残高と監査ログ合計を突き合わせる
func (s *LedgerApplicationService) Audit(ctx context.Context, req *AuditRequest) (*AuditResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Audit")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", req.UserID))

	if err := currency.ValidateUserID(req.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	audits, err := s.conservation.Audit(ctx, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to audit balance", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to audit balance: %w", err)
	}

	resp := &AuditResponse{
		UserID:     req.UserID,
		Consistent: service.IsConsistent(audits),
	}
	for _, a := range audits {
		resp.Currencies = append(resp.Currencies, CurrencyAuditResult{
			Currency:   a.Currency.String(),
			Balance:    a.Balance,
			LedgerSum:  a.LedgerSum,
			Consistent: a.Consistent(),
		})
	}

	if !resp.Consistent {
		s.logger.Warn(ctx, "Balance does not match ledger", map[string]interface{}{
			"user_id": req.UserID,
		})
	}
	span.SetAttributes(attribute.Bool("consistent", resp.Consistent))
	return resp, nil
}

// onRetry 再試行時のログとメトリクス
func (s *LedgerApplicationService) onRetry(ctx context.Context, operation string) func(int, error) {
	return func(attempt int, err error) {
		s.metrics.RecordRetry(ctx, operation)
		s.logger.Warn(ctx, "Retrying after concurrency conflict", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt,
			"error":     err.Error(),
		})
	}
}

func toMutation(userID, ct string, amount int64, kind, description string, reference *string) (Mutation, error) {
	// 金額の検証はDBアクセスより前に行う
	if amount <= 0 {
		return Mutation{}, currency.ErrInvalidAmount
	}
	currencyType, err := currency.NewCurrencyType(ct)
	if err != nil {
		return Mutation{}, err
	}
	k, err := transaction.NewTransactionKind(kind)
	if err != nil {
		return Mutation{}, err
	}
	m := Mutation{
		UserID:      userID,
		Currency:    currencyType,
		Amount:      amount,
		Kind:        k,
		Description: description,
		Reference:   reference,
	}
	return m, validateMutation(m)
}

func validateMutation(m Mutation) error {
	if m.Amount <= 0 {
		return currency.ErrInvalidAmount
	}
	if m.Amount > currency.MaxAmount {
		return currency.ErrAmountTooLarge
	}
	if !m.Currency.Valid() {
		return fmt.Errorf("%w: %s", currency.ErrInvalidCurrency, m.Currency)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: kind %s", transaction.ErrInvalidTransaction, m.Kind)
	}
	return currency.ValidateUserID(m.UserID)
}

func snapshot(b *currency.Balance) map[string]int64 {
	out := make(map[string]int64, len(currency.AllCurrencyTypes))
	for ct, v := range b.Snapshot() {
		out[ct.String()] = v
	}
	return out
}

func toResponse(r *MutationResult) *MutationResponse {
	return &MutationResponse{
		TransactionID: r.Transaction.TransactionID(),
		Currency:      r.Transaction.CurrencyType().String(),
		Amount:        r.Transaction.Amount(),
		BalanceAfter:  r.Transaction.BalanceAfter(),
		Balances:      snapshot(r.Balance),
	}
}

func mutationFields(m Mutation) map[string]interface{} {
	return map[string]interface{}{
		"user_id":  m.UserID,
		"currency": m.Currency.String(),
		"amount":   m.Amount,
		"kind":     m.Kind.String(),
	}
}
