package history

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/transaction"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// HistoryApplicationService 履歴アプリケーションサービス
type HistoryApplicationService struct {
	transactionRepo transaction.TransactionRepository
	batchRepo       gacha.DrawBatchRepository
	inventoryRepo   gacha.InventoryRepository
	logger          *otelinfra.Logger
	metrics         *otelinfra.Metrics
	tracer          trace.Tracer
}

// NewHistoryApplicationService 新しいHistoryApplicationServiceを作成
func NewHistoryApplicationService(
	transactionRepo transaction.TransactionRepository,
	batchRepo gacha.DrawBatchRepository,
	inventoryRepo gacha.InventoryRepository,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *HistoryApplicationService {
	return &HistoryApplicationService{
		transactionRepo: transactionRepo,
		batchRepo:       batchRepo,
		inventoryRepo:   inventoryRepo,
		logger:          logger,
		metrics:         metrics,
		tracer:          otel.Tracer("history-service"),
	}
}

// GetTransactionHistory トランザクション履歴を取得
func (s *HistoryApplicationService) GetTransactionHistory(ctx context.Context, req *GetTransactionHistoryRequest) (*GetTransactionHistoryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.GetTransactionHistory")
	defer span.End()

	req.Limit, req.Offset = normalizePage(req.Limit, req.Offset)
	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.Int("limit", req.Limit),
		attribute.Int("offset", req.Offset),
	)

	s.logger.Debug(ctx, "Getting transaction history", map[string]interface{}{
		"user_id":  req.UserID,
		"limit":    req.Limit,
		"offset":   req.Offset,
		"currency": req.Currency,
		"kind":     req.Kind,
	})

	// フィルタ条件の検証
	var currencyFilter currency.CurrencyType
	if req.Currency != "" {
		ct, err := currency.NewCurrencyType(req.Currency)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		currencyFilter = ct
	}
	var kindFilter transaction.TransactionKind
	if req.Kind != "" {
		k, err := transaction.NewTransactionKind(req.Kind)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		kindFilter = k
	}

	transactions, err := s.transactionRepo.FindByUserID(ctx, req.UserID, req.Limit, req.Offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to get transaction history", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}

	// フィルタはページ内で適用する
	filtered := make([]*transaction.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if currencyFilter != "" && txn.CurrencyType() != currencyFilter {
			continue
		}
		if kindFilter != "" && txn.Kind() != kindFilter {
			continue
		}
		filtered = append(filtered, txn)
	}

	return &GetTransactionHistoryResponse{
		Transactions: filtered,
		Total:        len(filtered),
		Limit:        req.Limit,
		Offset:       req.Offset,
	}, nil
}

// GetGachaHistory 抽選履歴を取得
func (s *HistoryApplicationService) GetGachaHistory(ctx context.Context, req *PageRequest) (*GetGachaHistoryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.GetGachaHistory")
	defer span.End()

	limit, offset := normalizePage(req.Limit, req.Offset)
	span.SetAttributes(attribute.String("user_id", req.UserID))

	batches, err := s.batchRepo.FindByUserID(ctx, req.UserID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to get gacha history", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to get gacha history: %w", err)
	}

	return &GetGachaHistoryResponse{Batches: batches, Limit: limit, Offset: offset}, nil
}

// GetInventory 所持品を取得
func (s *HistoryApplicationService) GetInventory(ctx context.Context, req *PageRequest) (*GetInventoryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.GetInventory")
	defer span.End()

	limit, offset := normalizePage(req.Limit, req.Offset)
	span.SetAttributes(attribute.String("user_id", req.UserID))

	items, err := s.inventoryRepo.FindByUserID(ctx, req.UserID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to get inventory", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}

	return &GetInventoryResponse{Items: items, Limit: limit, Offset: offset}, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
