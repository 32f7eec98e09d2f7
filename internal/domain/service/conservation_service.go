package service

import (
	"context"
	"errors"
	"fmt"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/transaction"
)

// CurrencyAudit 通貨ごとの残高と監査ログ合計の突き合わせ結果
type CurrencyAudit struct {
	Currency  currency.CurrencyType
	Balance   int64
	LedgerSum int64
}

// Consistent 残高と監査ログ合計が一致しているか
func (a CurrencyAudit) Consistent() bool {
	return a.Balance == a.LedgerSum
}

// ConservationService 残高保存則を検証するドメインサービス
// 各ユーザー・通貨について、残高は監査ログの金額合計と一致しなければならない
type ConservationService struct {
	balanceRepo     currency.BalanceRepository
	transactionRepo transaction.TransactionRepository
}

// NewConservationService 新しいConservationServiceを作成
func NewConservationService(balanceRepo currency.BalanceRepository, transactionRepo transaction.TransactionRepository) *ConservationService {
	return &ConservationService{
		balanceRepo:     balanceRepo,
		transactionRepo: transactionRepo,
	}
}

// Audit ユーザーの全通貨について残高と監査ログ合計を突き合わせる
func (s *ConservationService) Audit(ctx context.Context, userID string) ([]CurrencyAudit, error) {
	balance, err := s.balanceRepo.FindByUserID(ctx, userID)
	if errors.Is(err, currency.ErrBalanceNotFound) {
		// 未作成の残高はゼロとして扱う
		balance, err = currency.NewEmptyBalance(userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	sums, err := s.transactionRepo.SumByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	audits := make([]CurrencyAudit, 0, len(currency.AllCurrencyTypes))
	for _, ct := range currency.AllCurrencyTypes {
		audits = append(audits, CurrencyAudit{
			Currency:  ct,
			Balance:   balance.Of(ct),
			LedgerSum: sums[ct],
		})
	}
	return audits, nil
}

// IsConsistent 全通貨で残高と監査ログ合計が一致しているか
func IsConsistent(audits []CurrencyAudit) bool {
	for _, a := range audits {
		if !a.Consistent() {
			return false
		}
	}
	return true
}
