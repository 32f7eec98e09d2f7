package ledger

import (
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/transaction"
)

// Mutation 台帳への1件の変更（呼び出し元のユニットオブワーク内で使う）
type Mutation struct {
	UserID      string
	Currency    currency.CurrencyType
	Amount      int64
	Kind        transaction.TransactionKind
	Description string
	Reference   *string
}

// MutationResult 変更後の残高と監査ログ
type MutationResult struct {
	Balance     *currency.Balance
	Transaction *transaction.Transaction
}

// GetBalanceRequest 残高取得リクエスト
type GetBalanceRequest struct {
	UserID string
}

// GetBalanceResponse 残高取得レスポンス
type GetBalanceResponse struct {
	UserID   string
	Balances map[string]int64 // "diamonds" => 3000, "tickets" => 5, "points" => 0
}

// CreditRequest 付与リクエスト
type CreditRequest struct {
	UserID      string
	Currency    string
	Amount      int64
	Kind        string
	Description string
	Reference   *string
}

// DebitRequest 消費リクエスト
type DebitRequest struct {
	UserID      string
	Currency    string
	Amount      int64
	Kind        string
	Description string
	Reference   *string
}

// MutationResponse 付与・消費レスポンス
type MutationResponse struct {
	TransactionID string
	Currency      string
	Amount        int64 // 符号付き
	BalanceAfter  int64
	Balances      map[string]int64
}

// AuditRequest 監査リクエスト
type AuditRequest struct {
	UserID string
}

// CurrencyAuditResult 通貨ごとの監査結果
type CurrencyAuditResult struct {
	Currency   string
	Balance    int64
	LedgerSum  int64
	Consistent bool
}

// AuditResponse 監査レスポンス
type AuditResponse struct {
	UserID     string
	Currencies []CurrencyAuditResult
	Consistent bool
}
