package history

import (
	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/transaction"
)

// GetTransactionHistoryRequest トランザクション履歴取得リクエスト
type GetTransactionHistoryRequest struct {
	UserID   string
	Limit    int
	Offset   int
	Currency string // optional: "diamonds", "tickets", "points"
	Kind     string // optional: "gacha_spend", "payment_credit", etc.
}

// GetTransactionHistoryResponse トランザクション履歴取得レスポンス
type GetTransactionHistoryResponse struct {
	Transactions []*transaction.Transaction
	Total        int
	Limit        int
	Offset       int
}

// PageRequest ページ指定付きの取得リクエスト
type PageRequest struct {
	UserID string
	Limit  int
	Offset int
}

// GetGachaHistoryResponse 抽選履歴取得レスポンス
type GetGachaHistoryResponse struct {
	Batches []*gacha.DrawBatch
	Limit   int
	Offset  int
}

// GetInventoryResponse 所持品取得レスポンス
type GetInventoryResponse struct {
	Items  []*gacha.InventoryEntry
	Limit  int
	Offset int
}
