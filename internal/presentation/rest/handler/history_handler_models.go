package handler

// TransactionItem 監査ログ1件
// @Description 監査ログ1件。amountは符号付き（消費は負）
type TransactionItem struct {
	TransactionID string  `json:"transaction_id" example:"txn_123"`
	Kind          string  `json:"kind" example:"gacha_spend"`
	Currency      string  `json:"currency" example:"diamonds"`
	Amount        string  `json:"amount" example:"-3000"`
	BalanceAfter  string  `json:"balance_after" example:"500"`
	Description   string  `json:"description,omitempty" example:"pool_spring ten"`
	Reference     *string `json:"reference,omitempty" example:"batch_123"`
	Status        string  `json:"status" example:"completed"`
	CreatedAt     string  `json:"created_at" example:"2026-01-01T12:00:00Z"`
}

// TransactionHistoryResponse トランザクション履歴レスポンス
// @Description トランザクション履歴レスポンス
type TransactionHistoryResponse struct {
	Transactions []TransactionItem `json:"transactions"`
	Total        int               `json:"total" example:"1"`
	Limit        int               `json:"limit" example:"50"`
	Offset       int               `json:"offset" example:"0"`
}

// DrawItem 抽選履歴内の1回分
// @Description 抽選履歴内の1回分
type DrawItem struct {
	Index      int    `json:"index" example:"9"`
	PrizeID    string `json:"prize_id" example:"sr_1"`
	Rarity     string `json:"rarity" example:"SR"`
	Duplicate  bool   `json:"duplicate" example:"false"`
	Guaranteed bool   `json:"guaranteed" example:"true"`
	Pity       bool   `json:"pity" example:"false"`
}

// DrawBatchItem 抽選履歴1件
// @Description 抽選履歴1件
type DrawBatchItem struct {
	BatchID       string     `json:"batch_id" example:"batch_123"`
	PoolID        string     `json:"pool_id" example:"pool_spring"`
	PullType      string     `json:"pull_type" example:"ten"`
	Currency      string     `json:"currency" example:"diamonds"`
	AmountSpent   string     `json:"amount_spent" example:"3000"`
	TransactionID string     `json:"transaction_id" example:"txn_123"`
	Draws         []DrawItem `json:"draws"`
	CreatedAt     string     `json:"created_at" example:"2026-01-01T12:00:00Z"`
}

// GachaHistoryResponse 抽選履歴レスポンス
// @Description 抽選履歴レスポンス（新しい順）
type GachaHistoryResponse struct {
	Batches []DrawBatchItem `json:"batches"`
	Limit   int             `json:"limit" example:"50"`
	Offset  int             `json:"offset" example:"0"`
}

// InventoryItem 所持品1件
// @Description 所持品1件
type InventoryItem struct {
	PrizeID    string `json:"prize_id" example:"ssr_1"`
	BatchID    string `json:"batch_id" example:"batch_123"`
	Unique     bool   `json:"unique" example:"true"`
	AcquiredAt string `json:"acquired_at" example:"2026-01-01T12:00:00Z"`
}

// InventoryResponse 所持品レスポンス
// @Description 所持品レスポンス
type InventoryResponse struct {
	Items  []InventoryItem `json:"items"`
	Limit  int             `json:"limit" example:"50"`
	Offset int             `json:"offset" example:"0"`
}
