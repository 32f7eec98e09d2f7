package handler

// BalanceItem 通貨別残高
// @Description 通貨別残高（10進文字列）
type BalanceItem struct {
	Diamonds string `json:"diamonds" example:"3000"`
	Tickets  string `json:"tickets" example:"5"`
	Points   string `json:"points" example:"0"`
}

// BalanceResponse 残高レスポンス
// @Description 残高レスポンス
type BalanceResponse struct {
	UserID   string      `json:"user_id" example:"user123"`
	Balances BalanceItem `json:"balances"`
}

// MutationRequest 付与・消費リクエスト
// @Description 付与・消費リクエスト。kindを省略した場合はadjustment
type MutationRequest struct {
	Currency    string  `json:"currency" validate:"required,max=16" example:"diamonds" enums:"diamonds,tickets,points"`
	Amount      string  `json:"amount" validate:"required,int64str" example:"100"`
	Kind        string  `json:"kind" example:"gift"`
	Description string  `json:"description" validate:"max=255" example:"運営からの補填"`
	Reference   *string `json:"reference,omitempty" validate:"omitempty,max=255" example:"ticket-4821"`
}

// MutationResponse 付与・消費レスポンス
// @Description 付与・消費レスポンス
type MutationResponse struct {
	TransactionID string      `json:"transaction_id" example:"txn_123"`
	Currency      string      `json:"currency" example:"diamonds"`
	Amount        string      `json:"amount" example:"-300"`
	BalanceAfter  string      `json:"balance_after" example:"2700"`
	Balances      BalanceItem `json:"balances"`
}

// CurrencyAuditItem 通貨ごとの監査結果
// @Description 残高と台帳合計の突き合わせ結果
type CurrencyAuditItem struct {
	Currency   string `json:"currency" example:"diamonds"`
	Balance    string `json:"balance" example:"2700"`
	LedgerSum  string `json:"ledger_sum" example:"2700"`
	Consistent bool   `json:"consistent" example:"true"`
}

// AuditResponse 監査レスポンス
// @Description 監査レスポンス
type AuditResponse struct {
	UserID     string              `json:"user_id" example:"user123"`
	Consistent bool                `json:"consistent" example:"true"`
	Currencies []CurrencyAuditItem `json:"currencies"`
}
