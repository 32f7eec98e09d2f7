package handler

// PaymentWebhookRequest 決済完了通知
// @Description 決済完了通知。同じorder_idは何度届いても1回だけ付与する
type PaymentWebhookRequest struct {
	OrderID     string `json:"order_id" validate:"required,max=255" example:"ord_20260301_0001"`
	PayerID     string `json:"payer_id" validate:"required,max=255" example:"user123"`
	GrossAmount string `json:"gross_amount" validate:"required,decimalstr" example:"9.99"`
}

// PaymentWebhookResponse 決済完了通知の処理結果
// @Description creditedがfalseの場合は既に付与済みで、amount・transaction_idは最初の付与のもの
type PaymentWebhookResponse struct {
	OrderID       string `json:"order_id" example:"ord_20260301_0001"`
	Credited      bool   `json:"credited" example:"true"`
	Amount        string `json:"amount" example:"99"`
	TransactionID string `json:"transaction_id" example:"txn_123"`
}

// OrderResponse 注文状態
// @Description 注文状態
type OrderResponse struct {
	OrderID        string  `json:"order_id" example:"ord_20260301_0001"`
	PayerID        string  `json:"payer_id" example:"user123"`
	GrossAmount    string  `json:"gross_amount" example:"9.99"`
	Credited       bool    `json:"credited" example:"true"`
	CreditedAmount string  `json:"credited_amount" example:"99"`
	TransactionID  *string `json:"transaction_id,omitempty" example:"txn_123"`
	CreditedAt     *string `json:"credited_at,omitempty" example:"2026-03-01T12:00:00Z"`
	CreatedAt      string  `json:"created_at" example:"2026-03-01T12:00:00Z"`
}
