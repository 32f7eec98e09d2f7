package payment

import "time"

// PaymentConfirmedRequest 決済完了通知リクエスト
type PaymentConfirmedRequest struct {
	OrderID     string
	PayerID     string
	GrossAmount string // 小数点以下2桁までの10進文字列
}

// PaymentConfirmedResponse 決済完了通知レスポンス
// 既に付与済みの注文ではCreditedがfalseになり、Amount・TransactionIDは最初の付与のもの
type PaymentConfirmedResponse struct {
	OrderID       string
	Credited      bool
	Amount        int64
	TransactionID string
}

// GetOrderResponse 注文状態レスポンス
type GetOrderResponse struct {
	OrderID        string
	PayerID        string
	GrossAmount    string
	Credited       bool
	CreditedAmount int64
	TransactionID  *string
	CreditedAt     *time.Time
	CreatedAt      time.Time
}
