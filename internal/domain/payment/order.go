package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 決済注文と付与済みマーカー
type Order struct {
	orderID        string
	payerID        string
	grossAmount    decimal.Decimal
	creditedAmount int64
	credited       bool // 付与済みマーカー（冪等性キー）
	transactionID  *string
	creditedAt     *time.Time
	createdAt      time.Time
}

// NewOrder 新しい未付与のOrderを作成
func NewOrder(orderID, payerID string, grossAmount decimal.Decimal, createdAt time.Time) (*Order, error) {
	if orderID == "" || payerID == "" {
		return nil, ErrInvalidOrder
	}
	if !grossAmount.IsPositive() {
		return nil, ErrInvalidGrossAmount
	}
	return &Order{
		orderID:     orderID,
		payerID:     payerID,
		grossAmount: grossAmount,
		createdAt:   createdAt,
	}, nil
}

// ReconstructOrder 永続化済みのOrderを復元
func ReconstructOrder(
	orderID string,
	payerID string,
	grossAmount decimal.Decimal,
	creditedAmount int64,
	credited bool,
	transactionID *string,
	creditedAt *time.Time,
	createdAt time.Time,
) *Order {
	return &Order{
		orderID:        orderID,
		payerID:        payerID,
		grossAmount:    grossAmount,
		creditedAmount: creditedAmount,
		credited:       credited,
		transactionID:  transactionID,
		creditedAt:     creditedAt,
		createdAt:      createdAt,
	}
}

// OrderID 注文IDを返す
func (o *Order) OrderID() string {
	return o.orderID
}

// PayerID 支払者IDを返す
func (o *Order) PayerID() string {
	return o.payerID
}

// GrossAmount 決済金額を返す
func (o *Order) GrossAmount() decimal.Decimal {
	return o.grossAmount
}

// CreditedAmount 付与した通貨量を返す
func (o *Order) CreditedAmount() int64 {
	return o.creditedAmount
}

// IsCredited 付与済みかどうか
func (o *Order) IsCredited() bool {
	return o.credited
}

// TransactionID 付与トランザクションIDを返す
func (o *Order) TransactionID() *string {
	return o.transactionID
}

// CreditedAt 付与日時を返す
func (o *Order) CreditedAt() *time.Time {
	return o.creditedAt
}

// CreatedAt 作成日時を返す
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// EnsurePayer 支払者が一致するか確認
func (o *Order) EnsurePayer(payerID string) error {
	if o.payerID != payerID {
		return ErrPayerMismatch
	}
	return nil
}

// MarkCredited 付与済みにする
func (o *Order) MarkCredited(amount int64, transactionID string, at time.Time) error {
	if o.credited {
		return ErrInvalidOrder
	}
	o.credited = true
	o.creditedAmount = amount
	o.transactionID = &transactionID
	o.creditedAt = &at
	return nil
}
