package handler

import gachaapp "fan-ledger/internal/application/gacha"

// PullRequest 抽選リクエスト
// @Description 抽選リクエスト
type PullRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,max=16" example:"diamonds" enums:"diamonds,tickets,points"`
	PullType      string `json:"pull_type" validate:"required,max=16" example:"ten" enums:"single,ten"`
}

// PullResponse 抽選レスポンス
// @Description 抽選レスポンス。prizesは排出順
type PullResponse struct {
	BatchID       string                 `json:"batch_id" example:"batch_123"`
	TransactionID string                 `json:"transaction_id" example:"txn_123"`
	Currency      string                 `json:"currency" example:"diamonds"`
	Spent         string                 `json:"spent" example:"3000"`
	NewBalance    string                 `json:"new_balance" example:"500"`
	DrawsSinceHit int                    `json:"draws_since_hit" example:"4"`
	Prizes        []gachaapp.PrizeResult `json:"prizes"`
	CreatedAt     string                 `json:"created_at" example:"2026-01-01T12:00:00Z"`
}
