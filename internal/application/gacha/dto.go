package gacha

import "time"

// PullRequest 抽選リクエスト
type PullRequest struct {
	UserID        string
	PoolID        string
	PaymentMethod string
	PullType      string
}

// PrizeResult 1回分の抽選結果
type PrizeResult struct {
	Index      int                    `json:"index"`
	PrizeID    string                 `json:"prize_id"`
	Name       string                 `json:"name"`
	Rarity     string                 `json:"rarity"`
	Payout     map[string]interface{} `json:"payout,omitempty"`
	Duplicate  bool                   `json:"duplicate"`
	Guaranteed bool                   `json:"guaranteed"`
	Pity       bool                   `json:"pity"`
}

// PullResponse 抽選レスポンス
type PullResponse struct {
	BatchID       string
	TransactionID string
	Currency      string
	Spent         int64
	NewBalance    int64
	Prizes        []PrizeResult
	DrawsSinceHit int
	CreatedAt     time.Time
}
