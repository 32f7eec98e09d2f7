package gacha

import (
	"time"

	"fan-ledger/internal/domain/currency"
)

// DrawRecord バッチ内の1回分の記録
type DrawRecord struct {
	Index      int
	PrizeID    string
	Rarity     Rarity
	Duplicate  bool // ユニーク景品の重複（所持品は追加しない）
	Guaranteed bool
	Pity       bool
}

// DrawBatch 1回のユーザー操作（単発または10連）の記録。作成後は変更されない
type DrawBatch struct {
	BatchID       string
	UserID        string
	PoolID        string
	PullType      PullType
	Currency      currency.CurrencyType
	AmountSpent   int64
	TransactionID string
	Draws         []DrawRecord
	CreatedAt     time.Time
}

// InventoryEntry 景品の獲得記録
type InventoryEntry struct {
	UserID     string
	PrizeID    string
	BatchID    string
	Unique     bool
	AcquiredAt time.Time
}

// PityCounter ユーザー×プールの天井カウンター
type PityCounter struct {
	UserID        string
	PoolID        string
	DrawsSinceHit int
	Version       int
}
