package currency

import (
	"errors"
	"regexp"
)

var (
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrBalanceOutOfRange 残高が範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
)

const (
	// MaxAmount 最大金額 (10兆)
	MaxAmount = 10_000_000_000_000
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// ValidateUserID ユーザーIDの形式を検証
func ValidateUserID(userID string) error {
	if !userIDRegex.MatchString(userID) {
		return ErrInvalidUserID
	}
	return nil
}

// Balance ユーザー残高エンティティ（1ユーザー1行、3通貨の独立したカウンター）
type Balance struct {
	userID   string
	diamonds int64
	tickets  int64
	points   int64
	version  int // 楽観的ロック用
}

// NewBalance 新しいBalanceエンティティを作成
func NewBalance(userID string, diamonds, tickets, points int64, version int) (*Balance, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	for _, v := range []int64{diamonds, tickets, points} {
		if v < 0 || v > MaxAmount {
			return nil, ErrBalanceOutOfRange
		}
	}
	return &Balance{
		userID:   userID,
		diamonds: diamonds,
		tickets:  tickets,
		points:   points,
		version:  version,
	}, nil
}

// NewEmptyBalance 残高ゼロのBalanceを作成
func NewEmptyBalance(userID string) (*Balance, error) {
	return NewBalance(userID, 0, 0, 0, 0)
}

// UserID ユーザーIDを返す
func (b *Balance) UserID() string {
	return b.userID
}

// Diamonds ダイヤ残高を返す
func (b *Balance) Diamonds() int64 {
	return b.diamonds
}

// Tickets チケット残高を返す
func (b *Balance) Tickets() int64 {
	return b.tickets
}

// Points ポイント残高を返す
func (b *Balance) Points() int64 {
	return b.points
}

// Version バージョンを返す（楽観的ロック用）
func (b *Balance) Version() int {
	return b.version
}

// Of 指定通貨の残高を返す
func (b *Balance) Of(ct CurrencyType) int64 {
	switch ct {
	case CurrencyTypeDiamonds:
		return b.diamonds
	case CurrencyTypeTickets:
		return b.tickets
	case CurrencyTypePoints:
		return b.points
	default:
		return 0
	}
}

// Snapshot 全通貨の残高をmapで返す
func (b *Balance) Snapshot() map[CurrencyType]int64 {
	return map[CurrencyType]int64{
		CurrencyTypeDiamonds: b.diamonds,
		CurrencyTypeTickets:  b.tickets,
		CurrencyTypePoints:   b.points,
	}
}

// Credit 通貨を加算する
func (b *Balance) Credit(ct CurrencyType, amount int64) error {
	if !ct.Valid() {
		return ErrInvalidCurrency
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxAmount {
		return ErrAmountTooLarge
	}
	current := b.Of(ct)
	// オーバーフローチェック
	if current > MaxAmount-amount {
		return ErrBalanceOutOfRange
	}
	b.set(ct, current+amount)
	return nil
}

// Debit 通貨を減算する（マイナス残高は許可しない）
func (b *Balance) Debit(ct CurrencyType, amount int64) error {
	if !ct.Valid() {
		return ErrInvalidCurrency
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxAmount {
		return ErrAmountTooLarge
	}
	current := b.Of(ct)
	if current < amount {
		return &InsufficientFundsError{
			Currency:  ct,
			Required:  amount,
			Available: current,
		}
	}
	b.set(ct, current-amount)
	return nil
}

// IncrementVersion バージョンをインクリメント（保存成功後に呼ぶ）
func (b *Balance) IncrementVersion() {
	b.version++
}

func (b *Balance) set(ct CurrencyType, v int64) {
	switch ct {
	case CurrencyTypeDiamonds:
		b.diamonds = v
	case CurrencyTypeTickets:
		b.tickets = v
	case CurrencyTypePoints:
		b.points = v
	}
}

// MustNewBalance テスト用ヘルパー: NewBalanceを呼び出し、エラーが発生した場合はpanicする
func MustNewBalance(userID string, diamonds, tickets, points int64, version int) *Balance {
	b, err := NewBalance(userID, diamonds, tickets, points, version)
	if err != nil {
		panic(err)
	}
	return b
}
