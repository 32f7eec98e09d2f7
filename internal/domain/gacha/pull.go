package gacha

import (
	"fmt"

	"fan-ledger/internal/domain/currency"
)

// PullType 抽選タイプ
type PullType string

const (
	PullTypeSingle PullType = "single" // 単発
	PullTypeTen    PullType = "ten"    // 10連
)

// NewPullType 文字列からPullTypeを作成
func NewPullType(s string) (PullType, error) {
	switch PullType(s) {
	case PullTypeSingle, PullTypeTen:
		return PullType(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPullType, s)
	}
}

// Size 1回の操作での抽選数
func (p PullType) Size() int {
	if p == PullTypeTen {
		return TenPullSize
	}
	return 1
}

// String 文字列表現を返す
func (p PullType) String() string {
	return string(p)
}

// TenPullSize 10連の抽選数
const TenPullSize = 10

// PaymentMethod 支払い方法（消費する通貨）
type PaymentMethod string

// Currency 対応する通貨タイプ
func (m PaymentMethod) Currency() currency.CurrencyType {
	return currency.CurrencyType(m)
}

// String 文字列表現を返す
func (m PaymentMethod) String() string {
	return string(m)
}

// CostTable 支払い方法と抽選タイプごとの固定コスト
type CostTable map[PaymentMethod]map[PullType]int64

// DefaultCostTable デフォルトのコスト表
func DefaultCostTable() CostTable {
	return CostTable{
		PaymentMethod(currency.CurrencyTypeDiamonds): {
			PullTypeSingle: 300,
			PullTypeTen:    3000,
		},
		PaymentMethod(currency.CurrencyTypeTickets): {
			PullTypeSingle: 1,
			PullTypeTen:    10,
		},
	}
}

// Resolve コストを解決する
func (t CostTable) Resolve(method PaymentMethod, pullType PullType) (currency.CurrencyType, int64, error) {
	costs, ok := t[method]
	if !ok || !method.Currency().Valid() {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, method)
	}
	cost, ok := costs[pullType]
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidPullType, pullType)
	}
	if cost <= 0 {
		return "", 0, fmt.Errorf("%w: %s has no cost for %s", ErrInvalidPaymentMethod, method, pullType)
	}
	return method.Currency(), cost, nil
}
