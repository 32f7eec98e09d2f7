package currency

import (
	"fmt"
)

// CurrencyType 通貨タイプを表す値オブジェクト
type CurrencyType string

const (
	CurrencyTypeDiamonds CurrencyType = "diamonds" // ダイヤ
	CurrencyTypeTickets  CurrencyType = "tickets"  // チケット
	CurrencyTypePoints   CurrencyType = "points"   // ポイント
)

// AllCurrencyTypes 全通貨タイプ（表示・監査の順序）
var AllCurrencyTypes = []CurrencyType{
	CurrencyTypeDiamonds,
	CurrencyTypeTickets,
	CurrencyTypePoints,
}

// NewCurrencyType 新しいCurrencyTypeを作成
func NewCurrencyType(s string) (CurrencyType, error) {
	switch CurrencyType(s) {
	case CurrencyTypeDiamonds, CurrencyTypeTickets, CurrencyTypePoints:
		return CurrencyType(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidCurrency, s)
	}
}

// String 文字列表現を返す
func (ct CurrencyType) String() string {
	return string(ct)
}

// Valid 有効な通貨タイプかどうかを返す
func (ct CurrencyType) Valid() bool {
	switch ct {
	case CurrencyTypeDiamonds, CurrencyTypeTickets, CurrencyTypePoints:
		return true
	default:
		return false
	}
}
