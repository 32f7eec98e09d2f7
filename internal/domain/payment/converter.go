package payment

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fan-ledger/internal/domain/currency"
)

// MaxGrossAmount payment_orders.gross_amount DECIMAL(18,2) に格納できる最大値
var MaxGrossAmount = decimal.RequireFromString("9999999999999999.99")

// BonusTier 決済金額がMinGross以上のときに上乗せする割合（Percent%）
type BonusTier struct {
	MinGross decimal.Decimal
	Percent  int64
}

// Converter 決済金額から付与ダイヤ数への変換
type Converter struct {
	// PerUnit 決済金額1単位あたりのダイヤ数
	PerUnit decimal.Decimal
	Tiers   []BonusTier
}

// NewConverter 新しいConverterを作成
func NewConverter(perUnit decimal.Decimal, tiers []BonusTier) *Converter {
	sorted := make([]BonusTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinGross.LessThan(sorted[j].MinGross)
	})
	return &Converter{PerUnit: perUnit, Tiers: sorted}
}

// ParseGrossAmount 文字列の決済金額を解析（小数点以下2桁まで）
func ParseGrossAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidGrossAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidGrossAmount, s)
	}
	if !d.Equal(d.Truncate(2)) {
		return decimal.Zero, fmt.Errorf("%w: too many decimal places: %s", ErrInvalidGrossAmount, s)
	}
	if d.GreaterThan(MaxGrossAmount) {
		return decimal.Zero, fmt.Errorf("%w: exceeds %s: %s", ErrInvalidGrossAmount, MaxGrossAmount, s)
	}
	return d, nil
}

// Convert 付与するダイヤ数を計算する（端数切り捨て）。副作用なし
//
// 結果がcurrency.MaxAmountを超える場合はErrInvalidGrossAmountを返す。
func (c *Converter) Convert(gross decimal.Decimal) (int64, error) {
	if !gross.IsPositive() || !c.PerUnit.IsPositive() {
		return 0, nil
	}
	base := gross.Mul(c.PerUnit).Floor()

	var percent int64
	for _, tier := range c.Tiers {
		if gross.GreaterThanOrEqual(tier.MinGross) {
			percent = tier.Percent
		}
	}
	bonus := base.Mul(decimal.NewFromInt(percent)).Div(decimal.NewFromInt(100)).Floor()

	total := base.Add(bonus)
	if total.GreaterThan(decimal.NewFromInt(currency.MaxAmount)) {
		return 0, fmt.Errorf("%w: %s converts to %s, exceeds %d", ErrInvalidGrossAmount, gross, total, int64(currency.MaxAmount))
	}
	return total.IntPart(), nil
}
