package gacha

// GuaranteePolicy 10連ごとの最低レアリティ保証
// MinRarityが空の場合は無効
type GuaranteePolicy struct {
	MinRarity Rarity
	// Slot 保証時に差し替える枠（0始まり、既定は最後の枠）
	Slot int
}

// Enabled 有効かどうか
func (p GuaranteePolicy) Enabled() bool {
	return p.MinRarity.Valid()
}

// slot 差し替える枠を範囲内に丸めて返す
func (p GuaranteePolicy) slot(n int) int {
	if p.Slot < 0 || p.Slot >= n {
		return n - 1
	}
	return p.Slot
}

// PityPolicy ユーザーごとの天井（連続で高レアが出なかった回数による確定）
// Thresholdが0以下の場合は無効
type PityPolicy struct {
	Threshold int
	Rarity    Rarity
}

// Enabled 有効かどうか
func (p PityPolicy) Enabled() bool {
	return p.Threshold > 0 && p.Rarity.Valid()
}
