package streak

// DefaultDay7Bonus 7日目の固定ボーナス
const DefaultDay7Bonus = 100

// Policy 連続日数に応じた報酬倍率とボーナス
type Policy struct {
	// Day7Multiplier 7日目の倍率
	Day7Multiplier int64
	// Day7Bonus 7日目に上乗せする固定ボーナス
	Day7Bonus int64
}

// DefaultPolicy 既定のポリシー（7日目は2倍+100）
func DefaultPolicy() Policy {
	return Policy{
		Day7Multiplier: 2,
		Day7Bonus:      DefaultDay7Bonus,
	}
}

// BonusPlan 付与額の内訳
type BonusPlan struct {
	Streak     int
	Multiplied int64
	Bonus      int64
}

// Total 合計付与額
func (p BonusPlan) Total() int64 {
	return p.Multiplied + p.Bonus
}

// Clamp 連続日数を1..7に丸める
func Clamp(count int) int {
	if count < MinStreak {
		return MinStreak
	}
	if count > MaxStreak {
		return MaxStreak
	}
	return count
}

// Plan 付与額を決める。1〜6日目は等倍、7日目は倍率とボーナスを適用
func (p Policy) Plan(streakCount int, baseAmount int64) BonusPlan {
	count := Clamp(streakCount)
	if count < MaxStreak {
		return BonusPlan{Streak: count, Multiplied: baseAmount}
	}

	multiplier := p.Day7Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	return BonusPlan{
		Streak:     count,
		Multiplied: baseAmount * multiplier,
		Bonus:      p.Day7Bonus,
	}
}
