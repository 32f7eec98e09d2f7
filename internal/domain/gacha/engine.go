package gacha

import "errors"

// Outcome 1回分の抽選結果
type Outcome struct {
	Index      int
	Entry      PoolEntry
	Guaranteed bool // 10連保証で差し替えられた
	Pity       bool // 天井で確定した
}

// Rarity 結果のレアリティ
func (o Outcome) Rarity() Rarity {
	return o.Entry.Prize.Rarity
}

// SelectOne 重み付き抽選で1件選ぶ
// [0, 合計重み)の一様乱数を引き、累積重みの帯に入ったエントリを返す
func SelectOne(entries []PoolEntry, rng RandomSource) (PoolEntry, error) {
	eligible := make([]PoolEntry, 0, len(entries))
	var total float64
	for _, e := range entries {
		if !e.eligible() {
			continue
		}
		eligible = append(eligible, e)
		total += e.Weight
	}
	if len(eligible) == 0 {
		return PoolEntry{}, ErrNoPrizesAvailable
	}

	r := rng.Float64() * total
	var cumulative float64
	for _, e := range eligible {
		cumulative += e.Weight
		if r < cumulative {
			return e, nil
		}
	}

	// 浮動小数点の丸め誤差は最後のエントリが吸収する
	return eligible[len(eligible)-1], nil
}

// selectAtLeast min以上のレアリティに限定して抽選する
func selectAtLeast(entries []PoolEntry, min Rarity, rng RandomSource) (PoolEntry, error) {
	tier := make([]PoolEntry, 0, len(entries))
	for _, e := range entries {
		if e.Prize.Rarity.AtLeast(min) {
			tier = append(tier, e)
		}
	}
	return SelectOne(tier, rng)
}

// Engine 抽選エンジン。状態を持たず並行に利用できる
type Engine struct {
	guarantees map[PaymentMethod]GuaranteePolicy
	pity       PityPolicy
}

// NewEngine 新しいEngineを作成
func NewEngine(guarantees map[PaymentMethod]GuaranteePolicy, pity PityPolicy) *Engine {
	if guarantees == nil {
		guarantees = map[PaymentMethod]GuaranteePolicy{}
	}
	return &Engine{
		guarantees: guarantees,
		pity:       pity,
	}
}

// GuaranteeFor 支払い方法に対応する保証ポリシーを返す
func (e *Engine) GuaranteeFor(method PaymentMethod) GuaranteePolicy {
	return e.guarantees[method]
}

// PityPolicy 天井ポリシーを返す
func (e *Engine) PityPolicy() PityPolicy {
	return e.pity
}

// SelectTen 10回独立に抽選し、保証ポリシーを適用する
// 10件に保証レアリティ以上が1つもない場合、保証枠をそのレアリティ以上に限定した再抽選で差し替える
func (e *Engine) SelectTen(pool *Pool, rng RandomSource, method PaymentMethod) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, TenPullSize)
	for i := 0; i < TenPullSize; i++ {
		entry, err := SelectOne(pool.Entries(), rng)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, Outcome{Index: i, Entry: entry})
	}

	policy := e.GuaranteeFor(method)
	if !policy.Enabled() {
		return outcomes, nil
	}
	for _, o := range outcomes {
		if o.Rarity().AtLeast(policy.MinRarity) {
			return outcomes, nil
		}
	}

	entry, err := selectAtLeast(pool.Entries(), policy.MinRarity, rng)
	if errors.Is(err, ErrNoPrizesAvailable) {
		// 保証対象のレアリティがプールに存在しない
		return outcomes, nil
	}
	if err != nil {
		return nil, err
	}
	slot := policy.slot(len(outcomes))
	outcomes[slot] = Outcome{Index: slot, Entry: entry, Guaranteed: true}
	return outcomes, nil
}

// ApplyPity 天井を適用し、更新後のカウンターを返す
// 順番に見ていき、次の1回で閾値に達する低レア結果を天井レアリティ以上の再抽選に差し替える
func (e *Engine) ApplyPity(pool *Pool, rng RandomSource, outcomes []Outcome, drawsSinceHit int) ([]Outcome, int, error) {
	counter := drawsSinceHit
	if !e.pity.Enabled() {
		return outcomes, counter, nil
	}

	for i, o := range outcomes {
		if o.Rarity().AtLeast(e.pity.Rarity) {
			counter = 0
			continue
		}
		if counter+1 < e.pity.Threshold {
			counter++
			continue
		}

		entry, err := selectAtLeast(pool.Entries(), e.pity.Rarity, rng)
		if errors.Is(err, ErrNoPrizesAvailable) {
			counter++
			continue
		}
		if err != nil {
			return nil, drawsSinceHit, err
		}
		outcomes[i] = Outcome{Index: o.Index, Entry: entry, Pity: true}
		counter = 0
	}

	return outcomes, counter, nil
}

// Draw 抽選タイプに応じて抽選し、天井を適用する
func (e *Engine) Draw(pool *Pool, rng RandomSource, pullType PullType, method PaymentMethod, drawsSinceHit int) ([]Outcome, int, error) {
	var outcomes []Outcome
	switch pullType {
	case PullTypeSingle:
		entry, err := SelectOne(pool.Entries(), rng)
		if err != nil {
			return nil, drawsSinceHit, err
		}
		outcomes = []Outcome{{Index: 0, Entry: entry}}
	case PullTypeTen:
		var err error
		outcomes, err = e.SelectTen(pool, rng, method)
		if err != nil {
			return nil, drawsSinceHit, err
		}
	default:
		return nil, drawsSinceHit, ErrInvalidPullType
	}

	return e.ApplyPity(pool, rng, outcomes, drawsSinceHit)
}
