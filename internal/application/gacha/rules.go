package gacha

import (
	"fmt"

	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/infrastructure/config"
)

// BuildRules 設定のガチャルールからコスト表と抽選エンジンを組み立てる
func BuildRules(rules config.GachaRules) (gacha.CostTable, *gacha.Engine, error) {
	costs := gacha.CostTable{}
	for method, byType := range rules.Costs {
		m := gacha.PaymentMethod(method)
		if !m.Currency().Valid() {
			return nil, nil, fmt.Errorf("%w: %s", gacha.ErrInvalidPaymentMethod, method)
		}
		costs[m] = map[gacha.PullType]int64{}
		for pt, cost := range byType {
			pullType, err := gacha.NewPullType(pt)
			if err != nil {
				return nil, nil, err
			}
			costs[m][pullType] = cost
		}
	}

	guarantees := map[gacha.PaymentMethod]gacha.GuaranteePolicy{}
	for method, g := range rules.Guarantees {
		if g.MinRarity == "" {
			continue
		}
		r, err := gacha.NewRarity(g.MinRarity)
		if err != nil {
			return nil, nil, err
		}
		guarantees[gacha.PaymentMethod(method)] = gacha.GuaranteePolicy{MinRarity: r, Slot: g.Slot}
	}

	var pity gacha.PityPolicy
	if rules.Pity.Threshold > 0 {
		r, err := gacha.NewRarity(rules.Pity.Rarity)
		if err != nil {
			return nil, nil, err
		}
		pity = gacha.PityPolicy{Threshold: rules.Pity.Threshold, Rarity: r}
	}

	return costs, gacha.NewEngine(guarantees, pity), nil
}
