package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// GachaRules ガチャのコスト表・10連保証・天井設定
type GachaRules struct {
	// Costs 支払い方法ごとのコスト（例: diamonds: {single: 300, ten: 3000}）
	Costs map[string]map[string]int64 `mapstructure:"costs"`
	// Guarantees 支払い方法ごとの10連保証
	Guarantees map[string]GuaranteeRule `mapstructure:"guarantees"`
	Pity       PityRule                 `mapstructure:"pity"`
}

// GuaranteeRule 10連保証（MinRarity以上が1枚も無ければSlotを差し替える）
type GuaranteeRule struct {
	MinRarity string `mapstructure:"min_rarity"`
	Slot      int    `mapstructure:"slot"`
}

// PityRule 天井（Threshold回連続で外れたら確定）。Threshold<=0で無効
type PityRule struct {
	Threshold int    `mapstructure:"threshold"`
	Rarity    string `mapstructure:"rarity"`
}

// DefaultGachaRules デフォルトのガチャルール
func DefaultGachaRules() *GachaRules {
	return &GachaRules{
		Costs: map[string]map[string]int64{
			"diamonds": {"single": 300, "ten": 3000},
			"tickets":  {"single": 1, "ten": 10},
		},
		Guarantees: map[string]GuaranteeRule{
			"diamonds": {MinRarity: "SR", Slot: 9},
			"tickets":  {MinRarity: "SR", Slot: 9},
		},
		Pity: PityRule{Threshold: 90, Rarity: "SSR"},
	}
}

// LoadGachaRules YAMLファイルからガチャルールを読み込む。pathが空ならデフォルト
// ファイルに無いキーはデフォルト値のまま
func LoadGachaRules(path string) (*GachaRules, error) {
	rules := DefaultGachaRules()
	if path == "" {
		return rules, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read gacha rules file: %w", err)
	}

	if v.IsSet("costs") {
		rules.Costs = nil
		if err := v.UnmarshalKey("costs", &rules.Costs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key costs: %w", err)
		}
	}
	if v.IsSet("guarantees") {
		rules.Guarantees = nil
		if err := v.UnmarshalKey("guarantees", &rules.Guarantees); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key guarantees: %w", err)
		}
	}
	if v.IsSet("pity") {
		if err := v.UnmarshalKey("pity", &rules.Pity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key pity: %w", err)
		}
	}

	if err := rules.validate(); err != nil {
		return nil, fmt.Errorf("invalid gacha rules: %w", err)
	}
	return rules, nil
}

// validate ルールの検証
func (r *GachaRules) validate() error {
	if len(r.Costs) == 0 {
		return fmt.Errorf("costs must not be empty")
	}
	for method, costs := range r.Costs {
		for pullType, cost := range costs {
			if cost <= 0 {
				return fmt.Errorf("cost for %s/%s must be positive", method, pullType)
			}
		}
	}
	return nil
}
