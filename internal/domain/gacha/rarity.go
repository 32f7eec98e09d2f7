package gacha

import "fmt"

// Rarity レアリティ
type Rarity string

const (
	RarityN   Rarity = "N"
	RarityR   Rarity = "R"
	RaritySR  Rarity = "SR"
	RaritySSR Rarity = "SSR"
	RarityUR  Rarity = "UR"
)

var rarityRank = map[Rarity]int{
	RarityN:   1,
	RarityR:   2,
	RaritySR:  3,
	RaritySSR: 4,
	RarityUR:  5,
}

// NewRarity 文字列からRarityを作成
func NewRarity(s string) (Rarity, error) {
	r := Rarity(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidRarity, s)
	}
	return r, nil
}

// Valid 有効なレアリティかどうか
func (r Rarity) Valid() bool {
	_, ok := rarityRank[r]
	return ok
}

// Rank 序列を返す（無効な値は0）
func (r Rarity) Rank() int {
	return rarityRank[r]
}

// AtLeast min以上のレアリティかどうか
func (r Rarity) AtLeast(min Rarity) bool {
	return r.Rank() >= min.Rank()
}

// String 文字列表現を返す
func (r Rarity) String() string {
	return string(r)
}
