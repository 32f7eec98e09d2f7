package gacha

// Prize 景品定義。1つの定義が複数のプールに登場できる
type Prize struct {
	PrizeID string
	Name    string
	Rarity  Rarity
	// Unique trueの場合、同じ景品は所持品に1つしか追加されない
	Unique bool
	Payout map[string]interface{}
}

// PoolEntry プール内の景品エントリ
type PoolEntry struct {
	Prize  Prize
	Weight float64
	Active bool
}

// eligible 抽選対象かどうか（無効・重みゼロは除外）
func (e PoolEntry) eligible() bool {
	return e.Active && e.Weight > 0
}
