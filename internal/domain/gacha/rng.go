package gacha

// RandomSource 抽選に使う乱数源。Float64は[0, 1)の一様乱数を返す
type RandomSource interface {
	Float64() float64
}
