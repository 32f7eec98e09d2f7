package clock

import "time"

// Clock 現在時刻の取得元
type Clock interface {
	Now() time.Time
}

// RealClock システム時刻（UTC）
type RealClock struct{}

// Now 現在時刻を返す
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock 固定時刻（テスト用）
type FixedClock struct {
	T time.Time
}

// Now 固定時刻を返す
func (c FixedClock) Now() time.Time {
	return c.T
}
