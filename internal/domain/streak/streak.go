package streak

import (
	"errors"
	"time"
)

// ErrStreakNotFound 連続日数レコードが見つからない
var ErrStreakNotFound = errors.New("streak not found")

const (
	// MinStreak 連続日数の下限
	MinStreak = 1
	// MaxStreak 連続日数の上限
	MaxStreak = 7
)

// Streak ユーザーの連続日数カウンター
type Streak struct {
	userID          string
	count           int
	lastQualifiedOn *Date
	version         int
}

// NewStreak 新しいStreakを作成（lastQualifiedOnはnil可）
func NewStreak(userID string, count int, lastQualifiedOn *Date, version int) *Streak {
	if count < 0 {
		count = 0
	}
	if count > MaxStreak {
		count = MaxStreak
	}
	return &Streak{
		userID:          userID,
		count:           count,
		lastQualifiedOn: lastQualifiedOn,
		version:         version,
	}
}

// UserID ユーザーIDを返す
func (s *Streak) UserID() string {
	return s.userID
}

// Count 連続日数を返す
func (s *Streak) Count() int {
	return s.count
}

// LastQualifiedOn 最後に条件を満たした日を返す
func (s *Streak) LastQualifiedOn() *Date {
	return s.lastQualifiedOn
}

// Version バージョンを返す
func (s *Streak) Version() int {
	return s.version
}

// IncrementVersion バージョンをインクリメント（保存成功後に呼ぶ）
func (s *Streak) IncrementVersion() {
	s.version++
}

// Advance 暦日で比較して連続日数を進める
// 同じ日は何もしない、翌日は+1（上限7）、それ以外（初回や空白日あり）は1に戻す
func (s *Streak) Advance(today Date) bool {
	if s.lastQualifiedOn != nil {
		switch {
		case s.lastQualifiedOn.Equal(today):
			return false
		case s.lastQualifiedOn.AddDays(1).Equal(today):
			if s.count < MaxStreak {
				s.count++
			}
			if s.count < MinStreak {
				s.count = MinStreak
			}
			s.lastQualifiedOn = &today
			return true
		case today.Before(*s.lastQualifiedOn):
			// 時計が巻き戻った場合は変更しない
			return false
		}
	}

	s.count = MinStreak
	s.lastQualifiedOn = &today
	return true
}

// IsStale 最後の日から1日を超えて空いているか（リセット対象）
func (s *Streak) IsStale(today Date) bool {
	if s.lastQualifiedOn == nil {
		return false
	}
	return s.lastQualifiedOn.AddDays(1).Before(today)
}

// Date タイムゾーンに依存しない暦日
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf 指定タイムゾーンでの暦日を返す
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time UTCの0時として返す
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays 日数を加算
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

// Equal 同じ日かどうか
func (d Date) Equal(o Date) bool {
	return d == o
}

// Before oより前の日かどうか
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// String YYYY-MM-DD形式
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}
