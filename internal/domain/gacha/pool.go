package gacha

import (
	"time"
)

// Pool ガチャのプール（バナー）
type Pool struct {
	poolID  string
	name    string
	active  bool
	startAt time.Time
	endAt   time.Time
	entries []PoolEntry
}

// NewPool 新しいPoolを作成
func NewPool(poolID, name string, active bool, startAt, endAt time.Time, entries []PoolEntry) *Pool {
	return &Pool{
		poolID:  poolID,
		name:    name,
		active:  active,
		startAt: startAt,
		endAt:   endAt,
		entries: entries,
	}
}

// PoolID プールIDを返す
func (p *Pool) PoolID() string {
	return p.poolID
}

// Name プール名を返す
func (p *Pool) Name() string {
	return p.name
}

// IsActive 有効フラグを返す
func (p *Pool) IsActive() bool {
	return p.active
}

// StartAt 開始日時を返す
func (p *Pool) StartAt() time.Time {
	return p.startAt
}

// EndAt 終了日時を返す
func (p *Pool) EndAt() time.Time {
	return p.endAt
}

// Entries エントリ一覧を返す
func (p *Pool) Entries() []PoolEntry {
	return p.entries
}

// IsAvailable 有効かつ期間内（startAt <= now < endAt）かどうか
func (p *Pool) IsAvailable(now time.Time) bool {
	if !p.active {
		return false
	}
	if now.Before(p.startAt) {
		return false
	}
	if !now.Before(p.endAt) {
		return false
	}
	return true
}

// EnsureAvailable 利用不可ならErrPoolUnavailableを返す
func (p *Pool) EnsureAvailable(now time.Time) error {
	if !p.IsAvailable(now) {
		return ErrPoolUnavailable
	}
	return nil
}
