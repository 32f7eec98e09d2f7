package memory

import (
	"context"

	"fan-ledger/internal/domain/streak"
)

// StreakRepository インメモリのStreakRepository
type StreakRepository struct {
	store *Store
}

// Streaks 連続日数リポジトリを返す
func (s *Store) Streaks() *StreakRepository {
	return &StreakRepository{store: s}
}

// FindForUpdate 行ロック付きで取得（存在しない場合はカウント0で作成）
func (r *StreakRepository) FindForUpdate(ctx context.Context, userID string) (*streak.Streak, error) {
	if err := r.store.lockRow(ctx, "streak:"+userID); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.streaks[userID]
	if !ok {
		r.store.streaks[userID] = row
		record(ctx, func() { delete(r.store.streaks, userID) })
	}
	return streak.NewStreak(userID, row.count, row.last, row.version), nil
}

// Save 保存（楽観的ロック対応）
func (r *StreakRepository) Save(ctx context.Context, s *streak.Streak) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("StreakRepository.Save"); err != nil {
		return err
	}

	prev, ok := r.store.streaks[s.UserID()]
	if !ok || prev.version != s.Version() {
		return conflict("streak")
	}

	var last *streak.Date
	if d := s.LastQualifiedOn(); d != nil {
		copied := *d
		last = &copied
	}
	r.store.streaks[s.UserID()] = streakRow{count: s.Count(), last: last, version: prev.version + 1}
	record(ctx, func() { r.store.streaks[s.UserID()] = prev })
	s.IncrementVersion()
	return nil
}

// ResetStale cutoffより前が最終日のカウンターを0に戻す
func (r *StreakRepository) ResetStale(ctx context.Context, cutoff streak.Date) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for userID, row := range r.store.streaks {
		if row.count > 0 && row.last != nil && row.last.Before(cutoff) {
			prev := row
			row.count = 0
			row.version++
			r.store.streaks[userID] = row
			uid := userID
			record(ctx, func() { r.store.streaks[uid] = prev })
			n++
		}
	}
	return n, nil
}
