package streak

import (
	"context"
)

// StreakRepository 連続日数リポジトリインターフェース
type StreakRepository interface {
	// FindForUpdate 行ロック付きで取得（存在しない場合はカウント0で作成）
	FindForUpdate(ctx context.Context, userID string) (*Streak, error)

	// Save 保存（楽観的ロック対応）
	Save(ctx context.Context, s *Streak) error

	// ResetStale cutoffより前が最終日のカウンターを0に戻し、件数を返す
	ResetStale(ctx context.Context, cutoff Date) (int64, error)
}
