package gacha

import (
	"context"
)

// PoolRepository プールリポジトリインターフェース
type PoolRepository interface {
	// FindByID プールをエントリと景品定義込みで取得
	FindByID(ctx context.Context, poolID string) (*Pool, error)
}

// DrawBatchRepository 抽選バッチリポジトリインターフェース
type DrawBatchRepository interface {
	// Save バッチと各抽選記録を保存
	Save(ctx context.Context, batch *DrawBatch) error

	// FindByUserID ユーザーの抽選履歴を取得（新しい順）
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*DrawBatch, error)
}

// InventoryRepository 所持品リポジトリインターフェース
type InventoryRepository interface {
	// Add 所持品を追加。ユニーク景品を既に所持している場合は追加せずfalseを返す
	Add(ctx context.Context, entry *InventoryEntry) (bool, error)

	// FindByUserID ユーザーの所持品を取得（新しい順）
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*InventoryEntry, error)
}

// PityRepository 天井カウンターリポジトリインターフェース
type PityRepository interface {
	// FindForUpdate 行ロック付きで取得（存在しない場合はゼロで作成）
	FindForUpdate(ctx context.Context, userID, poolID string) (*PityCounter, error)

	// Save カウンターを保存（楽観的ロック対応）
	Save(ctx context.Context, counter *PityCounter) error
}

// PullLocker 同一ユーザーの抽選を直列化するロック
type PullLocker interface {
	// Acquire ロックを取得。既に保持されている場合はErrPullInProgressを返す
	Acquire(ctx context.Context, userID string) (release func(context.Context) error, err error)
}
