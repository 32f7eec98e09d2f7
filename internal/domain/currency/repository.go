package currency

import (
	"context"
)

// BalanceRepository 残高リポジトリインターフェース
type BalanceRepository interface {
	// FindByUserID ユーザーIDで残高を取得（ロックなし）
	FindByUserID(ctx context.Context, userID string) (*Balance, error)

	// FindByUserIDForUpdate ユーザーIDで残高を行ロック付きで取得（存在しない場合はゼロ残高で作成）
	FindByUserIDForUpdate(ctx context.Context, userID string) (*Balance, error)

	// Save 残高を保存（楽観的ロック対応）
	Save(ctx context.Context, balance *Balance) error
}
