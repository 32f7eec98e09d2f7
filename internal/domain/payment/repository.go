package payment

import (
	"context"
)

// OrderRepository 決済注文リポジトリインターフェース
type OrderRepository interface {
	// EnsureExists 注文行が無ければ未付与で作成（既存なら何もしない）
	EnsureExists(ctx context.Context, order *Order) error

	// FindByOrderIDForUpdate 行ロック付きで注文を取得
	FindByOrderIDForUpdate(ctx context.Context, orderID string) (*Order, error)

	// FindByOrderID 注文を取得
	FindByOrderID(ctx context.Context, orderID string) (*Order, error)

	// MarkCredited 付与済みマーカーを保存
	MarkCredited(ctx context.Context, order *Order) error
}
