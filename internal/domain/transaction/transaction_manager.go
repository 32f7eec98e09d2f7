package transaction

import (
	"context"
)

// TransactionManager ユニットオブワーク（トランザクション管理）インターフェース
// fnに渡されるctxはトランザクションを保持しており、リポジトリはそれを使って同じトランザクション内で実行する
type TransactionManager interface {
	// WithTransaction トランザクション内で関数を実行
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
