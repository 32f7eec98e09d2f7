package transaction

import (
	"context"
	"errors"
	"math"
	"time"
)

// DefaultMaxRetries 競合時の最大試行回数
const DefaultMaxRetries = 3

// RetryBaseBackoff 指数バックオフの初期待機時間
var RetryBaseBackoff = 10 * time.Millisecond

// RunWithRetry ユニットオブワークを実行し、ErrConcurrencyConflictの場合のみ指数バックオフで再試行する
// onRetryはリトライ直前に呼ばれる（nil可）
func RunWithRetry(
	ctx context.Context,
	tm TransactionManager,
	maxRetries int,
	fn func(ctx context.Context) error,
	onRetry func(attempt int, err error),
) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, err)
			}
			// 指数バックオフ
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * RetryBaseBackoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = tm.WithTransaction(ctx, fn)
		if err == nil || !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}

	return err
}
