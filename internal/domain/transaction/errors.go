package transaction

import "errors"

var (
	// ErrTransactionNotFound トランザクションが見つからないエラー
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidTransaction 無効なトランザクションエラー
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrDuplicateTransactionID 重複トランザクションIDエラー
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
	// ErrConcurrencyConflict 直列化の失敗（デッドロック、ロック待ちタイムアウト、バージョン不一致）
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
