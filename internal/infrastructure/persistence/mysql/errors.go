package mysql

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"

	"fan-ledger/internal/domain/transaction"
)

// MySQLのエラー番号
const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// mapError デッドロックとロック待ちタイムアウトをErrConcurrencyConflictに変換
func mapError(err error) error {
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errDeadlock, errLockWaitTimeout:
			return fmt.Errorf("%w: %v", transaction.ErrConcurrencyConflict, err)
		}
	}
	return err
}

// isDuplicateEntry 一意制約違反かどうか
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}

// insertIfAbsent INSERTを実行し、一意制約違反のみ「既存」としてfalseを返す。それ以外のエラーはそのまま返す
func insertIfAbsent(ctx context.Context, conn executor, query string, args ...interface{}) (bool, error) {
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateEntry(err) {
			return false, nil
		}
		return false, mapError(err)
	}
	return true, nil
}
