package transaction

import (
	"fmt"
)

// TransactionStatus トランザクションステータス
// 同期的な残高変更のみを扱うため、記録されるのは常にcompleted
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed" // 完了
)

// NewTransactionStatus 新しいTransactionStatusを作成
func NewTransactionStatus(s string) (TransactionStatus, error) {
	if TransactionStatus(s) != TransactionStatusCompleted {
		return "", fmt.Errorf("invalid transaction status: %s", s)
	}
	return TransactionStatus(s), nil
}

// String 文字列表現を返す
func (ts TransactionStatus) String() string {
	return string(ts)
}
