package currency

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds 残高不足エラー
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount 無効な金額エラー
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidCurrency 無効な通貨タイプエラー
	ErrInvalidCurrency = errors.New("invalid currency")
	// ErrBalanceNotFound 残高レコードが見つからないエラー
	ErrBalanceNotFound = errors.New("balance not found")
)

// InsufficientFundsError 残高不足の詳細
type InsufficientFundsError struct {
	Currency  CurrencyType
	Required  int64
	Available int64
}

// Error エラーメッセージを返す
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s required=%d available=%d", e.Currency, e.Required, e.Available)
}

// Is ErrInsufficientFundsとして判定できるようにする
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
