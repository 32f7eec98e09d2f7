package payment

import (
	"errors"
	"fmt"

	"fan-ledger/internal/domain/currency"
)

var (
	// ErrOrderNotFound 注文が見つからないエラー
	ErrOrderNotFound = errors.New("payment order not found")
	// ErrInvalidOrder 無効な注文エラー
	ErrInvalidOrder = errors.New("invalid payment order")
	// ErrPayerMismatch 注文の支払者と通知の支払者が異なる
	ErrPayerMismatch = errors.New("payer mismatch")
	// ErrInvalidGrossAmount 無効な決済金額（currency.ErrInvalidAmountとしても判定できる）
	ErrInvalidGrossAmount = fmt.Errorf("invalid gross amount: %w", currency.ErrInvalidAmount)
)
