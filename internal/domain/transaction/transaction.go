package transaction

import (
	"errors"
	"regexp"
	"time"

	"fan-ledger/internal/domain/currency"
)

var (
	// ErrInvalidTransactionID トランザクションIDが無効
	ErrInvalidTransactionID = errors.New("invalid transaction id")
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidAmount 金額が無効（ゼロは記録しない）
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
	// ErrBalanceOutOfRange 残高が範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// Transaction 監査ログ（通貨トランザクション）エンティティ
// 作成後は変更されない。amountは符号付き（正=付与、負=消費）
type Transaction struct {
	transactionID string
	userID        string
	currencyType  currency.CurrencyType
	amount        int64
	kind          TransactionKind
	description   string
	reference     *string // 外部参照（注文IDやガチャのバッチIDなど）
	status        TransactionStatus
	balanceAfter  int64
	createdAt     time.Time
}

// NewTransaction 新しいTransactionエンティティを作成
func NewTransaction(
	transactionID string,
	userID string,
	currencyType currency.CurrencyType,
	amount int64,
	kind TransactionKind,
	description string,
	reference *string,
	balanceAfter int64,
	createdAt time.Time,
) (*Transaction, error) {
	return Reconstruct(
		transactionID,
		userID,
		currencyType,
		amount,
		kind,
		description,
		reference,
		TransactionStatusCompleted,
		balanceAfter,
		createdAt,
	)
}

// Reconstruct 永続化済みのTransactionを復元
func Reconstruct(
	transactionID string,
	userID string,
	currencyType currency.CurrencyType,
	amount int64,
	kind TransactionKind,
	description string,
	reference *string,
	status TransactionStatus,
	balanceAfter int64,
	createdAt time.Time,
) (*Transaction, error) {
	if !idRegex.MatchString(transactionID) {
		return nil, ErrInvalidTransactionID
	}
	if currency.ValidateUserID(userID) != nil {
		return nil, ErrInvalidUserID
	}
	if !currencyType.Valid() {
		return nil, currency.ErrInvalidCurrency
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > currency.MaxAmount || amount < -currency.MaxAmount {
		return nil, ErrAmountTooLarge
	}
	if balanceAfter < 0 || balanceAfter > currency.MaxAmount {
		return nil, ErrBalanceOutOfRange
	}
	if !kind.Valid() {
		return nil, ErrInvalidTransaction
	}

	return &Transaction{
		transactionID: transactionID,
		userID:        userID,
		currencyType:  currencyType,
		amount:        amount,
		kind:          kind,
		description:   description,
		reference:     reference,
		status:        status,
		balanceAfter:  balanceAfter,
		createdAt:     createdAt,
	}, nil
}

// TransactionID トランザクションIDを返す
func (t *Transaction) TransactionID() string {
	return t.transactionID
}

// UserID ユーザーIDを返す
func (t *Transaction) UserID() string {
	return t.userID
}

// CurrencyType 通貨タイプを返す
func (t *Transaction) CurrencyType() currency.CurrencyType {
	return t.currencyType
}

// Amount 符号付き金額を返す
func (t *Transaction) Amount() int64 {
	return t.amount
}

// IsCredit 付与かどうかを返す
func (t *Transaction) IsCredit() bool {
	return t.amount > 0
}

// Kind 分類タグを返す
func (t *Transaction) Kind() TransactionKind {
	return t.kind
}

// Description 説明を返す
func (t *Transaction) Description() string {
	return t.description
}

// Reference 外部参照を返す
func (t *Transaction) Reference() *string {
	return t.reference
}

// Status ステータスを返す
func (t *Transaction) Status() TransactionStatus {
	return t.status
}

// BalanceAfter 処理後の残高を返す
func (t *Transaction) BalanceAfter() int64 {
	return t.balanceAfter
}

// CreatedAt 作成日時を返す
func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}

// MustNewTransaction テスト用ヘルパー: NewTransactionを呼び出し、エラーが発生した場合はpanicする
func MustNewTransaction(
	transactionID string,
	userID string,
	currencyType currency.CurrencyType,
	amount int64,
	kind TransactionKind,
	description string,
	reference *string,
	balanceAfter int64,
	createdAt time.Time,
) *Transaction {
	tx, err := NewTransaction(transactionID, userID, currencyType, amount, kind, description, reference, balanceAfter, createdAt)
	if err != nil {
		panic(err)
	}
	return tx
}
