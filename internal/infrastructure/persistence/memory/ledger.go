package memory

import (
	"context"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/transaction"
)

// BalanceRepository インメモリのBalanceRepository
type BalanceRepository struct {
	store *Store
}

// Balances 残高リポジトリを返す
func (s *Store) Balances() *BalanceRepository {
	return &BalanceRepository{store: s}
}

func (r *BalanceRepository) toEntity(userID string, row balanceRow) (*currency.Balance, error) {
	return currency.NewBalance(userID,
		row.values[currency.CurrencyTypeDiamonds],
		row.values[currency.CurrencyTypeTickets],
		row.values[currency.CurrencyTypePoints],
		row.version,
	)
}

// FindByUserID ユーザーIDで残高を取得（ロックなし）
func (r *BalanceRepository) FindByUserID(ctx context.Context, userID string) (*currency.Balance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("BalanceRepository.FindByUserID"); err != nil {
		return nil, err
	}
	row, ok := r.store.balances[userID]
	if !ok {
		return nil, currency.ErrBalanceNotFound
	}
	return r.toEntity(userID, row)
}

// FindByUserIDForUpdate 行ロック付きで取得（存在しない場合はゼロ残高で作成）
func (r *BalanceRepository) FindByUserIDForUpdate(ctx context.Context, userID string) (*currency.Balance, error) {
	if err := r.store.lockRow(ctx, "balance:"+userID); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("BalanceRepository.FindByUserIDForUpdate"); err != nil {
		return nil, err
	}
	if _, ok := r.store.balances[userID]; !ok {
		r.store.balances[userID] = balanceRow{values: map[currency.CurrencyType]int64{}}
		record(ctx, func() { delete(r.store.balances, userID) })
	}
	return r.toEntity(userID, r.store.balanceRowLocked(userID))
}

// Save 残高を保存（楽観的ロック対応）
func (r *BalanceRepository) Save(ctx context.Context, balance *currency.Balance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("BalanceRepository.Save"); err != nil {
		return err
	}

	prev, ok := r.store.balances[balance.UserID()]
	if !ok || prev.version != balance.Version() {
		return conflict("balance")
	}

	next := balanceRow{values: balance.Snapshot(), version: prev.version + 1}
	r.store.balances[balance.UserID()] = next
	record(ctx, func() { r.store.balances[balance.UserID()] = prev })
	balance.IncrementVersion()
	return nil
}

// TransactionRepository インメモリのTransactionRepository
type TransactionRepository struct {
	store *Store
}

// Transactions 監査ログリポジトリを返す
func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

// Save トランザクションを保存（追記のみ）
func (r *TransactionRepository) Save(ctx context.Context, t *transaction.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("TransactionRepository.Save"); err != nil {
		return err
	}
	if _, ok := r.store.txIndex[t.TransactionID()]; ok {
		return transaction.ErrDuplicateTransactionID
	}

	r.store.transactions = append(r.store.transactions, t)
	r.store.txIndex[t.TransactionID()] = t
	record(ctx, func() {
		r.store.transactions = removeItem(r.store.transactions, t)
		delete(r.store.txIndex, t.TransactionID())
	})
	return nil
}

// FindByTransactionID トランザクションIDで取得
func (r *TransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.txIndex[transactionID]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	return t, nil
}

// FindByUserID ユーザーの履歴を新しい順に取得
func (r *TransactionRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []*transaction.Transaction
	for i := len(r.store.transactions) - 1; i >= 0; i-- {
		if t := r.store.transactions[i]; t.UserID() == userID {
			matched = append(matched, t)
		}
	}
	return paginate(matched, limit, offset), nil
}

// SumByUserID 通貨ごとの金額合計
func (r *TransactionRepository) SumByUserID(ctx context.Context, userID string) (map[currency.CurrencyType]int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sums := map[currency.CurrencyType]int64{}
	for _, t := range r.store.transactions {
		if t.UserID() == userID {
			sums[t.CurrencyType()] += t.Amount()
		}
	}
	return sums, nil
}

// removeItem 同一の要素を1つ取り除く（他のトランザクションの追記は残す）
func removeItem[T comparable](items []T, target T) []T {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i] == target {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
