// Package memory MySQL互換のセマンティクス（行ロック、楽観的ロック、ロールバック）を持つインメモリ永続化。
// ローカル実行とテストで使う
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/outbox"
	"fan-ledger/internal/domain/payment"
	"fan-ledger/internal/domain/streak"
	"fan-ledger/internal/domain/transaction"
)

type balanceRow struct {
	values  map[currency.CurrencyType]int64
	version int
}

type streakRow struct {
	count   int
	last    *streak.Date
	version int
}

type pityKey struct {
	userID string
	poolID string
}

// Store インメモリの全テーブル
type Store struct {
	mu sync.Mutex

	balances     map[string]balanceRow
	transactions []*transaction.Transaction
	txIndex      map[string]*transaction.Transaction
	pools        map[string]*gacha.Pool
	batches      []*gacha.DrawBatch
	inventory    []*gacha.InventoryEntry
	uniqueOwned  map[string]bool
	pity         map[pityKey]gacha.PityCounter
	streaks      map[string]streakRow
	orders       map[string]payment.Order
	outbox       []*outbox.Event
	outboxSeq    int64

	rowLocks map[string]*sync.Mutex
	failures map[string]error
}

// NewStore 空のStoreを作成
func NewStore() *Store {
	return &Store{
		balances:    map[string]balanceRow{},
		txIndex:     map[string]*transaction.Transaction{},
		pools:       map[string]*gacha.Pool{},
		uniqueOwned: map[string]bool{},
		pity:        map[pityKey]gacha.PityCounter{},
		streaks:     map[string]streakRow{},
		orders:      map[string]payment.Order{},
		rowLocks:    map[string]*sync.Mutex{},
		failures:    map[string]error{},
	}
}

// FailOn 指定した操作（"DrawBatchRepository.Save"など）が常にerrを返すようにする。errがnilなら解除
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// HealthCheck 常に正常
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// SeedPool プールを登録
func (s *Store) SeedPool(pool *gacha.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pool.PoolID()] = pool
}

// SeedBalance 監査ログ付きで初期残高を登録（残高と監査ログ合計を一致させる）
func (s *Store) SeedBalance(userID string, ct currency.CurrencyType, amount int64, txn *transaction.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.balanceRowLocked(userID)
	row.values[ct] += amount
	s.balances[userID] = row
	if txn != nil {
		s.transactions = append(s.transactions, txn)
		s.txIndex[txn.TransactionID()] = txn
	}
}

// Outbox 保存済みイベントのコピーを返す
func (s *Store) Outbox() []*outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*outbox.Event, len(s.outbox))
	for i, e := range s.outbox {
		c := *e
		out[i] = &c
	}
	return out
}

func (s *Store) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) balanceRowLocked(userID string) balanceRow {
	row, ok := s.balances[userID]
	if !ok {
		row = balanceRow{values: map[currency.CurrencyType]int64{}}
	}
	copied := balanceRow{values: map[currency.CurrencyType]int64{}, version: row.version}
	for k, v := range row.values {
		copied.values[k] = v
	}
	return copied
}

// ---- unit of work ----

type txKey struct{}

type memTx struct {
	held map[string]*sync.Mutex
	undo []func()
}

func txFromContext(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

// TransactionManager インメモリのユニットオブワーク
type TransactionManager struct {
	store *Store
}

// TransactionManager ユニットオブワークを返す
func (s *Store) TransactionManager() *TransactionManager {
	return &TransactionManager{store: s}
}

// WithTransaction fnを1つのユニットオブワークで実行。エラーまたはpanic時は全ての書き込みを取り消す
func (m *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx := &memTx{held: map[string]*sync.Mutex{}}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			m.store.rollback(tx)
			panic(p)
		}
		if err != nil {
			m.store.rollback(tx)
			return
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			m.store.rollback(tx)
			err = ctxErr
			return
		}
		m.store.release(tx)
	}()

	return fn(txCtx)
}

func (s *Store) rollback(tx *memTx) {
	s.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	s.mu.Unlock()
	s.release(tx)
}

func (s *Store) release(tx *memTx) {
	for key, l := range tx.held {
		l.Unlock()
		delete(tx.held, key)
	}
}

// lockRow SELECT ... FOR UPDATE相当。トランザクション外では何もしない
func (s *Store) lockRow(ctx context.Context, key string) error {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil
	}
	if _, ok := tx.held[key]; ok {
		return nil
	}

	s.mu.Lock()
	l, ok := s.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[key] = l
	}
	s.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		tx.held[key] = l
		return nil
	case <-ctx.Done():
		// 後から取得できたロックは即座に解放する
		go func() {
			<-acquired
			l.Unlock()
		}()
		return fmt.Errorf("%w: %v", transaction.ErrConcurrencyConflict, ctx.Err())
	}
}

// record 取り消し処理を登録（s.mu保持中に呼ぶ）
func record(ctx context.Context, undo func()) {
	if tx := txFromContext(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

var errVersionMismatch = errors.New("version mismatch")

func conflict(entity string) error {
	return fmt.Errorf("%w: %s %v", transaction.ErrConcurrencyConflict, entity, errVersionMismatch)
}
