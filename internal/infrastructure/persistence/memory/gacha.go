package memory

import (
	"context"

	"fan-ledger/internal/domain/gacha"
)

// PoolRepository インメモリのPoolRepository
type PoolRepository struct {
	store *Store
}

// Pools プールリポジトリを返す
func (s *Store) Pools() *PoolRepository {
	return &PoolRepository{store: s}
}

// FindByID プールを取得
func (r *PoolRepository) FindByID(ctx context.Context, poolID string) (*gacha.Pool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	pool, ok := r.store.pools[poolID]
	if !ok {
		return nil, gacha.ErrPoolNotFound
	}
	return pool, nil
}

// DrawBatchRepository インメモリのDrawBatchRepository
type DrawBatchRepository struct {
	store *Store
}

// DrawBatches 抽選バッチリポジトリを返す
func (s *Store) DrawBatches() *DrawBatchRepository {
	return &DrawBatchRepository{store: s}
}

// Save バッチを保存
func (r *DrawBatchRepository) Save(ctx context.Context, batch *gacha.DrawBatch) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("DrawBatchRepository.Save"); err != nil {
		return err
	}

	copied := *batch
	copied.Draws = append([]gacha.DrawRecord(nil), batch.Draws...)
	stored := &copied
	r.store.batches = append(r.store.batches, stored)
	record(ctx, func() { r.store.batches = removeItem(r.store.batches, stored) })
	return nil
}

// FindByUserID ユーザーの抽選履歴を新しい順に取得
func (r *DrawBatchRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*gacha.DrawBatch, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []*gacha.DrawBatch
	for i := len(r.store.batches) - 1; i >= 0; i-- {
		if b := r.store.batches[i]; b.UserID == userID {
			matched = append(matched, b)
		}
	}
	return paginate(matched, limit, offset), nil
}

// InventoryRepository インメモリのInventoryRepository
type InventoryRepository struct {
	store *Store
}

// Inventory 所持品リポジトリを返す
func (s *Store) Inventory() *InventoryRepository {
	return &InventoryRepository{store: s}
}

// Add 所持品を追加。ユニーク景品を既に所持している場合はfalse
func (r *InventoryRepository) Add(ctx context.Context, entry *gacha.InventoryEntry) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("InventoryRepository.Add"); err != nil {
		return false, err
	}

	key := entry.UserID + "\x00" + entry.PrizeID
	if entry.Unique {
		if r.store.uniqueOwned[key] {
			return false, nil
		}
		r.store.uniqueOwned[key] = true
	}

	copied := *entry
	stored := &copied
	r.store.inventory = append(r.store.inventory, stored)
	record(ctx, func() {
		r.store.inventory = removeItem(r.store.inventory, stored)
		if entry.Unique {
			delete(r.store.uniqueOwned, key)
		}
	})
	return true, nil
}

// FindByUserID ユーザーの所持品を新しい順に取得
func (r *InventoryRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*gacha.InventoryEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []*gacha.InventoryEntry
	for i := len(r.store.inventory) - 1; i >= 0; i-- {
		if e := r.store.inventory[i]; e.UserID == userID {
			c := *e
			matched = append(matched, &c)
		}
	}
	return paginate(matched, limit, offset), nil
}

// PityRepository インメモリのPityRepository
type PityRepository struct {
	store *Store
}

// Pity 天井カウンターリポジトリを返す
func (s *Store) Pity() *PityRepository {
	return &PityRepository{store: s}
}

// FindForUpdate 行ロック付きで取得（存在しない場合はゼロで作成）
func (r *PityRepository) FindForUpdate(ctx context.Context, userID, poolID string) (*gacha.PityCounter, error) {
	if err := r.store.lockRow(ctx, "pity:"+userID+"\x00"+poolID); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := pityKey{userID: userID, poolID: poolID}
	counter, ok := r.store.pity[key]
	if !ok {
		counter = gacha.PityCounter{UserID: userID, PoolID: poolID}
		r.store.pity[key] = counter
		record(ctx, func() { delete(r.store.pity, key) })
	}
	c := counter
	return &c, nil
}

// Save 保存（楽観的ロック対応）
func (r *PityRepository) Save(ctx context.Context, counter *gacha.PityCounter) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("PityRepository.Save"); err != nil {
		return err
	}

	key := pityKey{userID: counter.UserID, poolID: counter.PoolID}
	prev, ok := r.store.pity[key]
	if !ok || prev.Version != counter.Version {
		return conflict("pity counter")
	}

	next := *counter
	next.Version++
	r.store.pity[key] = next
	record(ctx, func() { r.store.pity[key] = prev })
	counter.Version++
	return nil
}
