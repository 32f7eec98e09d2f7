package memory

import (
	"context"
	"fmt"

	"fan-ledger/internal/domain/payment"
)

// OrderRepository インメモリのOrderRepository
type OrderRepository struct {
	store *Store
}

// Orders 決済注文リポジトリを返す
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{store: s}
}

// EnsureExists 注文行が無ければ作成
func (r *OrderRepository) EnsureExists(ctx context.Context, order *payment.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.orders[order.OrderID()]; ok {
		return nil
	}
	r.store.orders[order.OrderID()] = *order
	record(ctx, func() { delete(r.store.orders, order.OrderID()) })
	return nil
}

// FindByOrderIDForUpdate 行ロック付きで取得
func (r *OrderRepository) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*payment.Order, error) {
	if err := r.store.lockRow(ctx, "order:"+orderID); err != nil {
		return nil, err
	}
	return r.FindByOrderID(ctx, orderID)
}

// FindByOrderID 注文を取得
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*payment.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[orderID]
	if !ok {
		return nil, payment.ErrOrderNotFound
	}
	return &o, nil
}

// MarkCredited 付与済みにする（未付与の場合のみ）
func (r *OrderRepository) MarkCredited(ctx context.Context, order *payment.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("OrderRepository.MarkCredited"); err != nil {
		return err
	}

	prev, ok := r.store.orders[order.OrderID()]
	if !ok {
		return payment.ErrOrderNotFound
	}
	if prev.IsCredited() {
		return fmt.Errorf("%w: order %s already credited", payment.ErrInvalidOrder, order.OrderID())
	}
	r.store.orders[order.OrderID()] = *order
	record(ctx, func() { r.store.orders[order.OrderID()] = prev })
	return nil
}
