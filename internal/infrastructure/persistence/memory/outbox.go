package memory

import (
	"context"
	"time"

	"fan-ledger/internal/domain/outbox"
)

// OutboxRepository インメモリのアウトボックス
type OutboxRepository struct {
	store *Store
}

// OutboxEvents アウトボックスリポジトリを返す
func (s *Store) OutboxEvents() *OutboxRepository {
	return &OutboxRepository{store: s}
}

// Append イベントを追加
func (r *OutboxRepository) Append(ctx context.Context, event *outbox.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("OutboxRepository.Append"); err != nil {
		return err
	}

	copied := *event
	r.store.outboxSeq++
	copied.ID = r.store.outboxSeq
	stored := &copied
	r.store.outbox = append(r.store.outbox, stored)
	event.ID = copied.ID
	record(ctx, func() { r.store.outbox = removeItem(r.store.outbox, stored) })
	return nil
}

// FetchPending 未送信イベントを古い順に取得
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*outbox.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var pending []*outbox.Event
	for _, e := range r.store.outbox {
		if e.Status == outbox.EventStatusPending {
			c := *e
			pending = append(pending, &c)
			if limit > 0 && len(pending) >= limit {
				break
			}
		}
	}
	return pending, nil
}

// MarkSent 送信済みにする
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.outbox {
		if e.ID == id {
			now := time.Now().UTC()
			e.Status = outbox.EventStatusSent
			e.SentAt = &now
		}
	}
	return nil
}

// MarkFailed 送信失敗を記録
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, maxRetries int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.outbox {
		if e.ID == id {
			e.RetryCount++
			if e.RetryCount >= maxRetries {
				e.Status = outbox.EventStatusFailed
			}
		}
	}
	return nil
}
