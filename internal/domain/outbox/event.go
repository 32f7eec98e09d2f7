package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidEvent 無効なイベント
	ErrInvalidEvent = errors.New("invalid outbox event")
)

// EventStatus 送信状態
type EventStatus string

const (
	EventStatusPending EventStatus = "pending" // 未送信
	EventStatusSent    EventStatus = "sent"    // 送信済み
	EventStatusFailed  EventStatus = "failed"  // 再試行上限に到達
)

// イベント種別
const (
	EventTypeGachaPulled     = "gacha.pulled"
	EventTypePaymentCredited = "payment.credited"
)

// 集約種別
const (
	AggregateGachaBatch   = "gacha_batch"
	AggregatePaymentOrder = "payment_order"
)

// Event トランザクショナルアウトボックスのイベント
// 業務データと同じユニットオブワークで保存され、リレーがKafkaへ送信する
type Event struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Status        EventStatus
	RetryCount    int
	CreatedAt     time.Time
	SentAt        *time.Time
}

// NewEvent 新しい未送信イベントを作成。payloadはJSONに変換される
func NewEvent(eventID, aggregateType, aggregateID, eventType string, payload interface{}, createdAt time.Time) (*Event, error) {
	if eventID == "" || aggregateID == "" || eventType == "" {
		return nil, ErrInvalidEvent
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return &Event{
		EventID:       eventID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		Status:        EventStatusPending,
		CreatedAt:     createdAt,
	}, nil
}

// GachaPulledPayload gacha.pulledのペイロード
type GachaPulledPayload struct {
	BatchID     string   `json:"batch_id"`
	UserID      string   `json:"user_id"`
	PoolID      string   `json:"pool_id"`
	PullType    string   `json:"pull_type"`
	Currency    string   `json:"currency"`
	AmountSpent int64    `json:"amount_spent"`
	PrizeIDs    []string `json:"prize_ids"`
}

// PaymentCreditedPayload payment.creditedのペイロード
type PaymentCreditedPayload struct {
	OrderID       string `json:"order_id"`
	PayerID       string `json:"payer_id"`
	GrossAmount   string `json:"gross_amount"`
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transaction_id"`
}
