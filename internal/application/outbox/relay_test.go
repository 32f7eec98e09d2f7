package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zapcore"

	"fan-ledger/internal/domain/outbox"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
	"fan-ledger/internal/infrastructure/persistence/memory"
)

// fakePublisher 指定した集約IDの送信だけ失敗させる
type fakePublisher struct {
	failFor   map[string]bool
	published []string
}

func (p *fakePublisher) Publish(ctx context.Context, event *outbox.Event) error {
	if p.failFor[event.AggregateID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event.EventID)
	return nil
}

func newRelay(t *testing.T, store *memory.Store, pub outbox.Publisher, maxRetries int) *RelayService {
	t.Helper()
	logger := otelinfra.NewLoggerWithCore(otel.Tracer("test"), zapcore.NewNopCore())
	metrics, err := otelinfra.NewMetricsWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return NewRelayService(store.OutboxEvents(), pub, 10, maxRetries, logger, metrics)
}

func appendEvent(t *testing.T, store *memory.Store, eventID, aggregateID string) {
	t.Helper()
	event, err := outbox.NewEvent(eventID, outbox.AggregateGachaBatch, aggregateID, outbox.EventTypeGachaPulled,
		outbox.GachaPulledPayload{BatchID: aggregateID}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, store.OutboxEvents().Append(context.Background(), event))
}

func TestRelayService_Relay(t *testing.T) {
	tests := []struct {
		name          string
		failFor       map[string]bool
		wantPublished int
		wantFailed    int
		wantPending   int
	}{
		{
			name:          "正常系: 全件送信",
			wantPublished: 3,
		},
		{
			name:          "異常系: 1件送信失敗は次回に再送",
			failFor:       map[string]bool{"batch_2": true},
			wantPublished: 2,
			wantFailed:    1,
			wantPending:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			appendEvent(t, store, "evt_1", "batch_1")
			appendEvent(t, store, "evt_2", "batch_2")
			appendEvent(t, store, "evt_3", "batch_3")
			pub := &fakePublisher{failFor: tt.failFor}

			result, err := newRelay(t, store, pub, 5).Relay(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3, result.Fetched)
			assert.Equal(t, tt.wantPublished, result.Published)
			assert.Equal(t, tt.wantFailed, result.Failed)

			pending, err := store.OutboxEvents().FetchPending(context.Background(), 10)
			require.NoError(t, err)
			assert.Len(t, pending, tt.wantPending)
		})
	}
}

func TestRelayService_Relay_GivesUpAfterMaxRetries(t *testing.T) {
	store := memory.NewStore()
	appendEvent(t, store, "evt_1", "batch_1")
	pub := &fakePublisher{failFor: map[string]bool{"batch_1": true}}
	relay := newRelay(t, store, pub, 2)

	for i := 0; i < 2; i++ {
		_, err := relay.Relay(context.Background())
		require.NoError(t, err)
	}

	events := store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, outbox.EventStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].RetryCount)

	result, err := relay.Relay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Fetched)
}

func TestRelayService_Relay_PreservesOrder(t *testing.T) {
	store := memory.NewStore()
	appendEvent(t, store, "evt_1", "batch_1")
	appendEvent(t, store, "evt_2", "batch_1")
	pub := &fakePublisher{}

	_, err := newRelay(t, store, pub, 5).Relay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_1", "evt_2"}, pub.published)

	for _, e := range store.Outbox() {
		assert.Equal(t, outbox.EventStatusSent, e.Status)
		assert.NotNil(t, e.SentAt)
	}
}
