package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zapcore"

	"fan-ledger/internal/application/ledger"
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/outbox"
	"fan-ledger/internal/domain/payment"
	"fan-ledger/internal/domain/service"
	"fan-ledger/internal/domain/transaction"
	"fan-ledger/internal/infrastructure/clock"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
	"fan-ledger/internal/infrastructure/persistence/memory"
)

type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) NewID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, g.n.Add(1))
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// MockOrderRepository モック決済注文リポジトリ
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) EnsureExists(ctx context.Context, order *payment.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*payment.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*payment.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockOrderRepository) MarkCredited(ctx context.Context, order *payment.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

type fixture struct {
	store  *memory.Store
	ledger *ledger.LedgerApplicationService
	svc    *PaymentApplicationService
}

func newFixture(t *testing.T, orders payment.OrderRepository) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := otelinfra.NewLoggerWithCore(otel.Tracer("test"), zapcore.NewNopCore())
	metrics, err := otelinfra.NewMetricsWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	ids := &seqIDs{}
	clk := clock.FixedClock{T: testNow}

	ledgerSvc := ledger.NewLedgerApplicationService(
		store.Balances(),
		store.Transactions(),
		store.TransactionManager(),
		service.NewConservationService(store.Balances(), store.Transactions()),
		ids, clk, logger, metrics, 3,
	)
	if orders == nil {
		orders = store.Orders()
	}
	converter := payment.NewConverter(decimal.NewFromInt(10), []payment.BonusTier{
		{MinGross: decimal.NewFromInt(100), Percent: 20},
	})
	svc := NewPaymentApplicationService(
		ledgerSvc, orders, store.OutboxEvents(), store.TransactionManager(),
		converter, ids, clk, logger, metrics, 3,
	)
	return &fixture{store: store, ledger: ledgerSvc, svc: svc}
}

func (f *fixture) diamonds(t *testing.T, userID string) int64 {
	t.Helper()
	resp, err := f.ledger.GetBalance(context.Background(), &ledger.GetBalanceRequest{UserID: userID})
	require.NoError(t, err)
	return resp.Balances["diamonds"]
}

func TestPaymentApplicationService_HandlePaymentConfirmed(t *testing.T) {
	tests := []struct {
		name       string
		req        *PaymentConfirmedRequest
		wantError  error
		wantAmount int64
	}{
		{
			name:       "正常系: 9.99は99ダイヤ",
			req:        &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "9.99"},
			wantAmount: 99,
		},
		{
			name:       "正常系: ボーナス段階を適用",
			req:        &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "100.00"},
			wantAmount: 1200,
		},
		{
			name:      "異常系: 金額ゼロ",
			req:       &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "0"},
			wantError: currency.ErrInvalidAmount,
		},
		{
			name:      "異常系: 負の金額",
			req:       &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "-5.00"},
			wantError: currency.ErrInvalidAmount,
		},
		{
			name:      "異常系: 付与額がゼロになる金額",
			req:       &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "0.01"},
			wantError: currency.ErrInvalidAmount,
		},
		{
			name:      "異常系: 数値でない金額",
			req:       &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "abc"},
			wantError: payment.ErrInvalidGrossAmount,
		},
		{
			name:      "異常系: int64を超える金額は桁あふれせず拒否",
			req:       &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "1844674407370955166.6"},
			wantError: payment.ErrInvalidGrossAmount,
		},
		{
			name:      "異常系: 付与額が残高上限を超える",
			req:       &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "999999999999.99"},
			wantError: payment.ErrInvalidGrossAmount,
		},
		{
			name:      "異常系: 注文IDが空",
			req:       &PaymentConfirmedRequest{OrderID: "", PayerID: "user123", GrossAmount: "9.99"},
			wantError: payment.ErrInvalidOrder,
		},
		{
			name:      "異常系: 支払者IDが空",
			req:       &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "", GrossAmount: "9.99"},
			wantError: payment.ErrInvalidOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			resp, err := f.svc.HandlePaymentConfirmed(context.Background(), tt.req)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, resp)
				assert.Empty(t, f.store.Outbox())
				if tt.req.PayerID != "" {
					assert.Zero(t, f.diamonds(t, tt.req.PayerID))
				}
				_, err = f.svc.GetOrder(context.Background(), "order_1")
				assert.ErrorIs(t, err, payment.ErrOrderNotFound)
				return
			}

			require.NoError(t, err)
			assert.True(t, resp.Credited)
			assert.Equal(t, tt.wantAmount, resp.Amount)
			assert.Equal(t, tt.wantAmount, f.diamonds(t, tt.req.PayerID))

			txn, err := f.store.Transactions().FindByTransactionID(context.Background(), resp.TransactionID)
			require.NoError(t, err)
			assert.Equal(t, transaction.KindPaymentCredit, txn.Kind())
			require.NotNil(t, txn.Reference())
			assert.Equal(t, "order:order_1", *txn.Reference())

			events := f.store.Outbox()
			require.Len(t, events, 1)
			assert.Equal(t, outbox.EventTypePaymentCredited, events[0].EventType)

			order, err := f.svc.GetOrder(context.Background(), "order_1")
			require.NoError(t, err)
			assert.True(t, order.Credited)
			assert.Equal(t, tt.wantAmount, order.CreditedAmount)
		})
	}
}

func TestPaymentApplicationService_HandlePaymentConfirmed_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := &PaymentConfirmedRequest{OrderID: "order_42", PayerID: "user123", GrossAmount: "9.99"}

	first, err := f.svc.HandlePaymentConfirmed(ctx, req)
	require.NoError(t, err)
	assert.True(t, first.Credited)

	second, err := f.svc.HandlePaymentConfirmed(ctx, req)
	require.NoError(t, err)
	assert.False(t, second.Credited)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.Amount, second.Amount)

	assert.Equal(t, int64(99), f.diamonds(t, "user123"))
	txns, err := f.store.Transactions().FindByUserID(ctx, "user123", 10, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	assert.Len(t, f.store.Outbox(), 1)
}

func TestPaymentApplicationService_HandlePaymentConfirmed_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(t, nil)
	req := &PaymentConfirmedRequest{OrderID: "order_7", PayerID: "user123", GrossAmount: "5.00"}

	var wg sync.WaitGroup
	var credited atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.HandlePaymentConfirmed(context.Background(), req)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if resp.Credited {
				credited.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), credited.Load())
	assert.Equal(t, int64(50), f.diamonds(t, "user123"))
}

func TestPaymentApplicationService_HandlePaymentConfirmed_PayerMismatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.HandlePaymentConfirmed(ctx, &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "user123", GrossAmount: "9.99"})
	require.NoError(t, err)

	_, err = f.svc.HandlePaymentConfirmed(ctx, &PaymentConfirmedRequest{OrderID: "order_1", PayerID: "other_user", GrossAmount: "9.99"})
	assert.ErrorIs(t, err, payment.ErrPayerMismatch)
	assert.Equal(t, int64(0), f.diamonds(t, "other_user"))
}

func TestPaymentApplicationService_HandlePaymentConfirmed_RollsBackOnMarkFailure(t *testing.T) {
	f := newFixture(t, nil)
	errInjected := errors.New("injected failure")
	f.store.FailOn("OrderRepository.MarkCredited", errInjected)

	_, err := f.svc.HandlePaymentConfirmed(context.Background(), &PaymentConfirmedRequest{
		OrderID: "order_1", PayerID: "user123", GrossAmount: "9.99",
	})
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, int64(0), f.diamonds(t, "user123"))
	_, err = f.svc.GetOrder(context.Background(), "order_1")
	assert.ErrorIs(t, err, payment.ErrOrderNotFound)

	// 障害が解消すれば再配信で付与される
	f.store.FailOn("OrderRepository.MarkCredited", nil)
	resp, err := f.svc.HandlePaymentConfirmed(context.Background(), &PaymentConfirmedRequest{
		OrderID: "order_1", PayerID: "user123", GrossAmount: "9.99",
	})
	require.NoError(t, err)
	assert.True(t, resp.Credited)
	assert.Equal(t, int64(99), f.diamonds(t, "user123"))
}

func TestPaymentApplicationService_HandlePaymentConfirmed_RepositoryErrors(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockOrderRepository)
	}{
		{
			name: "異常系: 注文作成でDBエラー",
			setupMocks: func(m *MockOrderRepository) {
				m.On("EnsureExists", mock.Anything, mock.Anything).Return(errors.New("db down"))
			},
		},
		{
			name: "異常系: 行ロックでDBエラー",
			setupMocks: func(m *MockOrderRepository) {
				m.On("EnsureExists", mock.Anything, mock.Anything).Return(nil)
				m.On("FindByOrderIDForUpdate", mock.Anything, "order_1").Return(nil, errors.New("db down"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mor := new(MockOrderRepository)
			tt.setupMocks(mor)
			f := newFixture(t, mor)

			_, err := f.svc.HandlePaymentConfirmed(context.Background(), &PaymentConfirmedRequest{
				OrderID: "order_1", PayerID: "user123", GrossAmount: "9.99",
			})
			assert.Error(t, err)
			assert.Equal(t, int64(0), f.diamonds(t, "user123"))
			mor.AssertExpectations(t)
			mor.AssertNotCalled(t, "MarkCredited", mock.Anything, mock.Anything)
		})
	}
}
