package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zapcore"

	authapp "fan-ledger/internal/application/auth"
	gachaapp "fan-ledger/internal/application/gacha"
	historyapp "fan-ledger/internal/application/history"
	ledgerapp "fan-ledger/internal/application/ledger"
	paymentapp "fan-ledger/internal/application/payment"
	streakapp "fan-ledger/internal/application/streak"
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/payment"
	"fan-ledger/internal/domain/service"
	"fan-ledger/internal/domain/streak"
	"fan-ledger/internal/infrastructure/clock"
	"fan-ledger/internal/infrastructure/config"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
	"fan-ledger/internal/infrastructure/persistence/memory"
	"fan-ledger/internal/infrastructure/redis"
	"fan-ledger/internal/infrastructure/rng"
	restmiddleware "fan-ledger/internal/presentation/rest/middleware"
)

type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) NewID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, g.n.Add(1))
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testUserHeader 認証ミドルウェアの代わりにユーザーIDを渡すヘッダー
const testUserHeader = "X-Test-User"

type fixture struct {
	e      *echo.Echo
	store  *memory.Store
	ledger *ledgerapp.LedgerApplicationService
	auth   *authapp.AuthApplicationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := otelinfra.NewLoggerWithCore(tracenoop.NewTracerProvider().Tracer("test"), zapcore.NewNopCore())
	metrics, err := otelinfra.NewMetricsWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	ids := &seqIDs{}
	clk := clock.FixedClock{T: testNow}
	tm := store.TransactionManager()

	ledgerSvc := ledgerapp.NewLedgerApplicationService(
		store.Balances(), store.Transactions(), tm,
		service.NewConservationService(store.Balances(), store.Transactions()),
		ids, clk, logger, metrics, 3,
	)
	gachaSvc := gachaapp.NewGachaApplicationService(gachaapp.Deps{
		Ledger:    ledgerSvc,
		Pools:     store.Pools(),
		Batches:   store.DrawBatches(),
		Inventory: store.Inventory(),
		Pity:      store.Pity(),
		Outbox:    store.OutboxEvents(),
		Locker:    redis.NoopPullLocker{},
		TxManager: tm,
		Engine: gacha.NewEngine(map[gacha.PaymentMethod]gacha.GuaranteePolicy{
			"diamonds": {MinRarity: gacha.RaritySR, Slot: 9},
		}, gacha.PityPolicy{}),
		Costs:   gacha.DefaultCostTable(),
		RNG:     rng.SeededFactory{Seed: [32]byte{3}},
		IDGen:   ids,
		Clock:   clk,
		Logger:  logger,
		Metrics: metrics,
	})
	streakSvc := streakapp.NewStreakApplicationService(
		ledgerSvc, store.Streaks(), tm,
		streakapp.Settings{
			Policy:          streak.DefaultPolicy(),
			Location:        time.UTC,
			LoginBaseReward: 10,
			LoginCurrency:   currency.CurrencyTypePoints,
		},
		clk, logger, metrics, 3,
	)
	paymentSvc := paymentapp.NewPaymentApplicationService(
		ledgerSvc, store.Orders(), store.OutboxEvents(), tm,
		payment.NewConverter(decimal.NewFromInt(10), []payment.BonusTier{
			{MinGross: decimal.NewFromInt(100), Percent: 20},
		}),
		ids, clk, logger, metrics, 3,
	)
	historySvc := historyapp.NewHistoryApplicationService(
		store.Transactions(), store.DrawBatches(), store.Inventory(), logger, metrics,
	)
	authSvc := authapp.NewAuthApplicationService(&config.JWTConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "fan-ledger",
	}, ids, clk, logger)

	store.SeedPool(gacha.NewPool("pool_spring", "spring", true,
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour),
		[]gacha.PoolEntry{
			{Prize: gacha.Prize{PrizeID: "n_1", Name: "n_1", Rarity: gacha.RarityN}, Weight: 50, Active: true},
			{Prize: gacha.Prize{PrizeID: "r_1", Name: "r_1", Rarity: gacha.RarityR}, Weight: 30, Active: true},
			{Prize: gacha.Prize{PrizeID: "sr_1", Name: "sr_1", Rarity: gacha.RaritySR, Unique: true}, Weight: 20, Active: true},
		}))
	store.SeedPool(gacha.NewPool("pool_closed", "closed", false,
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour),
		[]gacha.PoolEntry{
			{Prize: gacha.Prize{PrizeID: "n_1", Name: "n_1", Rarity: gacha.RarityN}, Weight: 1, Active: true},
		}))

	e := echo.New()
	e.Validator = NewValidator()
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))

	user := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(testUserHeader); id != "" {
				c.Set("user_id", id)
			}
			return next(c)
		}
	})

	ledgerHandler := NewLedgerHandler(ledgerSvc)
	gachaHandler := NewGachaHandler(gachaSvc)
	streakHandler := NewStreakHandler(streakSvc)
	paymentHandler := NewPaymentHandler(paymentSvc)
	historyHandler := NewHistoryHandler(historySvc)
	authHandler := NewAuthHandler(authSvc)

	e.POST("/auth/token", authHandler.GenerateToken)
	user.GET("/me/balance", ledgerHandler.GetBalance)
	user.GET("/me/transactions", historyHandler.GetTransactionHistory)
	user.GET("/me/gacha/history", historyHandler.GetGachaHistory)
	user.GET("/me/inventory", historyHandler.GetInventory)
	user.POST("/me/streak/daily-login", streakHandler.ClaimDailyLogin)
	user.POST("/gacha/pools/:pool_id/pull", gachaHandler.Pull)
	e.GET("/admin/users/:user_id/balance", ledgerHandler.GetBalanceAdmin)
	e.GET("/admin/users/:user_id/transactions", historyHandler.GetTransactionHistoryAdmin)
	e.GET("/admin/users/:user_id/audit", ledgerHandler.Audit)
	e.POST("/admin/users/:user_id/credit", ledgerHandler.Credit)
	e.POST("/admin/users/:user_id/debit", ledgerHandler.Debit)
	e.POST("/admin/users/:user_id/mission-reward", streakHandler.GrantMissionReward)
	e.POST("/admin/users/:user_id/streak-bonus", streakHandler.ApplyStreakBonus)
	e.GET("/admin/orders/:order_id", paymentHandler.GetOrder)
	e.POST("/webhooks/payment", paymentHandler.HandleWebhook)

	return &fixture{e: e, store: store, ledger: ledgerSvc, auth: authSvc}
}

// do リクエストを送信する。userIDが空なら未認証
func (f *fixture) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) credit(t *testing.T, userID, ct, amount string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/admin/users/"+userID+"/credit", "", MutationRequest{
		Currency: ct, Amount: amount,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
