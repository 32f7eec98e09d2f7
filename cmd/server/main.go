package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	authapp "fan-ledger/internal/application/auth"
	gachaapp "fan-ledger/internal/application/gacha"
	historyapp "fan-ledger/internal/application/history"
	ledgerapp "fan-ledger/internal/application/ledger"
	outboxapp "fan-ledger/internal/application/outbox"
	paymentapp "fan-ledger/internal/application/payment"
	streakapp "fan-ledger/internal/application/streak"
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/outbox"
	"fan-ledger/internal/domain/payment"
	"fan-ledger/internal/domain/service"
	"fan-ledger/internal/domain/streak"
	"fan-ledger/internal/domain/transaction"
	"fan-ledger/internal/infrastructure/clock"
	"fan-ledger/internal/infrastructure/config"
	"fan-ledger/internal/infrastructure/idgen"
	"fan-ledger/internal/infrastructure/kafka"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
	"fan-ledger/internal/infrastructure/persistence/memory"
	"fan-ledger/internal/infrastructure/persistence/mysql"
	"fan-ledger/internal/infrastructure/redis"
	"fan-ledger/internal/infrastructure/rng"
	"fan-ledger/internal/infrastructure/scheduler"
	"fan-ledger/internal/presentation/rest"
)

// repositories 保存先ごとのリポジトリ一式
type repositories struct {
	balances     currency.BalanceRepository
	transactions transaction.TransactionRepository
	pools        gacha.PoolRepository
	batches      gacha.DrawBatchRepository
	inventory    gacha.InventoryRepository
	pity         gacha.PityRepository
	streaks      streak.StreakRepository
	orders       payment.OrderRepository
	outbox       outbox.Repository
	txManager    transaction.TransactionManager
	health       rest.HealthCheck
	close        func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer shutdownWithTimeout("tracer", tracerShutdown)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry, registry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer shutdownWithTimeout("meter", meterShutdown)

	tracer := otelinfra.Tracer("fan-ledger")
	logger, err := otelinfra.NewLoggerWithConfig(tracer, &cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics, err := otelinfra.NewMetrics("fan-ledger")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	ctx := context.Background()
	clk := clock.RealClock{}
	ids := idgen.NewUUIDGenerator()

	repos, err := openRepositories(cfg, clk)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer func() { _ = repos.close() }()

	healthChecks := map[string]rest.HealthCheck{"storage": repos.health}

	// 抽選ロック（Redis無効時は単一プロセス前提でロックしない）
	var locker gacha.PullLocker = redis.NoopPullLocker{}
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		locker = redis.NewPullLocker(client, cfg.Redis.LockTTL)
		healthChecks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	// アウトボックスの送信先
	var publisher outbox.Publisher = kafka.NewLogPublisher(logger)
	if cfg.Kafka.Enabled {
		kp := kafka.NewPublisher(&cfg.Kafka)
		defer kp.Close()
		publisher = kp
	}

	costs, engine, err := gachaapp.BuildRules(cfg.Gacha.Rules)
	if err != nil {
		log.Fatalf("Failed to build gacha rules: %v", err)
	}
	loginCurrency, err := currency.NewCurrencyType(cfg.Streak.LoginCurrency)
	if err != nil {
		log.Fatalf("Invalid STREAK_LOGIN_CURRENCY: %v", err)
	}
	converter, err := buildConverter(&cfg.Payment)
	if err != nil {
		log.Fatalf("Failed to build payment converter: %v", err)
	}

	// アプリケーションサービスの初期化
	ledgerService := ledgerapp.NewLedgerApplicationService(
		repos.balances,
		repos.transactions,
		repos.txManager,
		service.NewConservationService(repos.balances, repos.transactions),
		ids,
		clk,
		logger,
		metrics,
		cfg.Ledger.MaxRetries,
	)

	gachaService := gachaapp.NewGachaApplicationService(gachaapp.Deps{
		Ledger:     ledgerService,
		Pools:      repos.pools,
		Batches:    repos.batches,
		Inventory:  repos.inventory,
		Pity:       repos.pity,
		Outbox:     repos.outbox,
		Locker:     locker,
		TxManager:  repos.txManager,
		Engine:     engine,
		Costs:      costs,
		RNG:        rng.NewChaCha8Factory(),
		IDGen:      ids,
		Clock:      clk,
		Logger:     logger,
		Metrics:    metrics,
		MaxRetries: cfg.Ledger.MaxRetries,
	})

	streakService := streakapp.NewStreakApplicationService(
		ledgerService,
		repos.streaks,
		repos.txManager,
		streakapp.Settings{
			Policy: streak.Policy{
				Day7Multiplier: cfg.Streak.Day7Multiplier,
				Day7Bonus:      cfg.Streak.Day7Bonus,
			},
			Location:        cfg.Streak.Location,
			LoginBaseReward: cfg.Streak.LoginBaseReward,
			LoginCurrency:   loginCurrency,
		},
		clk,
		logger,
		metrics,
		cfg.Ledger.MaxRetries,
	)

	paymentService := paymentapp.NewPaymentApplicationService(
		ledgerService,
		repos.orders,
		repos.outbox,
		repos.txManager,
		converter,
		ids,
		clk,
		logger,
		metrics,
		cfg.Ledger.MaxRetries,
	)

	historyService := historyapp.NewHistoryApplicationService(
		repos.transactions,
		repos.batches,
		repos.inventory,
		logger,
		metrics,
	)

	authService := authapp.NewAuthApplicationService(&cfg.JWT, ids, clk, logger)

	relayService := outboxapp.NewRelayService(
		repos.outbox,
		publisher,
		cfg.Outbox.BatchSize,
		cfg.Outbox.MaxRetries,
		logger,
		metrics,
	)

	// 定期実行ジョブ
	sched := scheduler.New(cfg.Streak.Location, logger)
	if err := sched.Add(cfg.Streak.ResetCron, "streak_reset", func(ctx context.Context) error {
		_, err := streakService.ResetStale(ctx)
		return err
	}); err != nil {
		log.Fatalf("Failed to schedule streak reset: %v", err)
	}
	if err := sched.Add(cfg.Outbox.RelayCron, "outbox_relay", func(ctx context.Context) error {
		_, err := relayService.Relay(ctx)
		return err
	}); err != nil {
		log.Fatalf("Failed to schedule outbox relay: %v", err)
	}

	var metricsHandler http.Handler
	if cfg.OpenTelemetry.Enabled && cfg.OpenTelemetry.MetricsExporter == "prometheus" {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}

	router, err := rest.NewRouter(cfg, logger, rest.Services{
		Auth:    authService,
		Ledger:  ledgerService,
		Gacha:   gachaService,
		Streak:  streakService,
		Payment: paymentService,
		History: historyService,
	}, rest.Options{
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		HealthChecks:   healthChecks,
	})
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	address := fmt.Sprintf(":%d", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sched.Start()
	go func() {
		logger.Info(ctx, "REST API server starting", map[string]interface{}{
			"address": address,
			"storage": cfg.Storage.Backend,
		})
		if err := router.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "REST API server error", err, nil)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info(ctx, "Shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error shutting down REST API server", err, nil)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "Error stopping scheduler", err, nil)
	}

	// 停止前に残っているイベントを送っておく
	if _, err := relayService.Relay(shutdownCtx); err != nil {
		logger.Warn(ctx, "Final outbox relay failed", map[string]interface{}{"error": err.Error()})
	}

	logger.Info(ctx, "Server stopped", nil)
}

// openRepositories 設定された保存先のリポジトリを作成
func openRepositories(cfg *config.Config, clk clock.Clock) (*repositories, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		store := memory.NewStore()
		seedDemoPool(store, clk.Now())
		return &repositories{
			balances:     store.Balances(),
			transactions: store.Transactions(),
			pools:        store.Pools(),
			batches:      store.DrawBatches(),
			inventory:    store.Inventory(),
			pity:         store.Pity(),
			streaks:      store.Streaks(),
			orders:       store.Orders(),
			outbox:       store.OutboxEvents(),
			txManager:    store.TransactionManager(),
			health:       store.HealthCheck,
			close:        func() error { return nil },
		}, nil
	default:
		db, err := mysql.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &repositories{
			balances:     mysql.NewBalanceRepository(db),
			transactions: mysql.NewTransactionRepository(db),
			pools:        mysql.NewGachaPoolRepository(db),
			batches:      mysql.NewDrawBatchRepository(db),
			inventory:    mysql.NewPrizeInventoryRepository(db),
			pity:         mysql.NewPityRepository(db),
			streaks:      mysql.NewStreakRepository(db),
			orders:       mysql.NewPaymentOrderRepository(db),
			outbox:       mysql.NewOutboxRepository(db),
			txManager:    mysql.NewTransactionManager(db),
			health:       db.HealthCheck,
			close:        db.Close,
		}, nil
	}
}

// seedDemoPool メモリ保存時に試せるプールを1つ用意する
func seedDemoPool(store *memory.Store, now time.Time) {
	store.SeedPool(gacha.NewPool("pool_demo", "demo", true,
		now.Add(-24*time.Hour), now.Add(365*24*time.Hour),
		[]gacha.PoolEntry{
			{Prize: gacha.Prize{PrizeID: "demo_n", Name: "Sticker", Rarity: gacha.RarityN}, Weight: 70, Active: true},
			{Prize: gacha.Prize{PrizeID: "demo_r", Name: "Postcard", Rarity: gacha.RarityR}, Weight: 22, Active: true},
			{Prize: gacha.Prize{PrizeID: "demo_sr", Name: "Signed photo", Rarity: gacha.RaritySR, Unique: true}, Weight: 6, Active: true},
			{Prize: gacha.Prize{PrizeID: "demo_ssr", Name: "Voice message", Rarity: gacha.RaritySSR, Unique: true}, Weight: 2, Active: true},
		}))
}

// buildConverter 決済金額の変換設定を組み立てる
func buildConverter(cfg *config.PaymentConfig) (*payment.Converter, error) {
	perUnit, err := decimal.NewFromString(cfg.DiamondsPerUnit)
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_DIAMONDS_PER_UNIT: %w", err)
	}
	tiers := make([]payment.BonusTier, 0, len(cfg.BonusTiers))
	for _, t := range cfg.BonusTiers {
		minGross, err := decimal.NewFromString(t.MinGross)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYMENT_BONUS_TIERS amount %q: %w", t.MinGross, err)
		}
		tiers = append(tiers, payment.BonusTier{MinGross: minGross, Percent: t.Percent})
	}
	return payment.NewConverter(perUnit, tiers), nil
}

// shutdownWithTimeout 5秒以内に終了処理を実行
func shutdownWithTimeout(name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown %s: %v", name, err)
	}
}
