package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	authapp "fan-ledger/internal/application/auth"
	gachaapp "fan-ledger/internal/application/gacha"
	historyapp "fan-ledger/internal/application/history"
	ledgerapp "fan-ledger/internal/application/ledger"
	paymentapp "fan-ledger/internal/application/payment"
	streakapp "fan-ledger/internal/application/streak"
	"fan-ledger/internal/infrastructure/config"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
	"fan-ledger/internal/presentation/rest/handler"
	restmiddleware "fan-ledger/internal/presentation/rest/middleware"
)

// HealthCheck 依存先の疎通確認
type HealthCheck func(ctx context.Context) error

// Services ルーターが公開するアプリケーションサービス
type Services struct {
	Auth    *authapp.AuthApplicationService
	Ledger  *ledgerapp.LedgerApplicationService
	Gacha   *gachaapp.GachaApplicationService
	Streak  *streakapp.StreakApplicationService
	Payment *paymentapp.PaymentApplicationService
	History *historyapp.HistoryApplicationService
}

// Options 観測系の設定
type Options struct {
	Metrics *otelinfra.Metrics
	// MetricsHandler /metricsで配信するハンドラー（nilなら公開しない）
	MetricsHandler http.Handler
	HealthChecks   map[string]HealthCheck
}

// Router REST APIルーター
type Router struct {
	echo *echo.Echo
	cfg  *config.ServerConfig
}

// NewRouter 新しいRouterを作成
func NewRouter(cfg *config.Config, logger *otelinfra.Logger, services Services, opts Options) (*Router, error) {
	if services.Auth == nil || services.Ledger == nil || services.Gacha == nil ||
		services.Streak == nil || services.Payment == nil || services.History == nil {
		return nil, fmt.Errorf("all application services are required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	// エラーハンドリングミドルウェアで処理済みのため、ここには未処理のエラーだけが届く
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger.Error(c.Request().Context(), "Unhandled error", err, nil)
		_ = c.JSON(http.StatusInternalServerError, restmiddleware.ErrorResponse{
			Error:   "internal_server_error",
			Message: "An unexpected error occurred",
		})
	}

	setupMiddleware(e, logger, opts.Metrics)
	setupRoutes(e, cfg, logger, services, opts)
	SetupSwagger(e)

	return &Router{echo: e, cfg: &cfg.Server}, nil
}

// Echo 内部のEchoインスタンス（テスト用）
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, "X-API-Key",
		},
	}))

	e.Use(middleware.RequestID())
	e.Use(restmiddleware.SecurityHeadersMiddleware())
	e.Use(restmiddleware.TracingMiddleware())
	if metrics != nil {
		e.Use(restmiddleware.MetricsMiddleware(metrics))
	}
	e.Use(restmiddleware.LoggingMiddleware(logger))
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, services Services, opts Options) {
	authHandler := handler.NewAuthHandler(services.Auth)
	ledgerHandler := handler.NewLedgerHandler(services.Ledger)
	gachaHandler := handler.NewGachaHandler(services.Gacha)
	streakHandler := handler.NewStreakHandler(services.Streak)
	paymentHandler := handler.NewPaymentHandler(services.Payment)
	historyHandler := handler.NewHistoryHandler(services.History)

	api := e.Group("/api/v1")

	// APIキー認証（トークン発行・管理API・決済Webhook）
	apiKey := restmiddleware.APIKeyMiddleware(&cfg.AdminAPI, logger)
	api.POST("/auth/token", authHandler.GenerateToken, apiKey)
	api.POST("/webhooks/payment", paymentHandler.HandleWebhook, apiKey)

	admin := api.Group("/admin", apiKey)
	admin.GET("/users/:user_id/balance", ledgerHandler.GetBalanceAdmin)
	admin.GET("/users/:user_id/transactions", historyHandler.GetTransactionHistoryAdmin)
	admin.GET("/users/:user_id/audit", ledgerHandler.Audit)
	admin.POST("/users/:user_id/credit", ledgerHandler.Credit)
	admin.POST("/users/:user_id/debit", ledgerHandler.Debit)
	admin.POST("/users/:user_id/mission-reward", streakHandler.GrantMissionReward)
	admin.POST("/users/:user_id/streak-bonus", streakHandler.ApplyStreakBonus)
	admin.GET("/orders/:order_id", paymentHandler.GetOrder)

	// JWT認証（ユーザー本人の操作）
	user := api.Group("", restmiddleware.AuthMiddleware(services.Auth, logger))
	user.GET("/me/balance", ledgerHandler.GetBalance)
	user.GET("/me/transactions", historyHandler.GetTransactionHistory)
	user.GET("/me/gacha/history", historyHandler.GetGachaHistory)
	user.GET("/me/inventory", historyHandler.GetInventory)
	user.POST("/me/streak/daily-login", streakHandler.ClaimDailyLogin)
	user.POST("/gacha/pools/:pool_id/pull", gachaHandler.Pull)

	e.GET("/health", healthHandler(opts.HealthChecks, logger))
	if opts.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(opts.MetricsHandler))
	}
}

// healthHandler 依存先を確認し、1つでも失敗すれば503を返す
func healthHandler(checks map[string]HealthCheck, logger *otelinfra.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn(ctx, "Health check failed", map[string]interface{}{
					"component": name,
					"error":     err.Error(),
				})
				components[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		return c.JSON(status, map[string]interface{}{
			"status":     overall,
			"components": components,
		})
	}
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	server := &http.Server{
		Addr:         address,
		Handler:      r.echo,
		ReadTimeout:  r.cfg.ReadTimeout,
		WriteTimeout: r.cfg.WriteTimeout,
		IdleTimeout:  r.cfg.IdleTimeout,
	}
	return r.echo.StartServer(server)
}

// Shutdown 処理中のリクエストを待ってからサーバーを停止
func (r *Router) Shutdown(ctx context.Context) error {
	return r.echo.Shutdown(ctx)
}
