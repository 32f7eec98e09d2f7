package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	authapp "fan-ledger/internal/application/auth"
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/payment"
	"fan-ledger/internal/domain/transaction"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// errorMapping ドメインエラーとHTTPレスポンスの対応
type errorMapping struct {
	target  error
	status  int
	code    string
	logText string
}

// 先頭から順に判定する。より具体的なエラーを先に置く
var errorMappings = []errorMapping{
	{authapp.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", "Invalid token"},
	{currency.ErrInsufficientFunds, http.StatusConflict, "insufficient_funds", "Insufficient funds"},
	{currency.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount", "Invalid amount"},
	{currency.ErrAmountTooLarge, http.StatusBadRequest, "invalid_amount", "Amount too large"},
	{currency.ErrBalanceOutOfRange, http.StatusUnprocessableEntity, "balance_out_of_range", "Balance out of range"},
	{currency.ErrInvalidCurrency, http.StatusBadRequest, "invalid_currency", "Invalid currency"},
	{currency.ErrInvalidUserID, http.StatusBadRequest, "invalid_user_id", "Invalid user id"},
	{gacha.ErrNoPrizesAvailable, http.StatusUnprocessableEntity, "no_prizes_available", "No prizes available"},
	{gacha.ErrPoolUnavailable, http.StatusUnprocessableEntity, "pool_unavailable", "Pool unavailable"},
	{gacha.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method", "Invalid payment method"},
	{gacha.ErrInvalidPullType, http.StatusBadRequest, "invalid_pull_type", "Invalid pull type"},
	{gacha.ErrPullInProgress, http.StatusConflict, "pull_in_progress", "Pull in progress"},
	{payment.ErrPayerMismatch, http.StatusConflict, "payer_mismatch", "Payer mismatch"},
	{payment.ErrInvalidOrder, http.StatusBadRequest, "invalid_order", "Invalid order"},
	{payment.ErrOrderNotFound, http.StatusNotFound, "order_not_found", "Order not found"},
	{transaction.ErrInvalidTransaction, http.StatusBadRequest, "invalid_transaction", "Invalid transaction"},
	{transaction.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found", "Transaction not found"},
	{transaction.ErrConcurrencyConflict, http.StatusServiceUnavailable, "concurrency_conflict", "Concurrency conflict"},
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		logger.Warn(ctx, m.logText, map[string]interface{}{
			"error": err.Error(),
			"path":  c.Request().URL.Path,
		})
		resp := ErrorResponse{
			Error:   m.code,
			Message: err.Error(),
		}
		if m.status == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", "1")
		}
		var insufficient *currency.InsufficientFundsError
		if errors.As(err, &insufficient) {
			resp.Details = map[string]string{
				"currency":  insufficient.Currency.String(),
				"required":  strconv.FormatInt(insufficient.Required, 10),
				"available": strconv.FormatInt(insufficient.Available, 10),
			}
		}
		return c.JSON(m.status, resp)
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message := ""
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}
