package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	paymentapp "fan-ledger/internal/application/payment"
)

// PaymentHandler 決済関連ハンドラー
type PaymentHandler struct {
	paymentService *paymentapp.PaymentApplicationService
}

// NewPaymentHandler 新しいPaymentHandlerを作成
func NewPaymentHandler(paymentService *paymentapp.PaymentApplicationService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// HandleWebhook 決済完了通知ハンドラー
// @Summary 決済完了通知を受け取る
// @Description 決済金額をダイヤに換算して付与します。再送された通知は付与せず、最初の結果を返します
// @Tags payment
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body PaymentWebhookRequest true "決済完了通知"
// @Success 200 {object} PaymentWebhookResponse "処理成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 409 {object} ErrorResponse "支払者不一致"
// @Router /webhooks/payment [post]
func (h *PaymentHandler) HandleWebhook(c echo.Context) error {
	var body PaymentWebhookRequest
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}

	resp, err := h.paymentService.HandlePaymentConfirmed(c.Request().Context(), &paymentapp.PaymentConfirmedRequest{
		OrderID:     body.OrderID,
		PayerID:     body.PayerID,
		GrossAmount: body.GrossAmount,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PaymentWebhookResponse{
		OrderID:       resp.OrderID,
		Credited:      resp.Credited,
		Amount:        formatAmount(resp.Amount),
		TransactionID: resp.TransactionID,
	})
}

// GetOrder 注文状態取得ハンドラー（管理API用）
// @Summary 注文状態を取得（管理API）
// @Description 決済注文の付与状態を取得します
// @Tags admin
// @Produce json
// @Param order_id path string true "注文ID" example(ord_20260301_0001)
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} OrderResponse "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "注文なし"
// @Router /admin/orders/{order_id} [get]
func (h *PaymentHandler) GetOrder(c echo.Context) error {
	orderID := c.Param("order_id")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id is required")
	}

	resp, err := h.paymentService.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return err
	}

	out := OrderResponse{
		OrderID:        resp.OrderID,
		PayerID:        resp.PayerID,
		GrossAmount:    resp.GrossAmount,
		Credited:       resp.Credited,
		CreditedAmount: formatAmount(resp.CreditedAmount),
		TransactionID:  resp.TransactionID,
		CreatedAt:      resp.CreatedAt.UTC().Format(time.RFC3339),
	}
	if resp.CreditedAt != nil {
		at := resp.CreditedAt.UTC().Format(time.RFC3339)
		out.CreditedAt = &at
	}
	return c.JSON(http.StatusOK, out)
}
