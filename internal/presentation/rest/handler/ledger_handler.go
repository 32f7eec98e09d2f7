package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	ledgerapp "fan-ledger/internal/application/ledger"
	"fan-ledger/internal/domain/transaction"
)

// LedgerHandler 台帳関連ハンドラー
type LedgerHandler struct {
	ledgerService *ledgerapp.LedgerApplicationService
}

// NewLedgerHandler 新しいLedgerHandlerを作成
func NewLedgerHandler(ledgerService *ledgerapp.LedgerApplicationService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// GetBalance 残高取得ハンドラー（ユーザーAPI用）
// @Summary 残高を取得
// @Description 自分の通貨残高を取得します。台帳に記録のないユーザーは全通貨0です
// @Tags ledger
// @Produce json
// @Security Bearer
// @Success 200 {object} BalanceResponse "残高取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/balance [get]
func (h *LedgerHandler) GetBalance(c echo.Context) error {
	userID, err := tokenUserID(c)
	if err != nil {
		return err
	}
	return h.getBalance(c, userID)
}

// GetBalanceAdmin 残高取得ハンドラー（管理API用）
// @Summary 残高を取得（管理API）
// @Description 指定されたユーザーの通貨残高を取得します
// @Tags admin
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} BalanceResponse "残高取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/balance [get]
func (h *LedgerHandler) GetBalanceAdmin(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return err
	}
	return h.getBalance(c, userID)
}

func (h *LedgerHandler) getBalance(c echo.Context, userID string) error {
	resp, err := h.ledgerService.GetBalance(c.Request().Context(), &ledgerapp.GetBalanceRequest{
		UserID: userID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BalanceResponse{
		UserID:   resp.UserID,
		Balances: balanceItem(resp.Balances),
	})
}

// Credit 通貨付与ハンドラー（管理API用）
// @Summary 通貨を付与（管理API）
// @Description 指定されたユーザーに通貨を付与し、監査ログを1件追記します
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Param request body MutationRequest true "付与リクエスト"
// @Success 200 {object} MutationResponse "付与成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "競合によりリトライ上限に到達"
// @Router /admin/users/{user_id}/credit [post]
func (h *LedgerHandler) Credit(c echo.Context) error {
	userID, body, amount, err := h.bindMutation(c)
	if err != nil {
		return err
	}

	resp, err := h.ledgerService.Credit(c.Request().Context(), &ledgerapp.CreditRequest{
		UserID:      userID,
		Currency:    body.Currency,
		Amount:      amount,
		Kind:        mutationKind(body.Kind),
		Description: body.Description,
		Reference:   body.Reference,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMutationResponse(resp))
}

// Debit 通貨消費ハンドラー（管理API用）
// @Summary 通貨を消費（管理API）
// @Description 指定されたユーザーの通貨を消費します。残高が不足する場合は何も変更しません
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Param request body MutationRequest true "消費リクエスト"
// @Success 200 {object} MutationResponse "消費成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 409 {object} ErrorResponse "残高不足"
// @Router /admin/users/{user_id}/debit [post]
func (h *LedgerHandler) Debit(c echo.Context) error {
	userID, body, amount, err := h.bindMutation(c)
	if err != nil {
		return err
	}

	resp, err := h.ledgerService.Debit(c.Request().Context(), &ledgerapp.DebitRequest{
		UserID:      userID,
		Currency:    body.Currency,
		Amount:      amount,
		Kind:        mutationKind(body.Kind),
		Description: body.Description,
		Reference:   body.Reference,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMutationResponse(resp))
}

// Audit 台帳監査ハンドラー（管理API用）
// @Summary 残高と台帳を突き合わせ（管理API）
// @Description 通貨ごとに残高と監査ログの合計が一致するかを確認します
// @Tags admin
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} AuditResponse "監査成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/audit [get]
func (h *LedgerHandler) Audit(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return err
	}

	resp, err := h.ledgerService.Audit(c.Request().Context(), &ledgerapp.AuditRequest{UserID: userID})
	if err != nil {
		return err
	}

	items := make([]CurrencyAuditItem, len(resp.Currencies))
	for i, r := range resp.Currencies {
		items[i] = CurrencyAuditItem{
			Currency:   r.Currency,
			Balance:    formatAmount(r.Balance),
			LedgerSum:  formatAmount(r.LedgerSum),
			Consistent: r.Consistent,
		}
	}
	return c.JSON(http.StatusOK, AuditResponse{
		UserID:     resp.UserID,
		Consistent: resp.Consistent,
		Currencies: items,
	})
}

func (h *LedgerHandler) bindMutation(c echo.Context) (string, *MutationRequest, int64, error) {
	userID, err := pathUserID(c)
	if err != nil {
		return "", nil, 0, err
	}
	var body MutationRequest
	if err := bindAndValidate(c, &body); err != nil {
		return "", nil, 0, err
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		return "", nil, 0, err
	}
	return userID, &body, amount, nil
}

func mutationKind(kind string) string {
	if kind == "" {
		return transaction.KindAdjustment.String()
	}
	return kind
}

func toMutationResponse(resp *ledgerapp.MutationResponse) MutationResponse {
	return MutationResponse{
		TransactionID: resp.TransactionID,
		Currency:      resp.Currency,
		Amount:        formatAmount(resp.Amount),
		BalanceAfter:  formatAmount(resp.BalanceAfter),
		Balances:      balanceItem(resp.Balances),
	}
}
