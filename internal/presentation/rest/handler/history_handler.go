package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	historyapp "fan-ledger/internal/application/history"
)

// HistoryHandler 履歴関連ハンドラー
type HistoryHandler struct {
	historyService *historyapp.HistoryApplicationService
}

// NewHistoryHandler 新しいHistoryHandlerを作成
func NewHistoryHandler(historyService *historyapp.HistoryApplicationService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// GetTransactionHistory トランザクション履歴取得ハンドラー（ユーザーAPI用）
// @Summary トランザクション履歴を取得
// @Description 自分の監査ログを新しい順に取得します。ページネーションとフィルタリングに対応しています
// @Tags history
// @Produce json
// @Security Bearer
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50) example(50)
// @Param offset query int false "オフセット（デフォルト: 0)" default(0) example(0)
// @Param currency query string false "通貨でフィルタ（diamonds/tickets/points）" example(diamonds)
// @Param kind query string false "分類でフィルタ（gacha_spend/payment_credit など）" example(gacha_spend)
// @Success 200 {object} TransactionHistoryResponse "履歴取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/transactions [get]
func (h *HistoryHandler) GetTransactionHistory(c echo.Context) error {
	userID, err := tokenUserID(c)
	if err != nil {
		return err
	}
	return h.getTransactionHistory(c, userID)
}

// GetTransactionHistoryAdmin トランザクション履歴取得ハンドラー（管理API用）
// @Summary トランザクション履歴を取得（管理API）
// @Description 指定されたユーザーの監査ログを新しい順に取得します
// @Tags admin
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50) example(50)
// @Param offset query int false "オフセット（デフォルト: 0)" default(0) example(0)
// @Param currency query string false "通貨でフィルタ" example(diamonds)
// @Param kind query string false "分類でフィルタ" example(gacha_spend)
// @Success 200 {object} TransactionHistoryResponse "履歴取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/transactions [get]
func (h *HistoryHandler) GetTransactionHistoryAdmin(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return err
	}
	return h.getTransactionHistory(c, userID)
}

func (h *HistoryHandler) getTransactionHistory(c echo.Context, userID string) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	resp, err := h.historyService.GetTransactionHistory(c.Request().Context(), &historyapp.GetTransactionHistoryRequest{
		UserID:   userID,
		Limit:    limit,
		Offset:   offset,
		Currency: c.QueryParam("currency"),
		Kind:     c.QueryParam("kind"),
	})
	if err != nil {
		return err
	}

	transactions := make([]TransactionItem, len(resp.Transactions))
	for i, txn := range resp.Transactions {
		transactions[i] = TransactionItem{
			TransactionID: txn.TransactionID(),
			Kind:          txn.Kind().String(),
			Currency:      txn.CurrencyType().String(),
			Amount:        formatAmount(txn.Amount()),
			BalanceAfter:  formatAmount(txn.BalanceAfter()),
			Description:   txn.Description(),
			Reference:     txn.Reference(),
			Status:        txn.Status().String(),
			CreatedAt:     txn.CreatedAt().UTC().Format(time.RFC3339),
		}
	}

	return c.JSON(http.StatusOK, TransactionHistoryResponse{
		Transactions: transactions,
		Total:        resp.Total,
		Limit:        resp.Limit,
		Offset:       resp.Offset,
	})
}

// GetGachaHistory 抽選履歴取得ハンドラー
// @Summary 抽選履歴を取得
// @Description 自分の抽選バッチを新しい順に取得します
// @Tags history
// @Produce json
// @Security Bearer
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット（デフォルト: 0)" default(0)
// @Success 200 {object} GachaHistoryResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/gacha/history [get]
func (h *HistoryHandler) GetGachaHistory(c echo.Context) error {
	userID, err := tokenUserID(c)
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	resp, err := h.historyService.GetGachaHistory(c.Request().Context(), &historyapp.PageRequest{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}

	batches := make([]DrawBatchItem, len(resp.Batches))
	for i, b := range resp.Batches {
		draws := make([]DrawItem, len(b.Draws))
		for j, d := range b.Draws {
			draws[j] = DrawItem{
				Index:      d.Index,
				PrizeID:    d.PrizeID,
				Rarity:     d.Rarity.String(),
				Duplicate:  d.Duplicate,
				Guaranteed: d.Guaranteed,
				Pity:       d.Pity,
			}
		}
		batches[i] = DrawBatchItem{
			BatchID:       b.BatchID,
			PoolID:        b.PoolID,
			PullType:      b.PullType.String(),
			Currency:      b.Currency.String(),
			AmountSpent:   formatAmount(b.AmountSpent),
			TransactionID: b.TransactionID,
			Draws:         draws,
			CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	return c.JSON(http.StatusOK, GachaHistoryResponse{
		Batches: batches,
		Limit:   resp.Limit,
		Offset:  resp.Offset,
	})
}

// GetInventory 所持品取得ハンドラー
// @Summary 所持品を取得
// @Description ガチャで獲得した景品を取得します。ユニーク景品の重複は含まれません
// @Tags history
// @Produce json
// @Security Bearer
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット（デフォルト: 0)" default(0)
// @Success 200 {object} InventoryResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/inventory [get]
func (h *HistoryHandler) GetInventory(c echo.Context) error {
	userID, err := tokenUserID(c)
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	resp, err := h.historyService.GetInventory(c.Request().Context(), &historyapp.PageRequest{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}

	items := make([]InventoryItem, len(resp.Items))
	for i, it := range resp.Items {
		items[i] = InventoryItem{
			PrizeID:    it.PrizeID,
			BatchID:    it.BatchID,
			Unique:     it.Unique,
			AcquiredAt: it.AcquiredAt.UTC().Format(time.RFC3339),
		}
	}

	return c.JSON(http.StatusOK, InventoryResponse{
		Items:  items,
		Limit:  resp.Limit,
		Offset: resp.Offset,
	})
}
