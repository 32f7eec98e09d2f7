package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	gachaapp "fan-ledger/internal/application/gacha"
)

// GachaHandler ガチャ関連ハンドラー
type GachaHandler struct {
	gachaService *gachaapp.GachaApplicationService
}

// NewGachaHandler 新しいGachaHandlerを作成
func NewGachaHandler(gachaService *gachaapp.GachaApplicationService) *GachaHandler {
	return &GachaHandler{
		gachaService: gachaService,
	}
}

// Pull 抽選ハンドラー
// @Summary ガチャを引く
// @Description 通貨を消費してプールから抽選します。消費と排出は同時に確定し、失敗時はどちらも残りません
// @Tags gacha
// @Accept json
// @Produce json
// @Security Bearer
// @Param pool_id path string true "プールID" example(pool_spring)
// @Param request body PullRequest true "抽選リクエスト"
// @Success 200 {object} PullResponse "抽選成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 409 {object} ErrorResponse "残高不足または抽選処理中"
// @Failure 422 {object} ErrorResponse "プール利用不可"
// @Router /gacha/pools/{pool_id}/pull [post]
func (h *GachaHandler) Pull(c echo.Context) error {
	userID, err := tokenUserID(c)
	if err != nil {
		return err
	}
	poolID := c.Param("pool_id")
	if poolID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "pool_id is required")
	}

	var body PullRequest
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}

	resp, err := h.gachaService.Pull(c.Request().Context(), &gachaapp.PullRequest{
		UserID:        userID,
		PoolID:        poolID,
		PaymentMethod: body.PaymentMethod,
		PullType:      body.PullType,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PullResponse{
		BatchID:       resp.BatchID,
		TransactionID: resp.TransactionID,
		Currency:      resp.Currency,
		Spent:         formatAmount(resp.Spent),
		NewBalance:    formatAmount(resp.NewBalance),
		DrawsSinceHit: resp.DrawsSinceHit,
		Prizes:        resp.Prizes,
		CreatedAt:     resp.CreatedAt.UTC().Format(time.RFC3339),
	})
}
