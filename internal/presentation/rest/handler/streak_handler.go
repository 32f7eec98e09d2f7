package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	streakapp "fan-ledger/internal/application/streak"
	"fan-ledger/internal/domain/transaction"
)

// StreakHandler 連続日数関連ハンドラー
type StreakHandler struct {
	streakService *streakapp.StreakApplicationService
}

// NewStreakHandler 新しいStreakHandlerを作成
func NewStreakHandler(streakService *streakapp.StreakApplicationService) *StreakHandler {
	return &StreakHandler{
		streakService: streakService,
	}
}

// ClaimDailyLogin ログインボーナス受け取りハンドラー
// @Summary ログインボーナスを受け取る
// @Description 今日の活動を記録し、その日の初回のみ連続日数に応じたログインボーナスを付与します
// @Tags streak
// @Produce json
// @Security Bearer
// @Success 200 {object} RewardResponse "受け取り成功（既に受け取り済みの場合はgrantedなし）"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/streak/daily-login [post]
func (h *StreakHandler) ClaimDailyLogin(c echo.Context) error {
	userID, err := tokenUserID(c)
	if err != nil {
		return err
	}

	resp, err := h.streakService.ClaimDailyLogin(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRewardResponse(resp))
}

// GrantMissionReward ミッション報酬付与ハンドラー（管理API用）
// @Summary ミッション報酬を付与（管理API）
// @Description ミッション達成で連続日数を更新し、更新後の日数に応じた倍率で報酬を付与します
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Param request body MissionRewardRequest true "ミッション報酬リクエスト"
// @Success 200 {object} RewardResponse "付与成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/mission-reward [post]
func (h *StreakHandler) GrantMissionReward(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return err
	}
	var body MissionRewardRequest
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	amount, err := parseAmount(body.BaseAmount)
	if err != nil {
		return err
	}

	resp, err := h.streakService.GrantMissionReward(c.Request().Context(), &streakapp.MissionRewardRequest{
		UserID:     userID,
		MissionID:  body.MissionID,
		BaseAmount: amount,
		Currency:   body.Currency,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRewardResponse(resp))
}

// ApplyStreakBonus 連続日数ボーナス付与ハンドラー（管理API用）
// @Summary 連続日数ボーナスを付与（管理API）
// @Description 指定した連続日数で報酬を付与します。7日目は倍率とボーナスが別々の監査ログになります
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Param request body StreakBonusRequest true "連続日数ボーナスリクエスト"
// @Success 200 {object} StreakBonusResult "付与成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/streak-bonus [post]
func (h *StreakHandler) ApplyStreakBonus(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return err
	}
	var body StreakBonusRequest
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	amount, err := parseAmount(body.BaseAmount)
	if err != nil {
		return err
	}
	kind := body.Kind
	if kind == "" {
		kind = transaction.KindMissionReward.String()
	}

	resp, err := h.streakService.ApplyStreakBonus(c.Request().Context(), &streakapp.ApplyBonusRequest{
		UserID:      userID,
		StreakCount: body.StreakCount,
		BaseAmount:  amount,
		Currency:    body.Currency,
		Kind:        kind,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toStreakBonusResult(resp))
}

func toRewardResponse(resp *streakapp.RewardResponse) RewardResponse {
	out := RewardResponse{
		StreakCount: resp.StreakCount,
		Advanced:    resp.Advanced,
	}
	if resp.Granted != nil {
		granted := toStreakBonusResult(resp.Granted)
		out.Granted = &granted
	}
	return out
}

func toStreakBonusResult(resp *streakapp.ApplyBonusResponse) StreakBonusResult {
	items := make([]GrantedItem, len(resp.Transactions))
	for i, t := range resp.Transactions {
		items[i] = GrantedItem{
			TransactionID: t.TransactionID,
			Kind:          t.Kind,
			Amount:        formatAmount(t.Amount),
			BalanceAfter:  formatAmount(t.BalanceAfter),
		}
	}
	return StreakBonusResult{
		StreakCount:  resp.StreakCount,
		Currency:     resp.Currency,
		Multiplied:   formatAmount(resp.Multiplied),
		Bonus:        formatAmount(resp.Bonus),
		TotalGranted: formatAmount(resp.TotalGranted),
		Transactions: items,
	}
}
