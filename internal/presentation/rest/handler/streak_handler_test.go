package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restmiddleware "fan-ledger/internal/presentation/rest/middleware"
)

func TestStreakHandler_ClaimDailyLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/me/streak/daily-login", "user123", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[RewardResponse](t, rec)
	assert.Equal(t, 1, first.StreakCount)
	assert.True(t, first.Advanced)
	require.NotNil(t, first.Granted)
	assert.Equal(t, "points", first.Granted.Currency)
	assert.Equal(t, "10", first.Granted.TotalGranted)
	require.Len(t, first.Granted.Transactions, 1)
	assert.Equal(t, "login_bonus", first.Granted.Transactions[0].Kind)

	// 同じ日の2回目は付与しない
	rec = f.do(t, http.MethodPost, "/me/streak/daily-login", "user123", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[RewardResponse](t, rec)
	assert.Equal(t, 1, second.StreakCount)
	assert.False(t, second.Advanced)
	assert.Nil(t, second.Granted)

	balance := decode[BalanceResponse](t, f.do(t, http.MethodGet, "/me/balance", "user123", nil))
	assert.Equal(t, "10", balance.Balances.Points)

	rec = f.do(t, http.MethodPost, "/me/streak/daily-login", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreakHandler_GrantMissionReward(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		expectedError  string
		expectedTotal  string
	}{
		{
			name:           "正常系: ミッション報酬",
			body:           MissionRewardRequest{MissionID: "daily_clear_3", BaseAmount: "50", Currency: "diamonds"},
			expectedStatus: http.StatusOK,
			expectedTotal:  "50",
		},
		{
			name:           "異常系: 金額0",
			body:           MissionRewardRequest{MissionID: "daily_clear_3", BaseAmount: "0", Currency: "diamonds"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_amount",
		},
		{
			name:           "異常系: 通貨種別不正",
			body:           MissionRewardRequest{MissionID: "daily_clear_3", BaseAmount: "50", Currency: "gold"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_currency",
		},
		{
			name:           "異常系: ミッションID未指定",
			body:           MissionRewardRequest{BaseAmount: "50", Currency: "diamonds"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Bad Request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(t, http.MethodPost, "/admin/users/user123/mission-reward", "", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())

			if tt.expectedStatus != http.StatusOK {
				resp := decode[restmiddleware.ErrorResponse](t, rec)
				assert.Equal(t, tt.expectedError, resp.Error)
				return
			}

			resp := decode[RewardResponse](t, rec)
			assert.Equal(t, 1, resp.StreakCount)
			require.NotNil(t, resp.Granted)
			assert.Equal(t, tt.expectedTotal, resp.Granted.TotalGranted)
			require.Len(t, resp.Granted.Transactions, 1)
			assert.Equal(t, "mission_reward", resp.Granted.Transactions[0].Kind)
		})
	}
}

func TestStreakHandler_ApplyStreakBonus(t *testing.T) {
	tests := []struct {
		name               string
		body               StreakBonusRequest
		expectedStatus     int
		expectedError      string
		expectedStreak     int
		expectedMultiplied string
		expectedBonus      string
		expectedTotal      string
		expectedTxCount    int
	}{
		{
			name:               "正常系: 3日目は等倍",
			body:               StreakBonusRequest{StreakCount: 3, BaseAmount: "50", Currency: "diamonds"},
			expectedStatus:     http.StatusOK,
			expectedStreak:     3,
			expectedMultiplied: "50",
			expectedBonus:      "0",
			expectedTotal:      "50",
			expectedTxCount:    1,
		},
		{
			name:               "正常系: 7日目は2倍+100",
			body:               StreakBonusRequest{StreakCount: 7, BaseAmount: "50", Currency: "diamonds"},
			expectedStatus:     http.StatusOK,
			expectedStreak:     7,
			expectedMultiplied: "100",
			expectedBonus:      "100",
			expectedTotal:      "200",
			expectedTxCount:    2,
		},
		{
			name:               "正常系: 7日を超える日数は7日目として扱う",
			body:               StreakBonusRequest{StreakCount: 12, BaseAmount: "50", Currency: "diamonds"},
			expectedStatus:     http.StatusOK,
			expectedStreak:     7,
			expectedMultiplied: "100",
			expectedBonus:      "100",
			expectedTotal:      "200",
			expectedTxCount:    2,
		},
		{
			name:               "正常系: 0日は1日目として扱う",
			body:               StreakBonusRequest{StreakCount: 0, BaseAmount: "50", Currency: "diamonds"},
			expectedStatus:     http.StatusOK,
			expectedStreak:     1,
			expectedMultiplied: "50",
			expectedBonus:      "0",
			expectedTotal:      "50",
			expectedTxCount:    1,
		},
		{
			name:           "異常系: 負の日数",
			body:           StreakBonusRequest{StreakCount: -1, BaseAmount: "50", Currency: "diamonds"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Bad Request",
		},
		{
			name:           "異常系: 分類不正",
			body:           StreakBonusRequest{StreakCount: 7, BaseAmount: "50", Currency: "diamonds", Kind: "bogus"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_transaction",
		},
		{
			name:           "異常系: 消費の分類は付与に使えない",
			body:           StreakBonusRequest{StreakCount: 7, BaseAmount: "50", Currency: "diamonds", Kind: "gacha_spend"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(t, http.MethodPost, "/admin/users/user123/streak-bonus", "", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())

			if tt.expectedStatus != http.StatusOK {
				resp := decode[restmiddleware.ErrorResponse](t, rec)
				assert.Equal(t, tt.expectedError, resp.Error)
				return
			}

			resp := decode[StreakBonusResult](t, rec)
			assert.Equal(t, tt.expectedStreak, resp.StreakCount)
			assert.Equal(t, tt.expectedMultiplied, resp.Multiplied)
			assert.Equal(t, tt.expectedBonus, resp.Bonus)
			assert.Equal(t, tt.expectedTotal, resp.TotalGranted)
			assert.Len(t, resp.Transactions, tt.expectedTxCount)

			balance := decode[BalanceResponse](t, f.do(t, http.MethodGet, "/admin/users/user123/balance", "", nil))
			assert.Equal(t, tt.expectedTotal, balance.Balances.Diamonds)
		})
	}
}
