package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restmiddleware "fan-ledger/internal/presentation/rest/middleware"
)

func TestLedgerHandler_GetBalance(t *testing.T) {
	tests := []struct {
		name             string
		userID           string
		seed             string
		expectedStatus   int
		expectedDiamonds string
	}{
		{
			name:             "正常系: 残高取得成功",
			userID:           "user123",
			seed:             "3000",
			expectedStatus:   http.StatusOK,
			expectedDiamonds: "3000",
		},
		{
			name:             "正常系: 台帳に記録のないユーザーは0",
			userID:           "newcomer",
			expectedStatus:   http.StatusOK,
			expectedDiamonds: "0",
		},
		{
			name:           "異常系: user_idがトークンにない",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.seed != "" {
				f.credit(t, tt.userID, "diamonds", tt.seed)
			}

			rec := f.do(t, http.MethodGet, "/me/balance", tt.userID, nil)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusOK {
				resp := decode[BalanceResponse](t, rec)
				assert.Equal(t, tt.userID, resp.UserID)
				assert.Equal(t, tt.expectedDiamonds, resp.Balances.Diamonds)
				assert.Equal(t, "0", resp.Balances.Tickets)
				assert.Equal(t, "0", resp.Balances.Points)
			}
		})
	}
}

func TestLedgerHandler_CreditAndDebit(t *testing.T) {
	tests := []struct {
		name            string
		path            string
		body            interface{}
		expectedStatus  int
		expectedError   string
		expectedAmount  string
		expectedBalance string
	}{
		{
			name:            "正常系: 付与",
			path:            "/admin/users/user123/credit",
			body:            MutationRequest{Currency: "diamonds", Amount: "500", Kind: "gift"},
			expectedStatus:  http.StatusOK,
			expectedAmount:  "500",
			expectedBalance: "3500",
		},
		{
			name:            "正常系: 消費",
			path:            "/admin/users/user123/debit",
			body:            MutationRequest{Currency: "diamonds", Amount: "300"},
			expectedStatus:  http.StatusOK,
			expectedAmount:  "-300",
			expectedBalance: "2700",
		},
		{
			name:            "正常系: 残高ちょうどの消費",
			path:            "/admin/users/user123/debit",
			body:            MutationRequest{Currency: "diamonds", Amount: "3000"},
			expectedStatus:  http.StatusOK,
			expectedAmount:  "-3000",
			expectedBalance: "0",
		},
		{
			name:           "異常系: 残高不足",
			path:           "/admin/users/user123/debit",
			body:           MutationRequest{Currency: "diamonds", Amount: "3001"},
			expectedStatus: http.StatusConflict,
			expectedError:  "insufficient_funds",
		},
		{
			name:           "異常系: 金額0",
			path:           "/admin/users/user123/credit",
			body:           MutationRequest{Currency: "diamonds", Amount: "0"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_amount",
		},
		{
			name:           "異常系: 負の金額",
			path:           "/admin/users/user123/debit",
			body:           MutationRequest{Currency: "diamonds", Amount: "-5"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_amount",
		},
		{
			name:           "異常系: 数値でない金額",
			path:           "/admin/users/user123/credit",
			body:           MutationRequest{Currency: "diamonds", Amount: "abc"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Bad Request",
		},
		{
			name:           "異常系: 未対応の通貨",
			path:           "/admin/users/user123/credit",
			body:           MutationRequest{Currency: "gold", Amount: "10"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_currency",
		},
		{
			name:           "異常系: 未対応の分類",
			path:           "/admin/users/user123/credit",
			body:           MutationRequest{Currency: "diamonds", Amount: "10", Kind: "lottery"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_transaction",
		},
		{
			name:           "異常系: 不正なJSON",
			path:           "/admin/users/user123/credit",
			body:           "not-an-object",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Bad Request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.credit(t, "user123", "diamonds", "3000")

			rec := f.do(t, http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())

			if tt.expectedStatus != http.StatusOK {
				resp := decode[restmiddleware.ErrorResponse](t, rec)
				assert.Equal(t, tt.expectedError, resp.Error)

				// 失敗時は残高が変わらない
				balance := decode[BalanceResponse](t, f.do(t, http.MethodGet, "/admin/users/user123/balance", "", nil))
				assert.Equal(t, "3000", balance.Balances.Diamonds)
				return
			}

			resp := decode[MutationResponse](t, rec)
			assert.NotEmpty(t, resp.TransactionID)
			assert.Equal(t, "diamonds", resp.Currency)
			assert.Equal(t, tt.expectedAmount, resp.Amount)
			assert.Equal(t, tt.expectedBalance, resp.BalanceAfter)
			assert.Equal(t, tt.expectedBalance, resp.Balances.Diamonds)
		})
	}
}

func TestLedgerHandler_InsufficientFundsDetails(t *testing.T) {
	f := newFixture(t)
	f.credit(t, "user123", "diamonds", "2000")

	rec := f.do(t, http.MethodPost, "/admin/users/user123/debit", "", MutationRequest{Currency: "diamonds", Amount: "3000"})
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[restmiddleware.ErrorResponse](t, rec)
	assert.Equal(t, "3000", resp.Details["required"])
	assert.Equal(t, "2000", resp.Details["available"])
}

func TestLedgerHandler_Audit(t *testing.T) {
	f := newFixture(t)
	f.credit(t, "user123", "diamonds", "3000")
	f.credit(t, "user123", "tickets", "5")
	rec := f.do(t, http.MethodPost, "/admin/users/user123/debit", "", MutationRequest{Currency: "diamonds", Amount: "300"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/users/user123/audit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[AuditResponse](t, rec)
	assert.Equal(t, "user123", resp.UserID)
	assert.True(t, resp.Consistent)
	for _, c := range resp.Currencies {
		assert.True(t, c.Consistent, c.Currency)
		assert.Equal(t, c.Balance, c.LedgerSum, c.Currency)
		if c.Currency == "diamonds" {
			assert.Equal(t, "2700", c.Balance)
		}
	}
}
