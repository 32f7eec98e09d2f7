package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restmiddleware "fan-ledger/internal/presentation/rest/middleware"
)

func TestHistoryHandler_GetTransactionHistory(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedError  string
		expectedCount  int
	}{
		{
			name:           "正常系: フィルタなし",
			query:          "",
			expectedStatus: http.StatusOK,
			expectedCount:  4,
		},
		{
			name:           "正常系: 通貨でフィルタ",
			query:          "?currency=tickets",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "正常系: 分類でフィルタ",
			query:          "?kind=gacha_spend",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "正常系: 件数指定",
			query:          "?limit=2",
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:           "正常系: オフセット指定",
			query:          "?offset=3",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "異常系: 件数が上限超過",
			query:          "?limit=101",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Bad Request",
		},
		{
			name:           "異常系: 負のオフセット",
			query:          "?offset=-1",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Bad Request",
		},
		{
			name:           "異常系: 通貨種別不正",
			query:          "?currency=gold",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_currency",
		},
		{
			name:           "異常系: 分類不正",
			query:          "?kind=bogus",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_transaction",
		},
	}

	f := newFixture(t)
	f.credit(t, "user123", "diamonds", "3500")
	f.credit(t, "user123", "tickets", "5")
	rec := f.do(t, http.MethodPost, "/admin/users/user123/debit", "", MutationRequest{
		Currency: "diamonds", Amount: "100", Kind: "adjustment",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/gacha/pools/pool_spring/pull", "user123",
		PullRequest{PaymentMethod: "diamonds", PullType: "single"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/me/transactions"+tt.query, "user123", nil)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())

			if tt.expectedStatus != http.StatusOK {
				resp := decode[restmiddleware.ErrorResponse](t, rec)
				assert.Equal(t, tt.expectedError, resp.Error)
				return
			}

			resp := decode[TransactionHistoryResponse](t, rec)
			assert.Len(t, resp.Transactions, tt.expectedCount)
			for _, txn := range resp.Transactions {
				assert.Equal(t, "completed", txn.Status)
				assert.NotEmpty(t, txn.TransactionID)
			}
		})
	}
}

func TestHistoryHandler_GetTransactionHistoryAdmin(t *testing.T) {
	f := newFixture(t)
	f.credit(t, "user123", "points", "40")

	rec := f.do(t, http.MethodGet, "/admin/users/user123/transactions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[TransactionHistoryResponse](t, rec)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, "points", resp.Transactions[0].Currency)
	assert.Equal(t, "40", resp.Transactions[0].Amount)
	assert.Equal(t, "40", resp.Transactions[0].BalanceAfter)
	assert.Equal(t, 50, resp.Limit)

	// 他のユーザーの履歴は含まれない
	rec = f.do(t, http.MethodGet, "/admin/users/user999/transactions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[TransactionHistoryResponse](t, rec).Transactions)
}

func TestHistoryHandler_GachaHistoryAndInventory(t *testing.T) {
	f := newFixture(t)
	f.credit(t, "user123", "diamonds", "600")
	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/gacha/pools/pool_spring/pull", "user123",
			PullRequest{PaymentMethod: "diamonds", PullType: "single"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodGet, "/me/gacha/history?limit=1", "user123", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[GachaHistoryResponse](t, rec)
	require.Len(t, history.Batches, 1)
	assert.Equal(t, 1, history.Limit)
	assert.Equal(t, "single", history.Batches[0].PullType)
	assert.Equal(t, "300", history.Batches[0].AmountSpent)
	require.Len(t, history.Batches[0].Draws, 1)

	rec = f.do(t, http.MethodGet, "/me/inventory", "user123", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inventory := decode[InventoryResponse](t, rec)
	assert.NotEmpty(t, inventory.Items)
	assert.LessOrEqual(t, len(inventory.Items), 2)

	rec = f.do(t, http.MethodGet, "/me/inventory?limit=0", "user123", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/me/gacha/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
