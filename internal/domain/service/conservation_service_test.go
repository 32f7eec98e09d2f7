package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/transaction"
)

// MockBalanceRepository モック残高リポジトリ
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) FindByUserID(ctx context.Context, userID string) (*currency.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*currency.Balance), args.Error(1)
}

func (m *MockBalanceRepository) FindByUserIDForUpdate(ctx context.Context, userID string) (*currency.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*currency.Balance), args.Error(1)
}

func (m *MockBalanceRepository) Save(ctx context.Context, b *currency.Balance) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

// MockTransactionRepository モックトランザクションリポジトリ
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *transaction.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumByUserID(ctx context.Context, userID string) (map[currency.CurrencyType]int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[currency.CurrencyType]int64), args.Error(1)
}

func TestConservationService_Audit(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		setupMocks     func(*MockBalanceRepository, *MockTransactionRepository)
		wantConsistent bool
		wantError      bool
	}{
		{
			name:   "正常系: 残高と合計が一致",
			userID: "user123",
			setupMocks: func(br *MockBalanceRepository, tr *MockTransactionRepository) {
				br.On("FindByUserID", mock.Anything, "user123").Return(currency.MustNewBalance("user123", 700, 5, 0, 3), nil)
				tr.On("SumByUserID", mock.Anything, "user123").Return(map[currency.CurrencyType]int64{
					currency.CurrencyTypeDiamonds: 700,
					currency.CurrencyTypeTickets:  5,
				}, nil)
			},
			wantConsistent: true,
		},
		{
			name:   "正常系: 残高未作成はゼロ扱い",
			userID: "user123",
			setupMocks: func(br *MockBalanceRepository, tr *MockTransactionRepository) {
				br.On("FindByUserID", mock.Anything, "user123").Return(nil, currency.ErrBalanceNotFound)
				tr.On("SumByUserID", mock.Anything, "user123").Return(map[currency.CurrencyType]int64{}, nil)
			},
			wantConsistent: true,
		},
		{
			name:   "異常系: 不一致を検出",
			userID: "user123",
			setupMocks: func(br *MockBalanceRepository, tr *MockTransactionRepository) {
				br.On("FindByUserID", mock.Anything, "user123").Return(currency.MustNewBalance("user123", 800, 0, 0, 1), nil)
				tr.On("SumByUserID", mock.Anything, "user123").Return(map[currency.CurrencyType]int64{
					currency.CurrencyTypeDiamonds: 700,
				}, nil)
			},
			wantConsistent: false,
		},
		{
			name:   "異常系: 合計取得エラー",
			userID: "user123",
			setupMocks: func(br *MockBalanceRepository, tr *MockTransactionRepository) {
				br.On("FindByUserID", mock.Anything, "user123").Return(currency.MustNewBalance("user123", 0, 0, 0, 0), nil)
				tr.On("SumByUserID", mock.Anything, "user123").Return(nil, errors.New("database error"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balanceRepo := new(MockBalanceRepository)
			transactionRepo := new(MockTransactionRepository)
			tt.setupMocks(balanceRepo, transactionRepo)

			service := NewConservationService(balanceRepo, transactionRepo)
			got, err := service.Audit(context.Background(), tt.userID)

			if tt.wantError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, got, len(currency.AllCurrencyTypes))
				assert.Equal(t, tt.wantConsistent, IsConsistent(got))
			}

			balanceRepo.AssertExpectations(t)
			transactionRepo.AssertExpectations(t)
		})
	}
}
