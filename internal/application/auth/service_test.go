package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"fan-ledger/internal/infrastructure/clock"
	"fan-ledger/internal/infrastructure/config"
	"fan-ledger/internal/infrastructure/idgen"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(cfg *config.JWTConfig, at time.Time) *AuthApplicationService {
	logger := otelinfra.NewLogger(otel.Tracer("test"))
	return NewAuthApplicationService(cfg, idgen.NewUUIDGenerator(), clock.FixedClock{T: at}, logger)
}

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:     "test-secret-key",
		Issuer:     "test-issuer",
		Expiration: 24 * time.Hour,
	}
}

func TestAuthApplicationService_GenerateToken(t *testing.T) {
	tests := []struct {
		name      string
		req       *GenerateTokenRequest
		wantError bool
		checkFunc func(*testing.T, *GenerateTokenResponse, error)
	}{
		{
			name:      "正常系: トークンを生成",
			req:       &GenerateTokenRequest{UserID: "user123"},
			wantError: false,
			checkFunc: func(t *testing.T, resp *GenerateTokenResponse, err error) {
				require.NoError(t, err)
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, int64(86400), resp.ExpiresIn) // 24時間 = 86400秒
				assert.Equal(t, "Bearer", resp.TokenType)
				assert.Equal(t, testNow.Add(24*time.Hour), resp.ExpiresAt)
			},
		},
		{
			name:      "異常系: ユーザーIDが空",
			req:       &GenerateTokenRequest{UserID: ""},
			wantError: true,
			checkFunc: func(t *testing.T, resp *GenerateTokenResponse, err error) {
				assert.Contains(t, err.Error(), "user_id is required")
			},
		},
		{
			name:      "異常系: ユーザーIDの形式が不正",
			req:       &GenerateTokenRequest{UserID: "user 123"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(testJWTConfig(), testNow)

			got, err := svc.GenerateToken(context.Background(), tt.req)
			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, got)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, got, err)
			}
		})
	}
}

func TestAuthApplicationService_ParseToken(t *testing.T) {
	issued, err := newService(testJWTConfig(), testNow).GenerateToken(context.Background(), &GenerateTokenRequest{UserID: "user123"})
	require.NoError(t, err)

	otherSecret := testJWTConfig()
	otherSecret.Secret = "another-secret"
	otherIssuer := testJWTConfig()
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name      string
		svc       *AuthApplicationService
		token     string
		wantUser  string
		wantError bool
	}{
		{
			name:     "正常系: 有効なトークン",
			svc:      newService(testJWTConfig(), testNow.Add(time.Hour)),
			token:    issued.Token,
			wantUser: "user123",
		},
		{
			name:      "異常系: 期限切れ",
			svc:       newService(testJWTConfig(), testNow.Add(25*time.Hour)),
			token:     issued.Token,
			wantError: true,
		},
		{
			name:      "異常系: 署名鍵が異なる",
			svc:       newService(otherSecret, testNow),
			token:     issued.Token,
			wantError: true,
		},
		{
			name:      "異常系: 発行者が異なる",
			svc:       newService(otherIssuer, testNow),
			token:     issued.Token,
			wantError: true,
		},
		{
			name:      "異常系: 形式不正",
			svc:       newService(testJWTConfig(), testNow),
			token:     "not-a-jwt",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := tt.svc.ParseToken(tt.token)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, userID)
		})
	}
}
