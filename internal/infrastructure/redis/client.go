package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"fan-ledger/internal/infrastructure/config"
)

// NewClient Redisクライアントを作成し、疎通を確認する
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
