package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/gacha"
)

const (
	pullLockKeyPrefix = "gacha:pull:"
	defaultLockTTL    = 10 * time.Second
)

// ErrLockNotHeld ロックが既に失効しているか、別の保持者のもの
var ErrLockNotHeld = errors.New("lock not held")

// unlockScript 保持者のトークンが一致する場合のみ削除する
var unlockScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// PullLocker Redisによるユーザー単位の抽選ロック
type PullLocker struct {
	client goredis.Cmdable
	ttl    time.Duration
	tracer trace.Tracer
}

// NewPullLocker 新しいPullLockerを作成
func NewPullLocker(client goredis.Cmdable, ttl time.Duration) *PullLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &PullLocker{
		client: client,
		ttl:    ttl,
		tracer: otel.Tracer("pull-locker"),
	}
}

// Acquire SET NX PXでロックを取得。取得できない場合はErrPullInProgressを返す
func (l *PullLocker) Acquire(ctx context.Context, userID string) (func(context.Context) error, error) {
	ctx, span := l.tracer.Start(ctx, "PullLocker.Acquire")
	defer span.End()

	key := pullLockKeyPrefix + userID
	token := uuid.NewString()
	span.SetAttributes(attribute.String("lock.key", key))

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to acquire pull lock: %w", err)
	}
	if !ok {
		span.SetStatus(otelcodes.Error, "lock held")
		return nil, gacha.ErrPullInProgress
	}

	span.SetStatus(otelcodes.Ok, "lock acquired")
	release := func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("failed to release pull lock: %w", err)
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
	return release, nil
}

// NoopPullLocker Redis無効時のロック（常に取得できる）
type NoopPullLocker struct{}

// Acquire 何もしない
func (NoopPullLocker) Acquire(ctx context.Context, userID string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
