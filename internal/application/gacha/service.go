package gacha

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/application/ledger"
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/gacha"
	"fan-ledger/internal/domain/outbox"
	"fan-ledger/internal/domain/transaction"
	"fan-ledger/internal/infrastructure/clock"
	"fan-ledger/internal/infrastructure/idgen"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
	"fan-ledger/internal/infrastructure/rng"
)

// LedgerWriter 呼び出し元のユニットオブワーク内で通貨を消費する
type LedgerWriter interface {
	DebitInTx(ctx context.Context, m ledger.Mutation) (*ledger.MutationResult, error)
}

// GachaApplicationService ガチャ抽選アプリケーションサービス
type GachaApplicationService struct {
	ledger     LedgerWriter
	poolRepo   gacha.PoolRepository
	batchRepo  gacha.DrawBatchRepository
	inventory  gacha.InventoryRepository
	pityRepo   gacha.PityRepository
	outboxRepo outbox.Repository
	locker     gacha.PullLocker
	txManager  transaction.TransactionManager
	engine     *gacha.Engine
	costs      gacha.CostTable
	rngFactory rng.Factory
	idGen      idgen.Generator
	clock      clock.Clock
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
	maxRetries int
}

// Deps GachaApplicationServiceの依存
type Deps struct {
	Ledger     LedgerWriter
	Pools      gacha.PoolRepository
	Batches    gacha.DrawBatchRepository
	Inventory  gacha.InventoryRepository
	Pity       gacha.PityRepository
	Outbox     outbox.Repository
	Locker     gacha.PullLocker
	TxManager  transaction.TransactionManager
	Engine     *gacha.Engine
	Costs      gacha.CostTable
	RNG        rng.Factory
	IDGen      idgen.Generator
	Clock      clock.Clock
	Logger     *otelinfra.Logger
	Metrics    *otelinfra.Metrics
	MaxRetries int
}

// NewGachaApplicationService 新しいGachaApplicationServiceを作成
func NewGachaApplicationService(d Deps) *GachaApplicationService {
	if d.MaxRetries <= 0 {
		d.MaxRetries = transaction.DefaultMaxRetries
	}
	if d.Costs == nil {
		d.Costs = gacha.DefaultCostTable()
	}
	if d.Engine == nil {
		d.Engine = gacha.NewEngine(nil, gacha.PityPolicy{})
	}
	if d.RNG == nil {
		d.RNG = rng.NewChaCha8Factory()
	}
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	return &GachaApplicationService{
		ledger:     d.Ledger,
		poolRepo:   d.Pools,
		batchRepo:  d.Batches,
		inventory:  d.Inventory,
		pityRepo:   d.Pity,
		outboxRepo: d.Outbox,
		locker:     d.Locker,
		txManager:  d.TxManager,
		engine:     d.Engine,
		costs:      d.Costs,
		rngFactory: d.RNG,
		idGen:      d.IDGen,
		clock:      d.Clock,
		logger:     d.Logger,
		metrics:    d.Metrics,
		tracer:     otel.Tracer("gacha-service"),
		maxRetries: d.MaxRetries,
	}
}

// Pull 通貨を消費して抽選する
// 消費・抽選・バッチ保存・所持品追加・天井更新・イベント追加は1つのユニットオブワークで行う
func (s *GachaApplicationService) Pull(ctx context.Context, req *PullRequest) (*PullResponse, error) {
	ctx, span := s.tracer.Start(ctx, "GachaApplicationService.Pull")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("pool_id", req.PoolID),
		attribute.String("payment_method", req.PaymentMethod),
		attribute.String("pull_type", req.PullType),
	)

	fail := func(err error) (*PullResponse, error) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := currency.ValidateUserID(req.UserID); err != nil {
		return fail(err)
	}
	pullType, err := gacha.NewPullType(req.PullType)
	if err != nil {
		return fail(err)
	}
	method := gacha.PaymentMethod(req.PaymentMethod)
	ct, cost, err := s.costs.Resolve(method, pullType)
	if err != nil {
		return fail(err)
	}

	pool, err := s.poolRepo.FindByID(ctx, req.PoolID)
	if errors.Is(err, gacha.ErrPoolNotFound) {
		return fail(fmt.Errorf("%w: %w", gacha.ErrPoolUnavailable, err))
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to find pool", err, map[string]interface{}{"pool_id": req.PoolID})
		return fail(fmt.Errorf("failed to find pool: %w", err))
	}
	if err := pool.EnsureAvailable(s.clock.Now()); err != nil {
		return fail(err)
	}

	release, err := s.locker.Acquire(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, gacha.ErrPullInProgress) {
			s.logger.Error(ctx, "Failed to acquire pull lock", err, map[string]interface{}{"user_id": req.UserID})
		}
		return fail(err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn(ctx, "Failed to release pull lock", map[string]interface{}{
				"user_id": req.UserID,
				"error":   err.Error(),
			})
		}
	}()

	var resp *PullResponse
	err = transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		var err error
		resp, err = s.pullInTx(ctx, req.UserID, pool, pullType, method, ct, cost)
		return err
	}, func(attempt int, err error) {
		s.metrics.RecordRetry(ctx, "gacha.pull")
		s.logger.Warn(ctx, "Retrying pull after concurrency conflict", map[string]interface{}{
			"user_id": req.UserID,
			"attempt": attempt,
			"error":   err.Error(),
		})
	})
	if err != nil {
		fields := map[string]interface{}{
			"user_id":  req.UserID,
			"pool_id":  req.PoolID,
			"currency": ct.String(),
			"cost":     cost,
		}
		if errors.Is(err, currency.ErrInsufficientFunds) {
			s.logger.Warn(ctx, "Insufficient funds for pull", fields)
		} else {
			s.logger.Error(ctx, "Failed to pull", err, fields)
			s.metrics.RecordError(ctx, "pull_failed")
		}
		return fail(err)
	}

	s.metrics.RecordPull(ctx, pool.PoolID(), pullType.String(), method.String())
	for _, p := range resp.Prizes {
		s.metrics.RecordDrawOutcome(ctx, pool.PoolID(), p.Rarity, p.Guaranteed, p.Pity)
	}

	s.logger.Info(ctx, "Gacha pulled successfully", map[string]interface{}{
		"user_id":  req.UserID,
		"pool_id":  pool.PoolID(),
		"batch_id": resp.BatchID,
		"draws":    len(resp.Prizes),
	})
	span.SetAttributes(attribute.String("batch_id", resp.BatchID))

	return resp, nil
}

func (s *GachaApplicationService) pullInTx(
	ctx context.Context,
	userID string,
	pool *gacha.Pool,
	pullType gacha.PullType,
	method gacha.PaymentMethod,
	ct currency.CurrencyType,
	cost int64,
) (*PullResponse, error) {
	now := s.clock.Now()
	batchID := s.idGen.NewID("batch")

	debit, err := s.ledger.DebitInTx(ctx, ledger.Mutation{
		UserID:      userID,
		Currency:    ct,
		Amount:      cost,
		Kind:        transaction.KindGachaSpend,
		Description: fmt.Sprintf("gacha %s %s", pool.PoolID(), pullType),
		Reference:   &batchID,
	})
	if err != nil {
		return nil, err
	}

	counter, err := s.pityRepo.FindForUpdate(ctx, userID, pool.PoolID())
	if err != nil {
		return nil, fmt.Errorf("failed to lock pity counter: %w", err)
	}

	outcomes, drawsSinceHit, err := s.engine.Draw(pool, s.rngFactory.New(), pullType, method, counter.DrawsSinceHit)
	if err != nil {
		return nil, err
	}

	batch := &gacha.DrawBatch{
		BatchID:       batchID,
		UserID:        userID,
		PoolID:        pool.PoolID(),
		PullType:      pullType,
		Currency:      ct,
		AmountSpent:   cost,
		TransactionID: debit.Transaction.TransactionID(),
		CreatedAt:     now,
	}
	prizes := make([]PrizeResult, 0, len(outcomes))
	prizeIDs := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		prize := o.Entry.Prize
		added, err := s.inventory.Add(ctx, &gacha.InventoryEntry{
			UserID:     userID,
			PrizeID:    prize.PrizeID,
			BatchID:    batchID,
			Unique:     prize.Unique,
			AcquiredAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add inventory: %w", err)
		}
		batch.Draws = append(batch.Draws, gacha.DrawRecord{
			Index:      o.Index,
			PrizeID:    prize.PrizeID,
			Rarity:     prize.Rarity,
			Duplicate:  !added,
			Guaranteed: o.Guaranteed,
			Pity:       o.Pity,
		})
		prizes = append(prizes, PrizeResult{
			Index:      o.Index,
			PrizeID:    prize.PrizeID,
			Name:       prize.Name,
			Rarity:     prize.Rarity.String(),
			Payout:     prize.Payout,
			Duplicate:  !added,
			Guaranteed: o.Guaranteed,
			Pity:       o.Pity,
		})
		prizeIDs = append(prizeIDs, prize.PrizeID)
	}

	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to save draw batch: %w", err)
	}

	counter.DrawsSinceHit = drawsSinceHit
	if err := s.pityRepo.Save(ctx, counter); err != nil {
		return nil, fmt.Errorf("failed to save pity counter: %w", err)
	}

	event, err := outbox.NewEvent(
		s.idGen.NewID("evt"),
		outbox.AggregateGachaBatch,
		batchID,
		outbox.EventTypeGachaPulled,
		outbox.GachaPulledPayload{
			BatchID:     batchID,
			UserID:      userID,
			PoolID:      pool.PoolID(),
			PullType:    pullType.String(),
			Currency:    ct.String(),
			AmountSpent: cost,
			PrizeIDs:    prizeIDs,
		},
		now,
	)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append outbox event: %w", err)
	}

	return &PullResponse{
		BatchID:       batchID,
		TransactionID: debit.Transaction.TransactionID(),
		Currency:      ct.String(),
		Spent:         cost,
		NewBalance:    debit.Balance.Of(ct),
		Prizes:        prizes,
		DrawsSinceHit: drawsSinceHit,
		CreatedAt:     now,
	}, nil
}
