package streak

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/application/ledger"
	"fan-ledger/internal/domain/currency"
	"fan-ledger/internal/domain/streak"
	"fan-ledger/internal/domain/transaction"
	"fan-ledger/internal/infrastructure/clock"
	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// LedgerWriter 呼び出し元のユニットオブワーク内で通貨を付与する
type LedgerWriter interface {
	CreditInTx(ctx context.Context, m ledger.Mutation) (*ledger.MutationResult, error)
}

// Settings 連続日数ボーナスの設定
type Settings struct {
	Policy          streak.Policy
	Location        *time.Location
	LoginBaseReward int64
	LoginCurrency   currency.CurrencyType
}

// StreakApplicationService 連続日数ボーナスアプリケーションサービス
type StreakApplicationService struct {
	ledger     LedgerWriter
	streakRepo streak.StreakRepository
	txManager  transaction.TransactionManager
	settings   Settings
	clock      clock.Clock
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
	maxRetries int
}

// NewStreakApplicationService 新しいStreakApplicationServiceを作成
func NewStreakApplicationService(
	ledgerWriter LedgerWriter,
	streakRepo streak.StreakRepository,
	txManager transaction.TransactionManager,
	settings Settings,
	clk clock.Clock,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	maxRetries int,
) *StreakApplicationService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.LoginCurrency == "" {
		settings.LoginCurrency = currency.CurrencyTypePoints
	}
	return &StreakApplicationService{
		ledger:     ledgerWriter,
		streakRepo: streakRepo,
		txManager:  txManager,
		settings:   settings,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("streak-service"),
		maxRetries: maxRetries,
	}
}

// ApplyStreakBonus 連続日数に応じた報酬を付与する（消費は行わない）
// 倍率適用後の基本額は呼び出し元の分類タグ、7日目ボーナスはstreak_bonusで別の監査ログになる
func (s *StreakApplicationService) ApplyStreakBonus(ctx context.Context, req *ApplyBonusRequest) (*ApplyBonusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "StreakApplicationService.ApplyStreakBonus")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.Int("streak_count", req.StreakCount),
		attribute.Int64("base_amount", req.BaseAmount),
	)

	ct, kind, err := parseGrant(req.UserID, req.BaseAmount, req.Currency, req.Kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	var resp *ApplyBonusResponse
	err = transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		var err error
		resp, err = s.applyInTx(ctx, req.UserID, req.StreakCount, req.BaseAmount, ct, kind, "")
		return err
	}, s.onRetry(ctx, "streak.apply_bonus"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to apply streak bonus", err, map[string]interface{}{
			"user_id":      req.UserID,
			"streak_count": req.StreakCount,
		})
		s.metrics.RecordError(ctx, "streak_bonus_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Streak bonus applied", map[string]interface{}{
		"user_id":       req.UserID,
		"streak_count":  resp.StreakCount,
		"total_granted": resp.TotalGranted,
	})
	return resp, nil
}

// RecordActivity その日の活動を記録し連続日数を進める（同じ日は何もしない）
func (s *StreakApplicationService) RecordActivity(ctx context.Context, userID string) (*RecordActivityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "StreakApplicationService.RecordActivity")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	if err := currency.ValidateUserID(userID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	var resp *RecordActivityResponse
	err := transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		st, advanced, err := s.advanceInTx(ctx, userID)
		if err != nil {
			return err
		}
		resp = &RecordActivityResponse{StreakCount: st.Count(), Advanced: advanced}
		return nil
	}, s.onRetry(ctx, "streak.record_activity"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to record activity", err, map[string]interface{}{"user_id": userID})
		return nil, err
	}
	return resp, nil
}

// GrantMissionReward ミッション達成時に連続日数を進め、進めた後の日数でボーナスを付与する
func (s *StreakApplicationService) GrantMissionReward(ctx context.Context, req *MissionRewardRequest) (*RewardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "StreakApplicationService.GrantMissionReward")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("mission_id", req.MissionID),
		attribute.Int64("base_amount", req.BaseAmount),
	)

	ct, kind, err := parseGrant(req.UserID, req.BaseAmount, req.Currency, transaction.KindMissionReward.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	var resp *RewardResponse
	err = transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		st, advanced, err := s.advanceInTx(ctx, req.UserID)
		if err != nil {
			return err
		}
		granted, err := s.applyInTx(ctx, req.UserID, st.Count(), req.BaseAmount, ct, kind, req.MissionID)
		if err != nil {
			return err
		}
		resp = &RewardResponse{StreakCount: st.Count(), Advanced: advanced, Granted: granted}
		return nil
	}, s.onRetry(ctx, "streak.mission_reward"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to grant mission reward", err, map[string]interface{}{
			"user_id":    req.UserID,
			"mission_id": req.MissionID,
		})
		s.metrics.RecordError(ctx, "mission_reward_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Mission reward granted", map[string]interface{}{
		"user_id":       req.UserID,
		"mission_id":    req.MissionID,
		"streak_count":  resp.StreakCount,
		"total_granted": resp.Granted.TotalGranted,
	})
	return resp, nil
}

// ClaimDailyLogin ログインボーナスを受け取る。その日初めて連続日数が進んだときだけ付与する
func (s *StreakApplicationService) ClaimDailyLogin(ctx context.Context, userID string) (*RewardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "StreakApplicationService.ClaimDailyLogin")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	if err := currency.ValidateUserID(userID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	var resp *RewardResponse
	err := transaction.RunWithRetry(ctx, s.txManager, s.maxRetries, func(ctx context.Context) error {
		st, advanced, err := s.advanceInTx(ctx, userID)
		if err != nil {
			return err
		}
		resp = &RewardResponse{StreakCount: st.Count(), Advanced: advanced}
		if !advanced || s.settings.LoginBaseReward <= 0 {
			return nil
		}
		resp.Granted, err = s.applyInTx(ctx, userID, st.Count(), s.settings.LoginBaseReward,
			s.settings.LoginCurrency, transaction.KindLoginBonus, "")
		return err
	}, s.onRetry(ctx, "streak.daily_login"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to claim daily login", err, map[string]interface{}{"user_id": userID})
		s.metrics.RecordError(ctx, "daily_login_failed")
		return nil, err
	}

	span.SetAttributes(attribute.Bool("advanced", resp.Advanced))
	return resp, nil
}

// ResetStale 前日までに活動の無いユーザーの連続日数を0に戻す（定期実行）
func (s *StreakApplicationService) ResetStale(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "StreakApplicationService.ResetStale")
	defer span.End()

	cutoff := s.today().AddDays(-1)
	var n int64
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.streakRepo.ResetStale(ctx, cutoff)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to reset stale streaks", err, map[string]interface{}{
			"cutoff": cutoff.String(),
		})
		return 0, fmt.Errorf("failed to reset stale streaks: %w", err)
	}

	s.metrics.RecordStreakReset(ctx, n)
	s.logger.Info(ctx, "Stale streaks reset", map[string]interface{}{
		"cutoff": cutoff.String(),
		"count":  n,
	})
	span.SetAttributes(attribute.Int64("reset_count", n))
	return n, nil
}

func (s *StreakApplicationService) today() streak.Date {
	return streak.DateOf(s.clock.Now(), s.settings.Location)
}

// advanceInTx 連続日数の行をロックして進める。変化があった場合のみ保存する
func (s *StreakApplicationService) advanceInTx(ctx context.Context, userID string) (*streak.Streak, bool, error) {
	st, err := s.streakRepo.FindForUpdate(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock streak: %w", err)
	}
	if !st.Advance(s.today()) {
		return st, false, nil
	}
	if err := s.streakRepo.Save(ctx, st); err != nil {
		return nil, false, fmt.Errorf("failed to save streak: %w", err)
	}
	return st, true, nil
}

func (s *StreakApplicationService) applyInTx(
	ctx context.Context,
	userID string,
	streakCount int,
	baseAmount int64,
	ct currency.CurrencyType,
	kind transaction.TransactionKind,
	reference string,
) (*ApplyBonusResponse, error) {
	plan := s.settings.Policy.Plan(streakCount, baseAmount)

	var ref *string
	if reference != "" {
		ref = &reference
	}

	resp := &ApplyBonusResponse{
		StreakCount: plan.Streak,
		Currency:    ct.String(),
		Multiplied:  plan.Multiplied,
		Bonus:       plan.Bonus,
	}

	base, err := s.ledger.CreditInTx(ctx, ledger.Mutation{
		UserID:      userID,
		Currency:    ct,
		Amount:      plan.Multiplied,
		Kind:        kind,
		Description: fmt.Sprintf("streak day %d", plan.Streak),
		Reference:   ref,
	})
	if err != nil {
		return nil, err
	}
	resp.Transactions = append(resp.Transactions, granted(base))

	if plan.Bonus > 0 {
		bonus, err := s.ledger.CreditInTx(ctx, ledger.Mutation{
			UserID:      userID,
			Currency:    ct,
			Amount:      plan.Bonus,
			Kind:        transaction.KindStreakBonus,
			Description: fmt.Sprintf("streak day %d bonus", plan.Streak),
			Reference:   ref,
		})
		if err != nil {
			return nil, err
		}
		resp.Transactions = append(resp.Transactions, granted(bonus))
	}

	resp.TotalGranted = plan.Total()
	return resp, nil
}

// onRetry 再試行時のログとメトリクス
func (s *StreakApplicationService) onRetry(ctx context.Context, operation string) func(int, error) {
	return func(attempt int, err error) {
		s.metrics.RecordRetry(ctx, operation)
		s.logger.Warn(ctx, "Retrying after concurrency conflict", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt,
			"error":     err.Error(),
		})
	}
}

func parseGrant(userID string, amount int64, ct, kind string) (currency.CurrencyType, transaction.TransactionKind, error) {
	if amount <= 0 {
		return "", "", currency.ErrInvalidAmount
	}
	if err := currency.ValidateUserID(userID); err != nil {
		return "", "", err
	}
	currencyType, err := currency.NewCurrencyType(ct)
	if err != nil {
		return "", "", err
	}
	k, err := transaction.NewTransactionKind(kind)
	if err != nil {
		return "", "", err
	}
	if !k.IsGrant() {
		return "", "", fmt.Errorf("%w: kind %s cannot be granted", transaction.ErrInvalidTransaction, kind)
	}
	return currencyType, k, nil
}

func granted(r *ledger.MutationResult) GrantedTransaction {
	return GrantedTransaction{
		TransactionID: r.Transaction.TransactionID(),
		Kind:          r.Transaction.Kind().String(),
		Amount:        r.Transaction.Amount(),
		BalanceAfter:  r.Transaction.BalanceAfter(),
	}
}
