package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fan-ledger/internal/domain/streak"
	"fan-ledger/internal/domain/transaction"
)

// StreakRepository MySQL実装のStreakRepository
type StreakRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewStreakRepository 新しいStreakRepositoryを作成
func NewStreakRepository(db *DB) *StreakRepository {
	return &StreakRepository{
		db:     db,
		tracer: otel.Tracer("streak-repository"),
	}
}

const selectStreakForUpdate = `
		SELECT streak_count, last_qualified_on, version
		FROM user_streaks
		WHERE user_id = ?
		FOR UPDATE`

// FindForUpdate 行ロック付きで取得（存在しない場合はカウント0で作成）
func (r *StreakRepository) FindForUpdate(ctx context.Context, userID string) (*streak.Streak, error) {
	ctx, span := r.tracer.Start(ctx, "StreakRepository.FindForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT FOR UPDATE"),
		attribute.String("db.table", "user_streaks"),
	)

	conn := r.db.conn(ctx)
	s, err := scanStreak(userID, conn.QueryRowContext(ctx, selectStreakForUpdate, userID))
	if errors.Is(err, sql.ErrNoRows) {
		if _, err = insertIfAbsent(ctx, conn, `
		INSERT INTO user_streaks (user_id, streak_count, last_qualified_on, version)
		VALUES (?, 0, NULL, 0)`, userID); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to create streak: %w", err)
		}
		s, err = scanStreak(userID, conn.QueryRowContext(ctx, selectStreakForUpdate, userID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to lock streak: %w", mapError(err))
	}

	span.SetAttributes(attribute.Int("db.streak_count", s.Count()))
	span.SetStatus(otelcodes.Ok, "streak locked")
	return s, nil
}

func scanStreak(userID string, row scanner) (*streak.Streak, error) {
	var count, version int
	var last sql.NullTime
	if err := row.Scan(&count, &last, &version); err != nil {
		return nil, err
	}
	var lastOn *streak.Date
	if last.Valid {
		d := streak.DateOf(last.Time, time.UTC)
		lastOn = &d
	}
	return streak.NewStreak(userID, count, lastOn, version), nil
}

// Save 保存（楽観的ロック対応）
func (r *StreakRepository) Save(ctx context.Context, s *streak.Streak) error {
	ctx, span := r.tracer.Start(ctx, "StreakRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", s.UserID()),
		attribute.Int("db.streak_count", s.Count()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "user_streaks"),
	)

	var last interface{}
	if d := s.LastQualifiedOn(); d != nil {
		last = d.String()
	}

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE user_streaks
		SET streak_count = ?, last_qualified_on = ?, version = version + 1
		WHERE user_id = ? AND version = ?`,
		s.Count(), last, s.UserID(), s.Version(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save streak: %w", mapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Error, "version mismatch")
		return fmt.Errorf("%w: streak version mismatch", transaction.ErrConcurrencyConflict)
	}

	s.IncrementVersion()
	span.SetStatus(otelcodes.Ok, "streak saved")
	return nil
}

// ResetStale cutoffより前が最終日のカウンターを0に戻し、件数を返す
func (r *StreakRepository) ResetStale(ctx context.Context, cutoff streak.Date) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "StreakRepository.ResetStale")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.cutoff", cutoff.String()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "user_streaks"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE user_streaks
		SET streak_count = 0, version = version + 1
		WHERE streak_count > 0 AND last_qualified_on < ?`,
		cutoff.String(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to reset stale streaks: %w", mapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "stale streaks reset")
	return rowsAffected, nil
}
