package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	otelinfra "fan-ledger/internal/infrastructure/observability/otel"
)

// Job 定期実行するジョブ
type Job func(ctx context.Context) error

// Scheduler cronによる定期ジョブ実行
type Scheduler struct {
	cron   *cron.Cron
	logger *otelinfra.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New 新しいSchedulerを作成。locはcron式を解釈するタイムゾーン
func New(loc *time.Location, logger *otelinfra.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := &cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add ジョブを登録
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error(s.ctx, "Scheduled job failed", err, map[string]interface{}{
				"job": name,
			})
			return
		}
		s.logger.Debug(s.ctx, "Scheduled job finished", map[string]interface{}{
			"job":         name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	return nil
}

// Start 実行を開始
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 新規実行を止め、実行中のジョブの終了を待つ
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger cron.Loggerのアダプタ
type cronLogger struct {
	logger *otelinfra.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), "cron: "+msg, kvFields(keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), "cron: "+msg, err, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
