package otel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fan-ledger/internal/infrastructure/config"
)

func TestNewLogger(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := NewLogger(tracer)

	assert.NotNil(t, logger)
	assert.Equal(t, tracer, logger.tracer)
}

func TestLogger_Log(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	tests := []struct {
		name      string
		level     LogLevel
		message   string
		fields    map[string]interface{}
		wantLevel zapcore.Level
	}{
		{
			name:      "Infoレベルのログ",
			level:     LogLevelInfo,
			message:   "test message",
			fields:    map[string]interface{}{"key": "value"},
			wantLevel: zapcore.InfoLevel,
		},
		{
			name:      "Debugレベルのログ",
			level:     LogLevelDebug,
			message:   "debug message",
			wantLevel: zapcore.DebugLevel,
		},
		{
			name:      "Warnレベルのログ",
			level:     LogLevelWarn,
			message:   "warn message",
			fields:    map[string]interface{}{"count": 42},
			wantLevel: zapcore.WarnLevel,
		},
		{
			name:      "Errorレベルのログ",
			level:     LogLevelError,
			message:   "error message",
			fields:    map[string]interface{}{"error": "test error"},
			wantLevel: zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			logger := NewLoggerWithCore(tracer, core)

			logger.Log(context.Background(), tt.level, tt.message, tt.fields)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)
			for k, v := range tt.fields {
				assert.EqualValues(t, v, entry.ContextMap()[k])
			}
		})
	}
}

func TestLogger_LogWithTraceContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewLoggerWithCore(noop.NewTracerProvider().Tracer("test"), core)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.Info(ctx, "test message", nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
}

func TestLogger_Error(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewLoggerWithCore(noop.NewTracerProvider().Tracer("test"), core)

	logger.Error(context.Background(), "failed", errors.New("boom"), nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := NewLoggerWithCore(noop.NewTracerProvider().Tracer("test"), core)

	logger.Debug(context.Background(), "debug", nil)
	logger.Info(context.Background(), "info", nil)
	logger.Warn(context.Background(), "warn", nil)

	assert.Equal(t, 1, logs.Len())
}

func TestNewLoggerWithConfig(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	t.Run("正常系: ファイル出力あり", func(t *testing.T) {
		logger, err := NewLoggerWithConfig(tracer, &config.LogConfig{
			Level:      "debug",
			File:       filepath.Join(t.TempDir(), "app.log"),
			MaxSizeMB:  1,
			MaxBackups: 1,
		})
		require.NoError(t, err)
		logger.Info(context.Background(), "hello", nil)
	})

	t.Run("異常系: 不正なレベル", func(t *testing.T) {
		_, err := NewLoggerWithConfig(tracer, &config.LogConfig{Level: "verbose"})
		assert.Error(t, err)
	})
}
