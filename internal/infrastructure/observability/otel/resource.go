package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"fan-ledger/internal/infrastructure/config"
)

const (
	exporterOTLP       = "otlp"
	exporterStdout     = "stdout"
	exporterNone       = "none"
	exporterPrometheus = "prometheus"
)

func noopShutdown(context.Context) error { return nil }

// newResource トレース・メトリクス共通のリソース属性
func newResource(ctx context.Context, cfg *config.OpenTelemetryConfig) (*resource.Resource, error) {
	attrs := resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
	opts := []resource.Option{attrs, resource.WithTelemetrySDK()}
	if cfg.Environment != "" {
		opts = append(opts, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}
	res, err := resource.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// otlpTarget OTLP_ENDPOINTがURL形式かhost:port形式かを判定する
func otlpTarget(endpoint string) (url string, hostPort string) {
	if strings.Contains(endpoint, "://") {
		return endpoint, ""
	}
	return "", endpoint
}
