package otel

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"fan-ledger/internal/infrastructure/config"
)

// InitMeter グローバルMeterProviderを設定し、終了関数を返す
//
// MetricsExporterが"prometheus"の場合はregistererに登録し、/metricsから取得できるようにする。
func InitMeter(cfg *config.OpenTelemetryConfig, registerer prometheus.Registerer) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	ctx := context.Background()

	reader, err := newMetricReader(ctx, cfg, registerer)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return noopShutdown, nil
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

func newMetricReader(ctx context.Context, cfg *config.OpenTelemetryConfig, registerer prometheus.Registerer) (sdkmetric.Reader, error) {
	switch cfg.MetricsExporter {
	case exporterOTLP:
		var opts []otlpmetrichttp.Option
		if url, hostPort := otlpTarget(cfg.OTLPEndpoint); url != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(url))
		} else {
			opts = append(opts, otlpmetrichttp.WithEndpoint(hostPort))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter), nil
	case exporterPrometheus:
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus metric exporter: %w", err)
		}
		return exporter, nil
	case exporterStdout, exporterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported metrics exporter: %s", cfg.MetricsExporter)
	}
}

// Meter 名前付きメーターを取得
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
