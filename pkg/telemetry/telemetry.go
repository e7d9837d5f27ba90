// Package telemetry sets up OpenTelemetry metrics for taskflow.
//
// Metrics are off by default: Init installs a no-op meter provider unless Enabled is set,
// and with Stdout the readings are printed periodically to stdout.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/matt-steen/taskflow"

// Config selects the meter provider.
type Config struct {
	Enabled     bool
	Stdout      bool
	Interval    time.Duration
	ServiceName string
	Version     string
}

var shutdownFns []func(context.Context) error

// Init installs the global meter provider described by cfg.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())

		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("telemetry: stdout exporter: %w", err)
		}

		interval := cfg.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	return nil
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}

	return otel.Meter(name)
}

// Shutdown flushes pending readings and stops the providers.
func Shutdown(ctx context.Context) {
	for _, fn := range shutdownFns {
		_ = fn(ctx)
	}

	shutdownFns = nil
}
