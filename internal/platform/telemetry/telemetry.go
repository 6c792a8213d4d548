// Package telemetry installs the OpenTelemetry meter provider. Instruments
// are created against the global provider, so they stay no-ops until Setup
// runs with metrics enabled.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config controls the metric pipeline.
type Config struct {
	// Output receives periodic metric dumps; nil disables export
	Output io.Writer

	// Interval between dumps; defaults to 30s
	Interval time.Duration
}

// ShutdownFunc flushes and stops the pipeline.
type ShutdownFunc func(ctx context.Context) error

// Setup builds a meter provider that writes to cfg.Output and installs it
// globally. The returned shutdown performs a final export.
func Setup(cfg Config) (ShutdownFunc, error) {
	if cfg.Output == nil {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Output))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
	)
	otel.SetMeterProvider(provider)

	return func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}, nil
}
