package task

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/autonfe/desk/internal/task"

// runnerMetrics holds the instruments recorded at each terminal transition.
type runnerMetrics struct {
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
	rejected metric.Int64Counter
}

// newRunnerMetrics creates the runner instruments, falling back to no-op
// instruments when the meter refuses one.
func newRunnerMetrics(meter metric.Meter, logger *slog.Logger) runnerMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	fallback := noop.Meter{}

	outcomes, err := meter.Int64Counter("autonfe.task.outcomes",
		metric.WithDescription("Terminal outcomes of retrieval runs"),
		metric.WithUnit("{run}"))
	if err != nil {
		logger.Warn("failed to create metric", "metric", "autonfe.task.outcomes", "error", err)
		outcomes, _ = fallback.Int64Counter("autonfe.task.outcomes")
	}

	duration, err := meter.Float64Histogram("autonfe.task.duration",
		metric.WithDescription("Wall time of retrieval runs"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create metric", "metric", "autonfe.task.duration", "error", err)
		duration, _ = fallback.Float64Histogram("autonfe.task.duration")
	}

	rejected, err := meter.Int64Counter("autonfe.task.rejected_starts",
		metric.WithDescription("Start requests rejected because a run was in flight"),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("failed to create metric", "metric", "autonfe.task.rejected_starts", "error", err)
		rejected, _ = fallback.Int64Counter("autonfe.task.rejected_starts")
	}

	return runnerMetrics{outcomes: outcomes, duration: duration, rejected: rejected}
}

// recordOutcome records one terminal transition.
func (m runnerMetrics) recordOutcome(outcome Outcome) {
	attrs := metric.WithAttributes(
		attribute.String("job", outcome.Job),
		attribute.String("outcome", string(outcome.Kind)),
	)
	ctx := context.Background()
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, outcome.Duration().Seconds(), attrs)
}

// recordRejected counts a start rejected by the single-flight rule.
func (m runnerMetrics) recordRejected(job string) {
	m.rejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("job", job)))
}
