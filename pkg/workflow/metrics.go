package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/matt-steen/taskflow/workflow"

type metrics struct {
	transitions metric.Int64Counter
	duration    metric.Float64Histogram
}

func newMetrics() *metrics {
	m := telemetry.Meter(scopeName)

	transitions, _ := m.Int64Counter("taskflow.task.transitions",
		metric.WithDescription("Task operations by action and outcome"),
	)
	duration, _ := m.Float64Histogram("taskflow.task.transition.duration",
		metric.WithDescription("Task operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &metrics{transitions: transitions, duration: duration}
}

// observe records one operation; errp points at the operation's returned error.
func (m *metrics) observe(ctx context.Context, action Action, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = strings.ToLower(apperr.KindOf(*errp).Code())
	}

	attrs := metric.WithAttributes(
		attribute.String("action", strings.ToLower(string(action))),
		attribute.String("outcome", outcome),
	)

	m.transitions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}
