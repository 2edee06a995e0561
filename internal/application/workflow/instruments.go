package workflow

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/garyjia/toolcrib/internal/application/port"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
)

var metricNoop = noop.NewMeterProvider().Meter(instrumentationName)

type instruments struct {
	transitions metric.Int64Counter
	conflicts   metric.Int64Counter
}

func newInstruments(meter metric.Meter) *instruments {
	transitions, err := meter.Int64Counter("toolcrib.workflow.transitions",
		metric.WithDescription("Workflow operations by kind, trigger and result"))
	if err != nil {
		transitions, _ = metricNoop.Int64Counter("toolcrib.workflow.transitions")
	}
	conflicts, err := meter.Int64Counter("toolcrib.workflow.conflicts",
		metric.WithDescription("Workflow operations rejected with a state conflict"))
	if err != nil {
		conflicts, _ = metricNoop.Int64Counter("toolcrib.workflow.conflicts")
	}
	return &instruments{transitions: transitions, conflicts: conflicts}
}

func (m *instruments) record(ctx context.Context, kind, trigger string, err error) {
	attrs := metric.WithAttributes(
		attribute.String("workflow.kind", kind),
		attribute.String("workflow.trigger", trigger),
		attribute.String("result", resultOf(err)),
	)
	m.transitions.Add(ctx, 1, attrs)
	if errors.Is(err, domainwf.ErrStateConflict) {
		m.conflicts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("workflow.kind", kind),
			attribute.String("workflow.trigger", trigger),
		))
	}
}

// resultOf buckets an operation error for metrics and span status
func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainwf.ErrStateConflict):
		return "conflict"
	case errors.Is(err, domainwf.ErrValidation):
		return "validation"
	case errors.Is(err, domainwf.ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, domainwf.ErrNotFound):
		return "not_found"
	case errors.Is(err, port.ErrCommitUnknown):
		return "commit_unknown"
	case port.IsRetryable(err):
		return "retryable"
	default:
		return "error"
	}
}
