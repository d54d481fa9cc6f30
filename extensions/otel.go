package extensions

import (
	"context"
	"time"

	"github.com/ahlfors/depgraph"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationOtel wraps every compute invocation in a span and records
// invocation/failure counts and duration via an OpenTelemetry meter — the
// same wrap-and-record shape InstrumentationLogger applies for slog, routed
// through the global otel SDK instead.
type InstrumentationOtel struct {
	depgraph.BaseInstrumentation
	tracer      trace.Tracer
	invocations metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewInstrumentationOtel builds an otel-backed instrumentation. name is used
// as both the tracer and meter's instrumentation-scope name.
func NewInstrumentationOtel(name string) (*InstrumentationOtel, error) {
	tracer := otel.Tracer(name)
	meter := otel.Meter(name)

	invocations, err := meter.Int64Counter("depgraph.compute.invocations")
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("depgraph.compute.failures")
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("depgraph.compute.duration_seconds")
	if err != nil {
		return nil, err
	}

	return &InstrumentationOtel{
		BaseInstrumentation: depgraph.NewBaseInstrumentation("otel"),
		tracer:              tracer,
		invocations:         invocations,
		failures:            failures,
		duration:            duration,
	}, nil
}

func (o *InstrumentationOtel) Wrap(ctx context.Context, k depgraph.Key, next func() (depgraph.Value, error)) (depgraph.Value, error) {
	ctx, span := o.tracer.Start(ctx, k.Family, trace.WithAttributes(
		attribute.String("depgraph.key", k.String()),
	))
	defer span.End()

	start := time.Now()
	value, err := next()
	elapsed := time.Since(start).Seconds()

	attrs := metric.WithAttributes(attribute.String("depgraph.family", k.Family))
	o.invocations.Add(ctx, 1, attrs)
	o.duration.Record(ctx, elapsed, attrs)
	if err != nil {
		o.failures.Add(ctx, 1, attrs)
		span.RecordError(err)
	}
	return value, err
}
