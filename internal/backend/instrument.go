package backend

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielolaszy/bz2gl/internal/telemetry"
)

const scopeName = "github.com/danielolaszy/bz2gl/backend"

type instrumented struct {
	next   Client
	tracer trace.Tracer
	subs   metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// Instrument returns a Client that records one span and a set of metrics per
// submission made through next.
func Instrument(next Client) Client {
	m := telemetry.Meter(scopeName)
	subs := telemetry.Int64Counter(m, "bz2gl.backend.submissions",
		metric.WithDescription("Total destination submissions"),
	)
	dur := telemetry.Float64Histogram(m, "bz2gl.backend.submission.duration",
		metric.WithDescription("Destination submission duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs := telemetry.Int64Counter(m, "bz2gl.backend.errors",
		metric.WithDescription("Total failed destination submissions"),
	)
	return &instrumented{
		next:   next,
		tracer: telemetry.Tracer(scopeName),
		subs:   subs,
		dur:    dur,
		errs:   errs,
	}
}

func (i *instrumented) Submit(ctx context.Context, req Request) (Result, error) {
	attrs := []attribute.KeyValue{
		attribute.String("bz2gl.kind", string(req.Kind)),
		attribute.Bool("bz2gl.dry_run", req.DryRun),
	}
	ctx, span := i.tracer.Start(ctx, "backend.Submit",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	start := time.Now()
	i.subs.Add(ctx, 1, metric.WithAttributes(attrs...))

	res, err := i.next.Submit(ctx, req)

	i.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
		return res, err
	}
	if res.DisplayID != "" {
		span.SetAttributes(attribute.String("bz2gl.display_id", res.DisplayID))
	}
	return res, nil
}
