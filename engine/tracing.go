package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/cwbudde/algo-protocol/engine"

func defaultTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

func (r *Runner) startRun(ctx context.Context, runID string, jobs int) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "engine.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.invocations", jobs),
			attribute.Int("run.workers", r.workers),
		),
	)
}

func (r *Runner) startInvocation(ctx context.Context, j job) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "engine.invoke."+j.desc.ID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("analysis.family", string(j.family)),
			attribute.String("analysis.method", j.desc.ID),
			attribute.String("analysis.channel", j.channel),
			attribute.Int("analysis.invocation", j.invocation),
		),
	)
}

func endInvocation(span trace.Span, rec *Record) {
	span.SetAttributes(attribute.String("analysis.status", string(rec.Status)))

	if rec.Status == StatusOK {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, rec.Error)
	}

	span.End()
}
