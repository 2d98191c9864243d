package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/djarekg/tampa-taffy/pkg/resource"
)

var _ resource.Observer = (*Telemetry)(nil)

// StartRun opens a span for a resource run. The loader receives the span's
// context, so outgoing API calls nest under it.
func (t *Telemetry) StartRun(ctx context.Context, info resource.RunInfo) (context.Context, func(resource.Outcome, error)) {
	name := info.Resource
	if name == "" {
		name = "anonymous"
	}
	start := time.Now()

	spanCtx, span := t.tracer.Start(ctx, fmt.Sprintf("resource %s", name),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tampa.resource", name),
			attribute.Int64("tampa.run", int64(info.Run)),
			attribute.Bool("tampa.reload", info.Reload),
		),
	)

	return spanCtx, func(outcome resource.Outcome, err error) {
		t.resourceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		t.resourceRuns.WithLabelValues(name, outcome.String()).Inc()

		span.SetAttributes(attribute.String("tampa.outcome", outcome.String()))
		switch outcome {
		case resource.OutcomeError:
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		case resource.OutcomeResolved:
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
