package report

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EmitSpans records r as one span with an event per row.
func EmitSpans(ctx context.Context, tracer trace.Tracer, r *Report) {
	_, span := tracer.Start(ctx, "callstats.report",
		trace.WithAttributes(
			attribute.String("callstats.report", r.Name),
			attribute.String("callstats.mode", r.Mode),
			attribute.Int64("callstats.total_time_ns", int64(r.Total.Time)),
			attribute.Int64("callstats.total_count", r.Total.Count),
		),
	)
	defer span.End()

	for _, row := range r.Rows {
		span.AddEvent("counter", trace.WithAttributes(
			attribute.String("counter", row.Name),
			attribute.Int64("time_ns", int64(row.Time)),
			attribute.Int64("count", row.Count),
			attribute.Float64("time_percent", row.TimePercent),
		))
	}
}
