package enhancer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/comalice/storex"
)

// tracerName is the instrumentation scope name for store tracing.
const tracerName = "github.com/comalice/storex"

// Tracing returns an enhancer wrapping every dispatch in an OpenTelemetry
// span using the global TracerProvider. Without a configured provider the
// noop tracer makes it a pass-through.
func Tracing[S any]() storex.Enhancer[S] {
	return TracingWithTracer[S](otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an explicit tracer, for tests or when
// several providers are in use.
func TracingWithTracer[S any](tracer trace.Tracer) storex.Enhancer[S] {
	return WrapDispatch[S](TracingMiddleware(tracer))
}

// TracingMiddleware is the middleware behind Tracing. Dispatches issued from
// listeners while another dispatch is notifying become child spans.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		// Per-store parent context; stores are single-threaded.
		var current context.Context
		return func(action any) (any, error) {
			prev := current
			parent := prev
			if parent == nil {
				parent = context.Background()
			}
			ctx, span := tracer.Start(parent, "storex.dispatch",
				trace.WithAttributes(
					attribute.String("storex.action.type", actionLabel(action)),
					attribute.Bool("storex.action.nested", prev != nil),
				),
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			current = ctx
			defer func() {
				current = prev
				span.End()
			}()

			result, err := next(action)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return result, err
		}
	}
}
