package rabbit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/drblury/stocksync/internal/event"
)

const tracerName = "stocksync-consumer"

// TracingMiddleware wraps envelope handling in an OpenTelemetry span.
func TracingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, env event.Envelope) error {
			tracer := otel.Tracer(tracerName)
			ctx, span := tracer.Start(ctx, "ProcessMessage")
			defer span.End()

			span.SetAttributes(
				attribute.String("message.event_kind", string(env.Kind)),
				attribute.Bool("message.legacy", env.Legacy),
			)

			err := next(ctx, env)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}
