package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/logging"
	"github.com/drblury/stocksync/internal/metrics"
)

// Handlers routes decoded envelopes by event kind. The order route is the
// dominant path: all four order kinds, plus the legacy bare-order form, land
// on OrderReceived. A nil route fails the message, which is then rejected
// without requeue.
type Handlers struct {
	OrderReceived  func(ctx context.Context, order event.OrderSnapshot) error
	ProductCreated func(ctx context.Context, product event.ProductSnapshot) error
	ProductUpdated func(ctx context.Context, product event.ProductSnapshot) error
	ProductRemoved func(ctx context.Context, productID int64) error
}

// HandlerFunc processes one decoded envelope.
type HandlerFunc func(ctx context.Context, env event.Envelope) error

// Middleware wraps envelope handling, in the order registered.
type Middleware func(next HandlerFunc) HandlerFunc

// Subscriber runs the long-lived consume loop against the durable queue and
// owns the inbound message lifecycle: decode, route, ack or reject.
type Subscriber struct {
	manager  *ConnectionManager
	queue    string
	handlers Handlers
	log      logging.ServiceLogger
	metrics  *metrics.Metrics

	dispatch HandlerFunc
}

// NewSubscriber wires the consume loop to the given routes.
func NewSubscriber(manager *ConnectionManager, queue string, handlers Handlers, log logging.ServiceLogger, m *metrics.Metrics, mws ...Middleware) *Subscriber {
	if log == nil {
		log = logging.Nop()
	}
	s := &Subscriber{
		manager:  manager,
		queue:    queue,
		handlers: handlers,
		log:      log,
		metrics:  m,
	}

	s.dispatch = s.route
	for i := len(mws) - 1; i >= 0; i-- {
		s.dispatch = mws[i](s.dispatch)
	}
	return s
}

// Run consumes until ctx is cancelled. When the broker drops the connection
// mid-loop it reconnects and resumes from the same durable queue; messages
// that were never acked are redelivered by the broker (at-least-once). The
// loop itself never gives up: connect failures are logged and retried on the
// next iteration.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !s.manager.IsHealthy() {
			if err := s.manager.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Error("reconnect failed, retrying", err, logging.LogFields{"queue": s.queue})
				continue
			}
		}

		ch, err := s.manager.Channel()
		if err != nil {
			s.log.Error("no channel available", err, logging.LogFields{"queue": s.queue})
			continue
		}

		deliveries, err := ch.ConsumeWithContext(ctx,
			s.queue,
			"",    // consumer tag, broker-generated
			false, // autoAck: acknowledgment is manual
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,
		)
		if err != nil {
			s.log.Error("consume failed", err, logging.LogFields{"queue": s.queue})
			if err := s.manager.Reconnect(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		s.log.Info("consuming", logging.LogFields{"queue": s.queue})
		for delivery := range deliveries {
			s.handleDelivery(ctx, delivery)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("delivery stream closed, reconnecting", logging.LogFields{"queue": s.queue})
	}
}

// handleDelivery decodes one message and feeds it through the middleware
// chain. Undecodable messages and handler failures are rejected without
// requeue: the former can never succeed, the latter is single-attempt by
// design (no dead-letter queue is configured).
func (s *Subscriber) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	env, err := event.Decode(delivery.Body)
	if err != nil {
		s.log.Error("discarding undecodable message", err, logging.LogFields{
			"queue":      s.queue,
			"message_id": delivery.MessageId,
		})
		s.metrics.MessageRejected(metrics.RejectReasonDecode)
		s.reject(delivery)
		return
	}

	s.metrics.MessageConsumed(string(env.Kind))

	if err := s.dispatch(ctx, env); err != nil {
		s.log.Error("handler failed, rejecting message", err, logging.LogFields{
			"queue":      s.queue,
			"event_kind": string(env.Kind),
			"message_id": delivery.MessageId,
		})
		s.metrics.MessageRejected(metrics.RejectReasonHandler)
		s.reject(delivery)
		return
	}

	if err := delivery.Ack(false); err != nil {
		s.log.Error("ack failed", err, logging.LogFields{"message_id": delivery.MessageId})
		return
	}
	s.metrics.MessageAcked()
}

func (s *Subscriber) reject(delivery amqp.Delivery) {
	if err := delivery.Reject(false); err != nil {
		s.log.Error("reject failed", err, logging.LogFields{"message_id": delivery.MessageId})
	}
}

// route matches the envelope kind to its handler.
func (s *Subscriber) route(ctx context.Context, env event.Envelope) error {
	switch {
	case env.Kind.IsOrder():
		if s.handlers.OrderReceived == nil {
			return fmt.Errorf("no handler registered for %s", env.Kind)
		}
		return s.handlers.OrderReceived(ctx, *env.Order)
	case env.Kind == event.KindProductCreated:
		if s.handlers.ProductCreated == nil {
			return fmt.Errorf("no handler registered for %s", env.Kind)
		}
		return s.handlers.ProductCreated(ctx, *env.Product)
	case env.Kind == event.KindProductUpdated:
		if s.handlers.ProductUpdated == nil {
			return fmt.Errorf("no handler registered for %s", env.Kind)
		}
		return s.handlers.ProductUpdated(ctx, *env.Product)
	case env.Kind == event.KindProductRemoved:
		if s.handlers.ProductRemoved == nil {
			return fmt.Errorf("no handler registered for %s", env.Kind)
		}
		return s.handlers.ProductRemoved(ctx, *env.ProductID)
	default:
		// Decode already filters unknown kinds; this is a safety net.
		return fmt.Errorf("%w: %q", event.ErrUnknownEventKind, env.Kind)
	}
}

// LogMiddleware logs every dispatched envelope with its kind and outcome.
func LogMiddleware(log logging.ServiceLogger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, env event.Envelope) error {
			fields := logging.LogFields{
				"event_kind": string(env.Kind),
				"legacy":     env.Legacy,
				"sent_at":    env.SentAt,
			}
			log.Debug("dispatching event", fields)
			err := next(ctx, env)
			if err != nil {
				log.Error("event dispatch failed", err, fields)
			}
			return err
		}
	}
}

// TimingMiddleware records the handling duration of each message.
func TimingMiddleware(m *metrics.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, env event.Envelope) error {
			start := time.Now()
			err := next(ctx, env)
			m.ObserveProcessing(time.Since(start).Seconds())
			return err
		}
	}
}
