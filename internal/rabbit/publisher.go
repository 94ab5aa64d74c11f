package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/stocksync/internal/config"
	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/ids"
	"github.com/drblury/stocksync/internal/logging"
	"github.com/drblury/stocksync/internal/metrics"
)

// PublisherConfig tunes the publish retry loop.
type PublisherConfig struct {
	// QueueName is the routing key on the default exchange.
	QueueName string

	// Attempts bounds publish retries per message; Delay is the fixed pause
	// between attempts. Zero values fall back to the package defaults
	// (5 attempts, 3s).
	Attempts int
	Delay    time.Duration
}

func (c PublisherConfig) withDefaults() PublisherConfig {
	if c.Attempts <= 0 {
		c.Attempts = config.DefaultPublishAttempts
	}
	if c.Delay <= 0 {
		c.Delay = config.DefaultPublishDelay
	}
	return c
}

// Publisher turns domain events into envelopes and publishes them durably.
// It is the only writer of outbound messages.
type Publisher struct {
	manager *ConnectionManager
	cfg     PublisherConfig
	log     logging.ServiceLogger
	metrics *metrics.Metrics

	now func() time.Time
}

// NewPublisher builds a publisher on top of the shared connection manager.
func NewPublisher(manager *ConnectionManager, cfg PublisherConfig, log logging.ServiceLogger, m *metrics.Metrics) *Publisher {
	if log == nil {
		log = logging.Nop()
	}
	return &Publisher{
		manager: manager,
		cfg:     cfg.withDefaults(),
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// PublishOrder publishes an order event under the given kind.
func (p *Publisher) PublishOrder(ctx context.Context, kind event.Kind, order event.OrderSnapshot) error {
	return p.publish(ctx, event.NewOrderEnvelope(kind, order, p.now().UTC()))
}

// PublishProduct publishes a product created/updated event.
func (p *Publisher) PublishProduct(ctx context.Context, kind event.Kind, product event.ProductSnapshot) error {
	return p.publish(ctx, event.NewProductEnvelope(kind, product, p.now().UTC()))
}

// PublishProductRemoved publishes a product removal event.
func (p *Publisher) PublishProductRemoved(ctx context.Context, productID int64) error {
	return p.publish(ctx, event.NewProductRemovedEnvelope(productID, p.now().UTC()))
}

// publish encodes the envelope and sends it with the persistence flag set,
// retrying transient failures with a fixed delay and reconnecting in
// between. After the attempts are exhausted the message is dropped and
// ErrPublishFailed is returned; callers only log it.
func (p *Publisher) publish(ctx context.Context, env event.Envelope) error {
	body, err := event.Encode(env)
	if err != nil {
		return fmt.Errorf("rabbit: encode %s event: %w", env.Kind, err)
	}

	messageID := ids.NewMessageID()
	log := p.log.With(logging.LogFields{
		"event_kind": string(env.Kind),
		"message_id": messageID,
		"queue":      p.cfg.QueueName,
	})

	var lastErr error
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		p.metrics.PublishAttempt()

		lastErr = p.tryPublish(ctx, messageID, env.SentAt, body)
		if lastErr == nil {
			log.Debug("event published", logging.LogFields{"attempt": attempt})
			return nil
		}

		log.Error("publish attempt failed", lastErr, logging.LogFields{
			"attempt":      attempt,
			"max_attempts": p.cfg.Attempts,
		})

		if attempt == p.cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.Delay):
		}
		if err := p.manager.Reconnect(ctx); err != nil {
			lastErr = err
		}
	}

	p.metrics.PublishFailure()
	return fmt.Errorf("%w after %d attempts: %v", ErrPublishFailed, p.cfg.Attempts, lastErr)
}

func (p *Publisher) tryPublish(ctx context.Context, messageID string, sentAt time.Time, body []byte) error {
	ch, err := p.manager.Channel()
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",              // default exchange
		p.cfg.QueueName, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    sentAt,
			Body:         body,
		})
}
