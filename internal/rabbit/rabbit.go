// Package rabbit owns the RabbitMQ connection lifecycle and the durable
// publish/consume paths on top of it.
package rabbit

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrUnavailable is returned when the broker could not be reached within
	// the configured number of connect attempts.
	ErrUnavailable = errors.New("rabbit: broker unavailable")

	// ErrPublishFailed is returned when a message could not be published
	// within the configured number of attempts. The message is dropped; the
	// caller logs and moves on, it never rolls back the originating write.
	ErrPublishFailed = errors.New("rabbit: publish failed permanently")

	// ErrNotConnected is returned when an operation needs a channel but no
	// healthy connection is established.
	ErrNotConnected = errors.New("rabbit: not connected")
)

// Channel is the subset of the broker channel API used by the publisher and
// subscriber. *amqp091.Channel satisfies it; tests substitute fakes.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// Connection is the subset of the broker connection API the manager needs.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection. The default dials AMQP; tests override
// it with fakes.
type Dialer func(url string) (Connection, error)

// AMQPDialer dials the broker with the amqp091 client.
func AMQPDialer(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn: conn}, nil
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *amqpConnection) IsClosed() bool { return c.conn.IsClosed() }
func (c *amqpConnection) Close() error   { return c.conn.Close() }
