package rabbit

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type queueDeclare struct {
	name       string
	durable    bool
	autoDelete bool
	exclusive  bool
}

type fakeChannel struct {
	mu sync.Mutex

	closed   bool
	declares []queueDeclare

	declareErr  error
	consumeErr  error
	publishErrs []error // consumed one per publish; nil entries mean success
	published   []amqp.Publishing

	deliveries chan amqp.Delivery
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declareErr != nil {
		return amqp.Queue{}, f.declareErr
	}
	f.declares = append(f.declares, queueDeclare{name: name, durable: durable, autoDelete: autoDelete, exclusive: exclusive})
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.publishErrs) > 0 {
		err := f.publishErrs[0]
		f.publishErrs = f.publishErrs[1:]
		if err != nil {
			return err
		}
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) ConsumeWithContext(context.Context, string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.deliveries, nil
}

func (f *fakeChannel) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) publishedMessages() []amqp.Publishing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.Publishing(nil), f.published...)
}

type fakeConnection struct {
	mu         sync.Mutex
	closed     bool
	ch         *fakeChannel
	channelErr error
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{ch: newFakeChannel()}
}

func (f *fakeConnection) Channel() (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return f.ch, nil
}

func (f *fakeConnection) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// scriptedDialer fails the first failures dials, then hands out connections
// from conns (the last one repeats).
type scriptedDialer struct {
	mu       sync.Mutex
	failures int
	err      error
	conns    []*fakeConnection
	dials    int
}

func (d *scriptedDialer) dial(string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, d.err
	}
	idx := d.dials - d.failures - 1
	if idx >= len(d.conns) {
		idx = len(d.conns) - 1
	}
	return d.conns[idx], nil
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeAcknowledger records the terminal decision taken for a delivery.
type fakeAcknowledger struct {
	mu       sync.Mutex
	acked    bool
	rejected bool
	requeue  bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = true
	f.requeue = requeue
	return nil
}
