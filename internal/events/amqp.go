package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Channel is the part of *amqp.Channel the forwarder needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

const defaultForwardQueue = 256

// ErrForwardQueueFull is returned by Handle when the broker is too slow to
// keep up and the event is dropped.
var ErrForwardQueueFull = errors.New("broker forward queue full, event dropped")

// AMQPForwarder republishes bus events to a RabbitMQ topic exchange with
// routing key "<prefix>.<event type>". Publishing happens on its own
// goroutine; Handle only queues.
type AMQPForwarder struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	prefix   string
	timeout  time.Duration
	logger   *zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *Event
	done   chan struct{}
}

// DialAMQP connects to url and declares the exchange.
func DialAMQP(url, exchange, prefix string, logger *zerolog.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	f, err := NewAMQPForwarder(ch, exchange, prefix, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

// NewAMQPForwarder wraps an already open channel.
func NewAMQPForwarder(ch Channel, exchange, prefix string, logger *zerolog.Logger) (*AMQPForwarder, error) {
	return newAMQPForwarder(ch, exchange, prefix, defaultForwardQueue, logger)
}

func newAMQPForwarder(ch Channel, exchange, prefix string, queueSize int, logger *zerolog.Logger) (*AMQPForwarder, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	f := &AMQPForwarder{
		ch:       ch,
		exchange: exchange,
		prefix:   prefix,
		timeout:  5 * time.Second,
		logger:   logger,
		queue:    make(chan *Event, queueSize),
		done:     make(chan struct{}),
	}
	go f.run()
	return f, nil
}

// RoutingKey returns the key used for an event type.
func (f *AMQPForwarder) RoutingKey(eventType string) string {
	if f.prefix == "" {
		return eventType
	}
	return f.prefix + "." + eventType
}

// Handle queues evt for publishing and never blocks. When the queue is full
// the event is dropped and ErrForwardQueueFull returned.
func (f *AMQPForwarder) Handle(evt *Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil
	}

	select {
	case f.queue <- evt:
		return nil
	default:
		metrics.IncBroker("dropped")
		return fmt.Errorf("%s: %w", evt.Type, ErrForwardQueueFull)
	}
}

func (f *AMQPForwarder) run() {
	defer close(f.done)
	for evt := range f.queue {
		if err := f.publish(evt); err != nil {
			f.logger.Warn().Err(err).Str("event", evt.Type).Msg("forward event to broker failed")
			metrics.IncBroker("failed")
			continue
		}
		metrics.IncBroker("published")
	}
}

// publish sends one event. Failures are not retried.
func (f *AMQPForwarder) publish(evt *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	err := f.ch.PublishWithContext(ctx, f.exchange, f.RoutingKey(evt.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.CreatedAt,
		Type:         evt.Type,
		Body:         evt.Payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// Attach subscribes the forwarder to every event on bus.
func (f *AMQPForwarder) Attach(bus *EventBus) {
	bus.SubscribeAll(f.Handle)
}

// Close stops accepting events, waits for queued ones to be published and
// closes the channel and connection.
func (f *AMQPForwarder) Close() error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	<-f.done

	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
