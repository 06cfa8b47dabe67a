package bus

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	consumerTracer = otel.Tracer("bus/consumer")

	processedCounter metric.Int64Counter
)

func init() {
	var err error
	processedCounter, err = otel.Meter("bus/consumer").Int64Counter(
		"messaging.client.consumed.messages",
		metric.WithDescription("Deliveries handled by the consumer, by outcome."),
	)
	if err != nil {
		otel.Handle(err)
	}
}

// Exchange is the single topic exchange shared by every service on the
// platform. All events are routed through it by routing key.
const Exchange = "travel.events"

// Bus owns the AMQP connection and channel for one process. It must be
// constructed before the process starts serving; there is no reconnect, a
// lost connection ends the consume loop and the process is expected to be
// restarted by its supervisor.
type Bus struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url string) (*Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	// Prefetch 1 keeps message handling sequential per queue: one message is
	// processed to completion before the next is dequeued.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Bus{conn: conn, ch: ch}, nil
}

type queueConfig struct {
	deadLetterExchange string
}

type QueueOption func(*queueConfig)

// WithDeadLetter routes discarded messages to the given exchange instead of
// dropping them.
func WithDeadLetter(exchange string) QueueOption {
	return func(cfg *queueConfig) {
		cfg.deadLetterExchange = exchange
	}
}

// DeclareQueue declares a durable queue and binds it to every given routing
// key on the shared exchange. Declaration and binding are idempotent.
func (b *Bus) DeclareQueue(name string, keys []string, opts ...QueueOption) error {
	cfg := queueConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var args amqp.Table
	if cfg.deadLetterExchange != "" {
		args = amqp.Table{"x-dead-letter-exchange": cfg.deadLetterExchange}
	}

	if _, err := b.ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}

	for _, key := range keys {
		if err := b.ch.QueueBind(name, key, Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", name, key, err)
		}
	}

	return nil
}

// Delivery is one message handed to a consumer handler. Redelivered is set
// by the broker when the message was already delivered at least once.
type Delivery struct {
	RoutingKey  string
	Body        []byte
	Redelivered bool
}

// Handler processes one delivery. A nil return acknowledges the message, an
// error wrapped with Discard rejects it permanently, and any other error
// rejects it back onto the queue for redelivery.
type Handler func(ctx context.Context, d Delivery) error

type discardError struct {
	err error
}

func (e discardError) Error() string { return e.err.Error() }
func (e discardError) Unwrap() error { return e.err }

// Discard marks an error as permanent so the offending message is dropped
// instead of redelivered forever.
func Discard(err error) error {
	return discardError{err: err}
}

// IsDiscard reports whether err carries a Discard marker anywhere in its
// chain.
func IsDiscard(err error) bool {
	var d discardError
	return errors.As(err, &d)
}

// ack/requeue decision for a handler result.
func decide(err error) (ack bool, requeue bool) {
	if err == nil {
		return true, false
	}
	var d discardError
	if errors.As(err, &d) {
		return false, false
	}
	return false, true
}

func outcomeLabel(ack, requeue bool) string {
	switch {
	case ack:
		return "ack"
	case requeue:
		return "requeue"
	default:
		return "discard"
	}
}

// Consume delivers messages from the queue to the handler, one at a time,
// until ctx is cancelled or the broker connection is lost. Connection loss
// is returned as an error; the caller is expected to treat it as fatal.
func (b *Bus) Consume(ctx context.Context, queue string, handler Handler) error {
	deliveries, err := b.ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", queue, err)
	}

	for msg := range deliveries {
		if err := b.process(ctx, queue, msg, handler); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("consume queue %s: delivery channel closed", queue)
}

func (b *Bus) process(ctx context.Context, queue string, msg amqp.Delivery, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+msg.RoutingKey,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(queue),
			semconv.MessagingRabbitmqDestinationRoutingKey(msg.RoutingKey),
			semconv.MessagingRabbitmqMessageDeliveryTag(int(msg.DeliveryTag)),
		),
	)
	defer span.End()

	handlerErr := handler(spanCtx, Delivery{
		RoutingKey:  msg.RoutingKey,
		Body:        msg.Body,
		Redelivered: msg.Redelivered,
	})
	if handlerErr != nil {
		span.RecordError(handlerErr)
		span.SetStatus(codes.Error, handlerErr.Error())
	}

	ack, requeue := decide(handlerErr)
	processedCounter.Add(spanCtx, 1, metric.WithAttributes(
		semconv.MessagingDestinationName(queue),
		attribute.String("messaging.outcome", outcomeLabel(ack, requeue)),
	))
	if ack {
		if err := msg.Ack(false); err != nil {
			return fmt.Errorf("ack message on %s: %w", queue, err)
		}
		return nil
	}
	if err := msg.Nack(false, requeue); err != nil {
		return fmt.Errorf("nack message on %s: %w", queue, err)
	}
	return nil
}

func (b *Bus) Close() error {
	if err := b.ch.Close(); err != nil {
		_ = b.conn.Close()
		return err
	}
	return b.conn.Close()
}
