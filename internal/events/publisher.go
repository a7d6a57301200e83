package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/sellava/storefront-cart-go/internal/cart"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch       channel
	producer string
	logger   zerolog.Logger
}

func NewPublisher(conn *amqp.Connection, producer string, logger zerolog.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return newPublisher(ch, producer, logger)
}

func newPublisher(ch channel, producer string, logger zerolog.Logger) (*Publisher, error) {
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	if producer == "" {
		producer = CartServiceProducer
	}
	return &Publisher{ch: ch, producer: producer, logger: logger}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishCartCheckedOut(ctx context.Context, meta EventMeta, snap cart.Snapshot, method PaymentMethod) error {
	ev := BuildCartCheckedOutEvent(snap, method, p.producer, meta)

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal CartCheckedOut: %w", err)
	}
	if err := p.publishJSON(ctx, CartCheckedOutRoutingKey, ev.EventID, ev.CorrelationID, body); err != nil {
		return fmt.Errorf("publish CartCheckedOut: %w", err)
	}

	p.logger.Info().
		Str("event_id", ev.EventID).
		Str("store_id", ev.PartitionKey).
		Str("correlation_id", ev.CorrelationID).
		Float64("total", ev.Payload.TotalAmount).
		Msg("published CartCheckedOut")
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID, correlationID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     messageID,
			CorrelationId: correlationID,
			Timestamp:     time.Now().UTC(),
			Body:          body,
		},
	)
}

// LogPublisher stands in for RabbitMQ when publishing is disabled. It only
// logs the event it would have sent.
type LogPublisher struct {
	Producer string
	Logger   zerolog.Logger
}

func (p LogPublisher) PublishCartCheckedOut(ctx context.Context, meta EventMeta, snap cart.Snapshot, method PaymentMethod) error {
	ev := BuildCartCheckedOutEvent(snap, method, p.Producer, meta)
	p.Logger.Info().
		Str("event_id", ev.EventID).
		Str("store_id", ev.PartitionKey).
		Str("payment_method", string(method)).
		Float64("total", ev.Payload.TotalAmount).
		Msg("CartCheckedOut not published, publishing disabled")
	return nil
}
