package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/media-rental/internal/queue"
)

// Publisher delivers domain events after the mutation that produced them
// has committed.
type Publisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// NopPublisher drops every event.  It is used when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.Event) error { return nil }

// AMQPPublisher publishes events to the durable rental.events queue on
// the default exchange.  Each publish opens its own connection; rental
// mutations are rare enough that a pool is not worth the reconnect
// bookkeeping.  Messages are marked persistent.
type AMQPPublisher struct {
	URL    string
	Logger *slog.Logger
}

// Publish sends ev.  Any error is logged and returned so the caller can
// choose to ignore it.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		logger.Warn("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.QueueName, true, false, false, false, nil); err != nil {
		logger.Warn("rabbitmq: queue declare failed", "err", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.QueueName, false, false, pub); err != nil {
		logger.Warn("rabbitmq: publish failed", "type", ev.Type, "err", err)
		return err
	}
	return nil
}

// publishAfterCommit sends ev without letting a broker failure fail the
// request.  The request context may already be done by the time the
// handler returns, so the publish gets its own short deadline.
func publishAfterCommit(p Publisher, logger *slog.Logger, ev queue.Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn("event not published", "type", ev.Type, "err", err)
	}
}
