package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogFileName is the file under the log directory that events are
// appended to.
const LogFileName = "rentals.log"

// Consumer reads rental.events and appends one line per event to
// <Dir>/rentals.log.
type Consumer struct {
	URL    string
	Dir    string
	Logger *slog.Logger
}

// Run connects to RabbitMQ, declares the durable queue and consumes until
// ctx is cancelled.  Broker failures are retried with exponential
// backoff capped at 30 seconds; a message that cannot be handled is
// rejected without requeue so it cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Warn("event consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("event consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("event consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				logger.Error("event consumer: handle message failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the log file.
func (c *Consumer) Handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev) + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human readable line.
func FormatLine(ev Event) string {
	parts := []string{fmt.Sprintf("[%s] %s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type)}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	if ev.RentalID != 0 {
		add("rental_id", fmt.Sprint(ev.RentalID))
	}
	add("client", ev.ClientKey)
	if ev.ItemID != 0 {
		add("item_id", fmt.Sprint(ev.ItemID))
	}
	add("rental_date", ev.RentalDate)
	add("expected", ev.ExpectedReturn)
	add("returned", ev.ActualReturn)
	if ev.AmountCharged != nil {
		add("amount", ev.AmountCharged.StringFixed(2))
	}
	if ev.DaysLate != nil {
		add("days_late", fmt.Sprint(*ev.DaysLate))
	}
	if ev.LateFee != nil {
		add("late_fee", ev.LateFee.StringFixed(2))
	}
	if ev.MemberID != 0 {
		add("member_id", fmt.Sprint(ev.MemberID))
	}
	if ev.Active != nil {
		add("active", fmt.Sprint(*ev.Active))
	}
	if len(ev.DependentIDs) > 0 {
		ids := make([]string, len(ev.DependentIDs))
		for i, id := range ev.DependentIDs {
			ids[i] = fmt.Sprint(id)
		}
		add("dependents", "["+strings.Join(ids, ",")+"]")
	}
	return strings.Join(parts, " | ")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
