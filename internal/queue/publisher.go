// Package queue announces settlement outcomes to the payout channel over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segyhp/booking-settlement/internal/config"
	"github.com/segyhp/booking-settlement/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	EventBookingRefunded        = "booking.refunded"
	EventBookingPayoutProcessed = "booking.payout_processed"
	EventBookingPaymentRecorded = "booking.payment_recorded"
)

// Event is the message body published for every settlement outcome. Amount is
// what the payout channel must move: the refund for booking.refunded, the
// seller amount plus collected late fees for booking.payout_processed, the
// payment for booking.payment_recorded. Consumers deduplicate on ID, which is
// also the AMQP message id.
type Event struct {
	ID         uuid.UUID        `json:"id"`
	Type       string           `json:"type"`
	BookingID  uuid.UUID        `json:"booking_id"`
	Amount     decimal.Decimal  `json:"amount"`
	LateFees   *decimal.Decimal `json:"late_fees,omitempty"`
	Reference  string           `json:"reference,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewEvent(eventType string, bookingID uuid.UUID, amount decimal.Decimal, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		BookingID:  bookingID,
		Amount:     amount,
		OccurredAt: occurredAt.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// RabbitPublisher publishes persistent JSON messages to one durable queue
// through the default exchange. It connects on first use and dials again
// after the broker connection or channel closes.
type RabbitPublisher struct {
	mu    sync.Mutex
	url   string
	queue string
	dial  func(url string) (*amqp.Connection, error)
	conn  *amqp.Connection
	ch    *amqp.Channel
}

func NewRabbitPublisher(url, queue string) *RabbitPublisher {
	return &RabbitPublisher{url: url, queue: queue, dial: amqp.Dial}
}

// NewPublisher returns the publisher for cfg. An empty URL turns the broker
// off and events are only logged.
func NewPublisher(cfg config.RabbitMQConfig) Publisher {
	if cfg.URL == "" {
		logger.Log.Warn("RABBITMQ_URL is empty, settlement events will only be logged")
		return LogPublisher{}
	}

	p := NewRabbitPublisher(cfg.URL, cfg.Queue)
	if err := p.Connect(); err != nil {
		logger.Log.WithError(err).Warn("RabbitMQ unavailable, will reconnect on publish")
	}
	return p
}

// Connect dials the broker now rather than on the first publish.
func (p *RabbitPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureChannel()
}

func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Ping reports whether the broker is reachable, reconnecting if needed.
func (p *RabbitPublisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureChannel()
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if closeErr := p.conn.Close(); err == nil {
			err = closeErr
		}
	}
	p.ch, p.conn = nil, nil
	return err
}

// ensureChannel must be called with mu held.
func (p *RabbitPublisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() && !p.conn.IsClosed() {
		return nil
	}
	p.reset()

	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// LogPublisher writes events to the log instead of a broker. It is used when
// no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	logger.Log.WithFields(logrus.Fields{
		"event_id":   event.ID.String(),
		"event_type": event.Type,
		"booking_id": event.BookingID.String(),
		"amount":     event.Amount.StringFixed(2),
	}).Warn("settlement event not delivered to broker")
	return nil
}

func (LogPublisher) Close() error { return nil }
