package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeKind = "topic"

// AMQPNotifier publishes alerts to a topic exchange with routing key alerts.<severity>.
type AMQPNotifier struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	now      func() time.Time
}

func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	if exchange == "" {
		return nil, errors.New("exchange is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange, now: time.Now}, nil
}

func (a *AMQPNotifier) Notify(ctx context.Context, ev models.AlertEvent) error {
	pub, err := amqpPublishing(ev, a.now())
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ch.PublishWithContext(ctx, a.exchange, routingKey(ev), false, false, pub); err != nil {
		return fmt.Errorf("amqp publish %s: %w", ev.ID, err)
	}
	return nil
}

func (a *AMQPNotifier) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Join(a.ch.Close(), a.conn.Close())
}

func routingKey(ev models.AlertEvent) string {
	return "alerts." + string(ev.Severity)
}

func amqpPublishing(ev models.AlertEvent, now time.Time) (amqp.Publishing, error) {
	data, err := encode(ev, now)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode alert %s: %w", ev.ID, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.CreatedAt,
		Type:         envelopeType,
		Body:         data,
	}, nil
}
