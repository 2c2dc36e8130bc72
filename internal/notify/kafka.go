package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes alerts to a Kafka topic, keyed by location.
type KafkaNotifier struct {
	writer *kafka.Writer
	now    func() time.Time
}

// KafkaConfig configures the topic writer. Zero BatchTimeout and MaxAttempts
// use the defaults below rather than the library's 1s and 10.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
	MaxAttempts  int
}

const (
	defaultKafkaBatchTimeout = 10 * time.Millisecond
	defaultKafkaMaxAttempts  = 3
)

func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultKafkaBatchTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultKafkaMaxAttempts
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              1, // one alert per write
			BatchTimeout:           cfg.BatchTimeout,
			WriteTimeout:           cfg.WriteTimeout,
			MaxAttempts:            cfg.MaxAttempts,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}, nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, ev models.AlertEvent) error {
	msg, err := kafkaMessage(ev, k.now())
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", ev.ID, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

func kafkaMessage(ev models.AlertEvent, now time.Time) (kafka.Message, error) {
	data, err := encode(ev, now)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode alert %s: %w", ev.ID, err)
	}
	return kafka.Message{
		Key:   []byte(ev.Location),
		Value: data,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(ev.ID)},
			{Key: "severity", Value: []byte(ev.Severity)},
		},
		Time: ev.CreatedAt,
	}, nil
}
