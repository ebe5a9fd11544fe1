package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shopify/sarama"
	"github.com/odect/odect/pkg/odect/base"
)

const defaultKafkaTimeout = 10 * time.Second

// Kafka publishes one JSON message per hour to a Kafka topic.
type Kafka struct {
	logger   *slog.Logger
	topic    string
	producer sarama.SyncProducer
}

// NewKafka returns a new Kafka sink with a synchronous producer.
func NewKafka(c *KafkaConfig, logger *slog.Logger) (*Kafka, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, fmt.Errorf("%w: kafka: brokers and topic are required", ErrMisconfigured)
	}

	config := sarama.NewConfig()
	config.ClientID = base.AppName
	if c.ClientID != "" {
		config.ClientID = c.ClientID
	}

	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultKafkaTimeout
	}

	config.Producer.Timeout = timeout
	config.Net.DialTimeout = timeout

	producer, err := sarama.NewSyncProducer(c.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("%w: kafka: %w", ErrPublish, err)
	}

	return newKafka(producer, c.Topic, logger), nil
}

func newKafka(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Kafka {
	return &Kafka{
		logger:   logger,
		topic:    topic,
		producer: producer,
	}
}

// Name returns the sink name.
func (s *Kafka) Name() string {
	return "kafka"
}

// Publish sends one message per hour keyed by zone and timestamp.
func (s *Kafka) Publish(ctx context.Context, b *Batch) error {
	hours := Hours(b)
	if len(hours) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(hours))

	for _, h := range hours {
		value, err := json.Marshal(h)
		if err != nil {
			return err
		}

		msgs = append(msgs, &sarama.ProducerMessage{
			Topic:     s.topic,
			Key:       sarama.StringEncoder(h.Zone + "/" + h.Timestamp.UTC().Format(time.RFC3339)),
			Value:     sarama.ByteEncoder(value),
			Timestamp: h.Timestamp,
		})
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.producer.SendMessages(msgs); err != nil {
		var perrs sarama.ProducerErrors
		if errors.As(err, &perrs) {
			s.logger.Error("Failed to publish messages to Kafka", "failed", len(perrs), "total", len(msgs))
		}

		return fmt.Errorf("%w: kafka: %w", ErrPublish, err)
	}

	s.logger.Debug("Messages published to Kafka", "topic", s.topic, "messages", len(msgs))

	return nil
}

// Close closes the producer.
func (s *Kafka) Close() error {
	return s.producer.Close()
}
