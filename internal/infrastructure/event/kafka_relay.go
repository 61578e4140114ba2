package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tourism/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// MessageWriter is the part of kafka.Writer the relay needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRelayConfig configures the relay
type KafkaRelayConfig struct {
	Brokers      []string
	TopicPrefix  string
	WriteTimeout time.Duration
}

// KafkaRelay forwards domain events to Kafka as JSON.
// Messages are keyed by aggregate id so one sale's events stay ordered on one partition.
type KafkaRelay struct {
	writer       MessageWriter
	catalog      *Catalog
	topicPrefix  string
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewKafkaRelay creates a relay writing to the configured brokers
func NewKafkaRelay(cfg KafkaRelayConfig, catalog *Catalog, logger *zap.Logger) (*KafkaRelay, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka relay requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		// topics are created by ops
		AllowAutoTopicCreation: false,
	}
	return NewKafkaRelayWithWriter(writer, cfg, catalog, logger), nil
}

// NewKafkaRelayWithWriter creates a relay on top of an existing writer
func NewKafkaRelayWithWriter(writer MessageWriter, cfg KafkaRelayConfig, catalog *Catalog, logger *zap.Logger) *KafkaRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaRelay{
		writer:       writer,
		catalog:      catalog,
		topicPrefix:  strings.TrimSuffix(cfg.TopicPrefix, "."),
		writeTimeout: timeout,
		logger:       logger,
	}
}

// EventTypes returns the relayed event types, every registered one
func (r *KafkaRelay) EventTypes() []string {
	return r.catalog.Types()
}

// Topic returns the topic an event type is written to
func (r *KafkaRelay) Topic(eventType string) string {
	if r.topicPrefix == "" {
		return eventType
	}
	return r.topicPrefix + "." + eventType
}

// Handle writes one message for the event
func (r *KafkaRelay) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := r.catalog.Encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: r.Topic(event.EventType()),
		Key:   []byte(event.AggregateID().String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID().String())},
			{Key: "event_type", Value: []byte(event.EventType())},
			{Key: "aggregate_type", Value: []byte(event.AggregateType())},
		},
		Time: event.OccurredAt().UTC(),
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s to kafka: %w", event.EventType(), err)
	}

	r.logger.Debug("event relayed",
		zap.String("topic", msg.Topic),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// Close flushes and closes the writer
func (r *KafkaRelay) Close() error {
	return r.writer.Close()
}

var _ shared.EventHandler = (*KafkaRelay)(nil)
