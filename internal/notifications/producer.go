package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"seatwatch/pkg/logger"
)

// EventProducer publishes booking outcomes for downstream consumers
type EventProducer interface {
	PublishBookingEvent(ctx context.Context, event *BookingEvent) error
	Close() error
	HealthCheck(ctx context.Context) error
}

// KafkaProducerConfig contains configuration for the Kafka event producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "booking-events",
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000,
	}
}

// KafkaEventProducer publishes booking events to Kafka
type KafkaEventProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
	logger   *logger.Logger
}

// NewKafkaEventProducer connects a synchronous producer to the brokers
func NewKafkaEventProducer(config *KafkaProducerConfig, log *logger.Logger) (*KafkaEventProducer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash on the user id so one user's events stay ordered
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Info("Kafka booking event producer created", "brokers", config.Brokers, "topic", config.Topic)
	return NewKafkaEventProducerWithClient(producer, config, log), nil
}

// NewKafkaEventProducerWithClient wraps an existing sarama producer
func NewKafkaEventProducerWithClient(producer sarama.SyncProducer, config *KafkaProducerConfig, log *logger.Logger) *KafkaEventProducer {
	return &KafkaEventProducer{
		producer: producer,
		config:   config,
		logger:   log,
	}
}

// PublishBookingEvent publishes a single event
func (p *KafkaEventProducer) PublishBookingEvent(ctx context.Context, event *BookingEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.config.Topic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   p.createHeaders(event),
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send booking event to Kafka: %w", err)
	}

	p.logger.DebugContext(ctx, "Booking event published",
		"topic", p.config.Topic,
		"partition", partition,
		"offset", offset,
		"type", event.Type,
		"event_id", event.ID.String(),
	)
	return nil
}

func (p *KafkaEventProducer) createHeaders(event *BookingEvent) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("user_id"), Value: []byte(event.UserID)},
		{Key: []byte("producer"), Value: []byte("seatwatch")},
		{Key: []byte("occurred_at"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
	}
	if event.EntryID != "" {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("entry_id"),
			Value: []byte(event.EntryID),
		})
	}
	return headers
}

// Close closes the Kafka producer
func (p *KafkaEventProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	p.logger.Info("Kafka booking event producer closed")
	return nil
}

// HealthCheck validates the producer configuration
func (p *KafkaEventProducer) HealthCheck(ctx context.Context) error {
	if p.producer == nil {
		return fmt.Errorf("health check failed - producer is nil")
	}
	if p.config.Topic == "" {
		return fmt.Errorf("health check failed - booking topic not configured")
	}
	return nil
}

// noopProducer is used when no brokers are configured
type noopProducer struct {
	logger *logger.Logger
}

// NewNoopProducer returns a producer that only logs
func NewNoopProducer(log *logger.Logger) EventProducer {
	return &noopProducer{logger: log}
}

func (p *noopProducer) PublishBookingEvent(ctx context.Context, event *BookingEvent) error {
	p.logger.DebugContext(ctx, "Booking event not published, no brokers configured", "type", event.Type)
	return nil
}

func (p *noopProducer) Close() error {
	return nil
}

func (p *noopProducer) HealthCheck(context.Context) error {
	return nil
}
