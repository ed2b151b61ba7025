package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"seatwatch/pkg/logger"
)

// EventHandler processes one booking event
type EventHandler func(ctx context.Context, event *BookingEvent) error

type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	Topics         []string
	SessionTimeout time.Duration
	Heartbeat      time.Duration
	OffsetOldest   bool
	MaxRetries     int
	RetryBackoff   time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:        []string{"localhost:9092"},
		GroupID:        "seatwatch-event-readers",
		Topics:         []string{"booking-events"},
		SessionTimeout: 30 * time.Second,
		Heartbeat:      3 * time.Second,
		OffsetOldest:   false,
		MaxRetries:     3,
		RetryBackoff:   time.Second,
	}
}

// KafkaEventConsumer feeds booking events from a consumer group to a handler
type KafkaEventConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	handler       *consumerGroupHandler
	logger        *logger.Logger
}

func NewKafkaEventConsumer(config *ConsumerConfig, handler EventHandler, log *logger.Logger) (*KafkaEventConsumer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Consumer.Group.Session.Timeout = config.SessionTimeout
	saramaConfig.Consumer.Group.Heartbeat.Interval = config.Heartbeat
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &KafkaEventConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		handler:       newConsumerGroupHandler(config, handler, log),
		logger:        log,
	}, nil
}

// Run consumes until ctx is cancelled
func (c *KafkaEventConsumer) Run(ctx context.Context) error {
	c.logger.Info("Starting booking event consumer", "topics", c.config.Topics, "group", c.config.GroupID)

	go func() {
		for err := range c.consumerGroup.Errors() {
			c.logger.Error("Consumer group error", "error", err)
		}
	}()

	for {
		err := c.consumerGroup.Consume(ctx, c.config.Topics, c.handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			c.logger.Error("Error consuming booking events", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *KafkaEventConsumer) Close() error {
	if err := c.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	c.logger.Info("Booking event consumer stopped")
	return nil
}

type consumerGroupHandler struct {
	config  *ConsumerConfig
	handler EventHandler
	logger  *logger.Logger
}

func newConsumerGroupHandler(config *ConsumerConfig, handler EventHandler, log *logger.Logger) *consumerGroupHandler {
	return &consumerGroupHandler{config: config, handler: handler, logger: log}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Consumer group session started")
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Consumer group session ended")
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.processMessage(session.Context(), message); err != nil {
				h.logger.Error("Failed to process booking event",
					"partition", message.Partition, "offset", message.Offset, "error", err)
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event BookingEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal booking event: %w", err)
	}
	return h.executeWithRetry(ctx, &event)
}

func (h *consumerGroupHandler) executeWithRetry(ctx context.Context, event *BookingEvent) error {
	var err error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if err = h.handler(ctx, event); err == nil {
			return nil
		}
		if attempt == h.config.MaxRetries {
			break
		}

		// Exponential backoff
		delay := h.config.RetryBackoff * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
