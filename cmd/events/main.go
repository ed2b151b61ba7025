package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"seatwatch/internal/notifications"
	"seatwatch/internal/shared/config"
	"seatwatch/pkg/logger"
)

// Follows the booking event topic and logs every outcome.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	appLogger := logger.NewWithWriter(os.Stdout, cfg.LogLevel)

	if len(cfg.Kafka.Brokers) == 0 {
		appLogger.Error("KAFKA_BROKERS is not set")
		os.Exit(1)
	}

	consumerConfig := notifications.DefaultConsumerConfig()
	consumerConfig.Brokers = cfg.Kafka.Brokers
	consumerConfig.Topics = []string{cfg.Kafka.BookingTopic}
	consumerConfig.GroupID = cfg.Kafka.ConsumerGroup

	consumer, err := notifications.NewKafkaEventConsumer(consumerConfig, logEvent(appLogger), appLogger)
	if err != nil {
		appLogger.Error("Failed to create consumer", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Following booking events",
		slog.Any("brokers", consumerConfig.Brokers),
		slog.String("topic", cfg.Kafka.BookingTopic),
		slog.String("group", consumerConfig.GroupID),
	)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		appLogger.Error("Consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
	appLogger.Info("Consumer exited")
}

func logEvent(l *logger.Logger) notifications.EventHandler {
	return func(ctx context.Context, event *notifications.BookingEvent) error {
		message := ""
		if event.Message != nil {
			message = *event.Message
		}
		l.InfoContext(ctx, "Booking event",
			slog.String("type", string(event.Type)),
			slog.String("user_id", event.UserID),
			slog.String("date", event.Date),
			slog.String("area", event.Area),
			slog.String("seat", event.Seat),
			slog.String("timeslot", event.Timeslot),
			slog.String("entry_id", event.EntryID),
			slog.Bool("success", event.Success),
			slog.String("message", message),
			slog.Time("occurred_at", event.OccurredAt),
		)
		return nil
	}
}
