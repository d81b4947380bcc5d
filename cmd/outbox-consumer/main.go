package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wurlus/platform/internal/infra"
)

// Topics the platform emits: bet placement and lifecycle, settlement,
// payouts. Downstream notification delivery is out of scope; this consumer
// drains, logs, and counts so topic lag stays observable.
var topics = []string{
	"wurlus.bet.bet_placed",
	"wurlus.bet.bet_settled",
	"wurlus.payout.payout_sent",
	"wurlus.event.event_settled",
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.KafkaEnabled {
		return fmt.Errorf("KAFKA_ENABLED is false; nothing to consume")
	}

	for _, topic := range topics {
		consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, topic, "wurlus-outbox-consumer", true, logger)
		defer consumer.Close()
		go drain(ctx, consumer, topic, logger)
	}

	logger.Info("outbox consumer running", "topics", strings.Join(topics, ","))
	<-ctx.Done()
	logger.Info("outbox consumer shutting down")
	return nil
}

func drain(ctx context.Context, consumer *infra.KafkaConsumer, topic string, logger *slog.Logger) {
	consumed := 0
	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("read failed", "topic", topic, "error", err)
			continue
		}
		consumed++
		logger.Info("event consumed",
			"topic", topic,
			"key", string(msg.Key),
			"offset", msg.Offset,
			"total", consumed,
		)
	}
}
