package main

import (
	"context"
	"errors"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tickrush/flash-sale/pkg/dedupe"
	"github.com/tickrush/flash-sale/pkg/logging"
	"github.com/tickrush/flash-sale/pkg/shutdown"
	"github.com/tickrush/flash-sale/pkg/tracing"

	"github.com/tickrush/flash-sale/internal/notification"
	"github.com/tickrush/flash-sale/internal/order/domain"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Configuration
	kafkaBrokers := []string{env("KAFKA_ADDR", "localhost:9092")}
	redisAddr := env("REDIS_ADDR", "localhost:6379")
	otlpEndpoint := env("OTLP_ENDPOINT", "http://localhost:4318/v1/traces")
	group := env("CONSUMER_GROUP", "notify-worker")
	dedupeTTL := envDuration("DEDUPE_TTL", 10*time.Minute)

	tp, err := tracing.Init(ctx, "notify-worker", otlpEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	defer rdb.Close()

	dd := dedupe.NewStore(rdb, dedupeTTL)
	consumer := notification.NewConsumer(log, kafkaBrokers, domain.OrderCreatedTopic, group, dd,
		notification.NewLogChannel(log))

	log.Info("consuming", "topic", domain.OrderCreatedTopic, "group", group)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("notify-worker shutdown complete")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
