package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/segmentio/kafka-go"

	"github.com/shopflow/commerce-core/internal/messaging"
	"github.com/shopflow/commerce-core/internal/telemetry"
	"github.com/shopflow/commerce-core/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(context.Background(), "notification-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	// a fresh consumer group starts from the earliest offset so events
	// published before the worker's first run still get notified
	brokers := strings.Split(kafkaBrokers, ",")
	createdConsumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, "notification-worker",
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = createdConsumer.Close() }()
	cancelledConsumer := messaging.NewConsumer(brokers, messaging.TopicOrderCancelled, "notification-worker",
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = cancelledConsumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := worker.NewNotificationHandler(emailServiceURL, httpClient, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", brokers)

	errCh := make(chan error, 2)
	go func() { errCh <- createdConsumer.Consume(ctx, handler.HandleOrderCreated) }()
	go func() { errCh <- cancelledConsumer.Consume(ctx, handler.HandleOrderCancelled) }()

	if err := <-errCh; err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
