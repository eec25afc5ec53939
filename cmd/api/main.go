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

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/shopflow/commerce-core/internal/accounts"
	"github.com/shopflow/commerce-core/internal/cart"
	"github.com/shopflow/commerce-core/internal/catalog"
	"github.com/shopflow/commerce-core/internal/messaging"
	"github.com/shopflow/commerce-core/internal/orders"
	"github.com/shopflow/commerce-core/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "commerce-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("commerce-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var createdProducer, cancelledProducer *messaging.Producer
	var createdPub, cancelledPub orders.EventPublisher
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		createdProducer = messaging.NewProducer(brokers, messaging.TopicOrderCreated)
		cancelledProducer = messaging.NewProducer(brokers, messaging.TopicOrderCancelled)
		defer func() { _ = createdProducer.Close() }()
		defer func() { _ = cancelledProducer.Close() }()
		createdPub = createdProducer
		cancelledPub = cancelledProducer
	}

	catalogRepo := catalog.NewRepository(db)
	accountsRepo := accounts.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	orderRepo := orders.NewRepository(db)

	cartService := cart.NewService(cartRepo, catalogRepo, logger)
	orderService := orders.NewService(orderRepo, cartService, catalogRepo, accountsRepo, logger)

	catalogHandler := catalog.NewHandler(catalogRepo, logger)
	cartHandler := cart.NewHandler(cartService, logger)
	orderHandler := orders.NewHandler(orderService, createdPub, cancelledPub, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))

	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items/{id}", telemetry.WithHTTPRoute(cartHandler.HandleUpdateItem))
	mux.HandleFunc("DELETE /cart/items/{id}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(orderHandler.HandleCancel))
	mux.HandleFunc("POST /orders/{id}/pay", telemetry.WithHTTPRoute(orderHandler.HandleMarkAsPaid))

	mux.HandleFunc("GET /admin/orders", telemetry.WithHTTPRoute(orderHandler.HandleListAll))
	mux.HandleFunc("DELETE /admin/orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleDelete))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "commerce-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting commerce api", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
