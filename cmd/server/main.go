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

	"github.com/afontenla/bazaar/internal/catalog"
	"github.com/afontenla/bazaar/internal/messaging"
	"github.com/afontenla/bazaar/internal/orders"
	"github.com/afontenla/bazaar/internal/payments"
	"github.com/afontenla/bazaar/internal/search"
	"github.com/afontenla/bazaar/internal/telemetry"
)

const (
	serviceName    = "bazaar"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
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

	var producer *messaging.Producer
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		producer = messaging.NewProducer(strings.Split(kafkaBrokers, ","), "order.created")
		defer func() { _ = producer.Close() }()
	}

	allowAnyTransition := os.Getenv("ORDERS_ALLOW_ANY_TRANSITION") == "true"
	if allowAnyTransition {
		logger.Warn("legacy mode: order status transition checks are disabled")
	}

	catalogRepo := catalog.NewRepository(db)
	searchRepo := search.NewRepository(db)
	orderRepo := orders.NewRepository(db)

	catalogHandler := catalog.NewHandler(catalogRepo, logger)
	searchHandler := search.NewHandler(searchRepo, logger)
	orderHandler := orders.NewHandler(orderRepo, catalogRepo, producer, logger, allowAnyTransition)
	paymentHandler := payments.NewHandler(orderRepo, payments.NewMockProvider(), logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", metricsHandler)

	mux.HandleFunc("POST /categories", telemetry.WithHTTPRoute(catalogHandler.HandleCreateCategory))
	mux.HandleFunc("GET /categories", telemetry.WithHTTPRoute(catalogHandler.HandleListCategories))
	mux.HandleFunc("GET /categories/{id}/items", telemetry.WithHTTPRoute(searchHandler.HandleListByCategory))
	mux.HandleFunc("POST /stores", telemetry.WithHTTPRoute(catalogHandler.HandleCreateStore))
	mux.HandleFunc("GET /stores", telemetry.WithHTTPRoute(catalogHandler.HandleListStores))
	mux.HandleFunc("GET /stores/{id}/items", telemetry.WithHTTPRoute(searchHandler.HandleListByStore))

	mux.HandleFunc("POST /items", telemetry.WithHTTPRoute(catalogHandler.HandleCreateItem))
	mux.HandleFunc("GET /items", telemetry.WithHTTPRoute(searchHandler.HandleSearch))
	mux.HandleFunc("GET /items/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGetItem))
	mux.HandleFunc("PATCH /items/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleUpdateItem))

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))
	mux.HandleFunc("POST /orders/{id}/payment-intent", telemetry.WithHTTPRoute(paymentHandler.HandleCreateIntent))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, serviceName,
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
		logger.Info("starting storefront service", "port", port)
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
