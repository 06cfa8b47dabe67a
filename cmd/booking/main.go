package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"tripflow/internal/booking"
	"tripflow/internal/bus"
	"tripflow/internal/config"
	"tripflow/internal/flights"
	"tripflow/internal/telemetry"
)

const confirmationQueue = "booking_confirmation_queue"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		logger.Error("database URL is required (POSTGRES_URL)")
		os.Exit(1)
	}
	if cfg.Broker.URL == "" {
		logger.Error("broker URL is required (AMQP_URL)")
		os.Exit(1)
	}
	if cfg.Flights.ServiceURL == "" {
		logger.Error("flight service URL is required (FLIGHT_SERVICE_URL)")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "booking", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("booking", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := db.Exec("SET search_path TO booking"); err != nil {
		logger.Error("failed to set search_path", "error", err)
		os.Exit(1)
	}

	broker, err := bus.New(cfg.Broker.URL)
	if err != nil {
		logger.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer func() { _ = broker.Close() }()

	if err := broker.DeclareQueue(confirmationQueue, []string{"payment.succeeded"}); err != nil {
		logger.Error("failed to declare queue", "error", err)
		os.Exit(1)
	}

	flightClient := flights.NewClient(cfg.Flights.ServiceURL, &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})

	repo := booking.NewRepository(db)
	publisher := bus.NewPublisher(broker)
	handler := booking.NewHandler(repo, flightClient, publisher, logger)
	confirmer := booking.NewConfirmer(repo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bookings", telemetry.WithHTTPRoute(handler.HandleCreate))
	mux.HandleFunc("GET /bookings", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /bookings/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8081"
	}

	server := &http.Server{
		Addr: addr,
		Handler: otelhttp.NewHandler(mux, "booking",
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

	consumeCtx, cancelConsume := context.WithCancel(ctx)
	defer cancelConsume()

	go func() {
		logger.Info("starting confirmation consumer", "queue", confirmationQueue)
		if err := broker.Consume(consumeCtx, confirmationQueue, confirmer.Handle); err != nil {
			if consumeCtx.Err() == context.Canceled {
				logger.Info("consumer stopped")
				return
			}
			logger.Error("consumer error", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		logger.Info("starting booking service", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancelConsume()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
