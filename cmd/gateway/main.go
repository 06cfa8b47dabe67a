package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tripflow/internal/config"
	"tripflow/internal/gateway"
	"tripflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Gateway.BookingServiceURL == "" {
		logger.Error("booking service URL is required (BOOKING_SERVICE_URL)")
		os.Exit(1)
	}
	if cfg.Gateway.TripServiceURL == "" {
		logger.Error("trip service URL is required (TRIP_SERVICE_URL)")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	bookingsProxy := gateway.NewServiceProxy(cfg.Gateway.BookingServiceURL, httpClient)
	tripsProxy := gateway.NewServiceProxy(cfg.Gateway.TripServiceURL, httpClient)
	handler := gateway.NewHandler(bookingsProxy, tripsProxy, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bookings", telemetry.WithHTTPRoute(handler.HandleBookings))
	mux.HandleFunc("GET /bookings", telemetry.WithHTTPRoute(handler.HandleBookings))
	mux.HandleFunc("GET /bookings/{id}", telemetry.WithHTTPRoute(handler.HandleBookings))
	mux.HandleFunc("POST /trips/import", telemetry.WithHTTPRoute(handler.HandleTrips))
	mux.HandleFunc("GET /trips", telemetry.WithHTTPRoute(handler.HandleTrips))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr: addr,
		Handler: otelhttp.NewHandler(mux, "gateway",
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
		logger.Info("starting gateway service", "addr", addr)
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
