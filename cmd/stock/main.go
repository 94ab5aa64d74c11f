package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/stocksync/internal/config"
	"github.com/drblury/stocksync/internal/logging"
	"github.com/drblury/stocksync/internal/metrics"
	"github.com/drblury/stocksync/internal/rabbit"
	"github.com/drblury/stocksync/internal/stock"
	"github.com/drblury/stocksync/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	baseLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	log := logging.NewSlogServiceLogger(baseLogger).With(logging.LogFields{"service": "stock"})
	log.Info("starting", logging.LogFields{"config": cfg.String()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		var err error
		m, err = metrics.New(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go serveMetrics(cfg.MetricsPort, log)
	}

	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open product store: %w", err)
	}
	defer st.Close()

	manager := rabbit.NewConnectionManager(rabbit.ConnectionConfig{
		URL:       cfg.AMQPURL(),
		QueueName: cfg.QueueName,
		Attempts:  cfg.ConnectAttempts,
		Delay:     cfg.ConnectDelay,
	}, log)
	defer manager.Close()

	if err := manager.Connect(ctx); err != nil {
		// The consume loop keeps retrying; starting without a broker is fine.
		log.Error("broker not reachable at startup", err, nil)
	}

	publisher := rabbit.NewPublisher(manager, rabbit.PublisherConfig{
		QueueName: cfg.QueueName,
		Attempts:  cfg.PublishAttempts,
		Delay:     cfg.PublishDelay,
	}, log, m)

	handler := stock.NewHandler(st, log, m)
	subscriber := rabbit.NewSubscriber(manager, cfg.QueueName, rabbit.Handlers{
		OrderReceived:  handler.HandleOrder,
		ProductCreated: handler.UpsertProduct,
		ProductUpdated: handler.UpsertProduct,
		ProductRemoved: handler.RemoveProduct,
	}, log, m,
		rabbit.TracingMiddleware(),
		rabbit.LogMiddleware(log),
		rabbit.TimingMiddleware(m),
	)

	consumeDone := make(chan error, 1)
	go func() { consumeDone <- subscriber.Run(ctx) }()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           stock.NewHTTPHandler(st, publisher, log, manager.IsHealthy),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpDone := make(chan error, 1)
	go func() {
		log.Info("http api listening", logging.LogFields{"addr": cfg.HTTPAddr})
		httpDone <- httpServer.ListenAndServe()
	}()

	consumeStopped := false
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-httpDone:
		return fmt.Errorf("http server: %w", err)
	case err := <-consumeDone:
		consumeStopped = true
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume loop: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", err, nil)
	}

	if !consumeStopped {
		if err := <-consumeDone; err != nil && !errors.Is(err, context.Canceled) {
			log.Error("consume loop stopped", err, nil)
		}
	}
	log.Info("stopped", nil)
	return nil
}

func serveMetrics(port int, log logging.ServiceLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info("metrics listening", logging.LogFields{"addr": addr})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server stopped", err, nil)
	}
}
