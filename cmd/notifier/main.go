package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loan-manager/internal/config"
	"loan-manager/internal/event"
	"loan-manager/internal/infrastructure/logging"
	"loan-manager/internal/notify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, logger := initializeConfigAndLogger()
	ctx, cancel := setupSignalHandling()
	defer cancel()

	rabbitConn := setupRabbitMQ(cfg, logger)
	defer closeRabbitMQ(rabbitConn, logger)

	mailer := notify.NewSMTPMailer(cfg.SMTP, logger)
	handler := notify.NewReminderHandler(mailer, logger)

	server := newMetricsServer(cfg.Metrics, logger)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start metrics server", slog.Any("error", err))
			cancel()
		}
	}()

	consumer := setupConsumer(rabbitConn, cfg, handler, logger)
	startConsumer(ctx, consumer, logger)

	waitForShutdownSignal(ctx, consumer, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	logger.Info("Shutting down metrics server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down metrics server", slog.Any("error", err))
	}
	logger.Info("Notifier shut down gracefully.")
}

func initializeConfigAndLogger() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(cfg.Logger).With("service", "notifier")
	logger.Info("Configuration loaded successfully")
	return cfg, logger
}

func setupSignalHandling() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newMetricsServer(cfg config.MetricsConfig, logger *slog.Logger) *http.Server {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	port := cfg.Port
	if port == 0 {
		port = 8090
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", path, "port", port)

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) *amqp.Connection {
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", slog.Any("error", err))
		os.Exit(1)
	}
	return rabbitConn
}

func closeRabbitMQ(rabbitConn *amqp.Connection, logger *slog.Logger) {
	logger.Info("Closing RabbitMQ connection...")
	if err := rabbitConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		logger.Error("Error closing RabbitMQ connection", slog.Any("error", err))
	}
}

func setupConsumer(rabbitConn *amqp.Connection, cfg *config.Config, handler *notify.ReminderHandler, logger *slog.Logger) *event.Consumer {
	consumer, err := event.NewConsumer(
		rabbitConn,
		cfg.RabbitMQ.ExchangeName,
		cfg.RabbitMQ.QueueName,
		cfg.RabbitMQ.ConsumerTag,
		[]string{event.RoutingKeyPaymentReminder},
		handler.HandleDelivery,
		logger,
	)
	if err != nil {
		logger.Error("Failed to create RabbitMQ consumer", slog.Any("error", err))
		os.Exit(1)
	}
	return consumer
}

func startConsumer(ctx context.Context, consumer *event.Consumer, logger *slog.Logger) {
	if err := consumer.Start(ctx); err != nil {
		logger.Error("Failed to start RabbitMQ consumer", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Consumer started successfully. Waiting for events or shutdown signal...")
}

func waitForShutdownSignal(ctx context.Context, consumer *event.Consumer, logger *slog.Logger) {
	<-ctx.Done()
	logger.Info("Shutdown signal received. Initiating graceful shutdown...")
	consumer.Stop()
}

func connectRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*amqp.Connection, error) {
	logger.Info("Connecting to RabbitMQ", "host", cfg.Host)
	uri := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Info("RabbitMQ connection established.")

	go func() {
		errChan := conn.NotifyClose(make(chan *amqp.Error, 1))
		if err := <-errChan; err != nil {
			logger.Error("RabbitMQ connection closed unexpectedly", slog.Any("error", err))
		}
	}()

	return conn, nil
}
