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

	_ "loan-manager/docs"
	"loan-manager/internal/api"
	"loan-manager/internal/api/middleware"
	"loan-manager/internal/batch"
	"loan-manager/internal/config"
	"loan-manager/internal/domain/customer"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/domain/report"
	"loan-manager/internal/domain/user"
	"loan-manager/internal/event"
	"loan-manager/internal/infrastructure/cache"
	"loan-manager/internal/infrastructure/database/mongodb"
	"loan-manager/internal/infrastructure/database/postgres"
	"loan-manager/internal/infrastructure/logging"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// @title Loan Manager API
// @version 1.0
// @description Loans, customers and interest schedules for private lenders.

// @contact.name API Support
// @contact.email support@loan-manager.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	store := initializeStorage(cfg, logger)
	defer store.close()

	var rabbitMQConn *amqp.Connection
	if cfg.RabbitMQ.Enabled {
		conn, err := setupRabbitMQ(cfg, logger)
		if err != nil {
			logger.Warn("Continuing without RabbitMQ, events will not be published", slog.Any("error", err))
		}
		rabbitMQConn = conn
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled || cfg.Server.RateLimit.Backend == "redis" {
		redisClient = initializeRedisClient(cfg, logger)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	rateLimiter := initializeRateLimiter(bgCtx, cfg, redisClient, logger)
	publisher := initializePublisher(cfg, rabbitMQConn, logger)
	services, loanService := initializeServices(cfg, store, redisClient, publisher, logger)

	cronScheduler := startBatchJobs(cfg, logger,
		batch.NewPurgeJob(loanService, logger),
		batch.NewReminderJob(loanService, publisher, services.Clock, cfg.Batch.ReminderLeadDays, logger),
	)
	router := api.SetupRouter(services, rateLimiter, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, rabbitMQConn, redisClient, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

// storage holds the repositories of whichever database driver is configured.
type storage struct {
	loans     loan.Repository
	customers customer.CustomerRepository
	users     user.Repository
	close     func()
}

func initializeStorage(cfg *config.Config, logger *slog.Logger) *storage {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Database.Driver {
	case "mongo", "mongodb":
		logger.Info("Initializing MongoDB client...")
		client, err := mongodb.NewClient(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("Failed to initialize MongoDB client", "error", err)
			os.Exit(1)
		}
		db := client.Database(cfg.Database.Name)
		if err := mongodb.EnsureIndexes(ctx, db, logger); err != nil {
			logger.Error("Failed to ensure MongoDB indexes", "error", err)
			os.Exit(1)
		}
		return &storage{
			loans:     mongodb.NewLoanRepository(db, logger),
			customers: mongodb.NewCustomerRepository(db, logger),
			users:     mongodb.NewUserRepository(db, logger),
			close: func() {
				logger.Info("Disconnecting MongoDB client...")
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := client.Disconnect(disconnectCtx); err != nil {
					logger.Error("Failed to disconnect MongoDB client", "error", err)
				}
			},
		}
	case "postgres", "":
		logger.Info("Initializing database connection pool...")
		dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("Failed to initialize database connection pool", "error", err)
			os.Exit(1)
		}
		if err := postgres.EnsureSchema(ctx, dbPool, logger); err != nil {
			logger.Error("Failed to ensure database schema", "error", err)
			dbPool.Close()
			os.Exit(1)
		}
		return &storage{
			loans:     postgres.NewLoanRepository(dbPool, logger),
			customers: postgres.NewCustomerRepository(dbPool, logger),
			users:     postgres.NewUserRepository(dbPool, logger),
			close: func() {
				logger.Info("Closing database connection pool...")
				dbPool.Close()
			},
		}
	default:
		logger.Error("Unsupported database driver", "driver", cfg.Database.Driver)
		os.Exit(1)
		return nil
	}
}

func initializeRateLimiter(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *middleware.RateLimiterMiddleware {
	rlCfg := cfg.Server.RateLimit
	if !rlCfg.Enabled {
		return middleware.NewRateLimiterMiddleware(rlCfg, nil, logger)
	}

	var limiter middleware.Limiter
	if rlCfg.Backend == "redis" && redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient, rlCfg.RPS, logger)
	} else {
		memory := middleware.NewMemoryLimiter(rlCfg.RPS, rlCfg.Burst)
		go memory.RunSweeper(ctx, time.Minute)
		limiter = memory
	}
	return middleware.NewRateLimiterMiddleware(rlCfg, limiter, logger)
}

func initializePublisher(cfg *config.Config, rabbitConn *amqp.Connection, logger *slog.Logger) event.EventPublisher {
	if rabbitConn == nil {
		return event.NewNoopEventPublisher(logger)
	}
	pub, err := event.NewRabbitMQEventPublisher(rabbitConn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Warn("Failed to set up RabbitMQ publisher, falling back to no-op", slog.Any("error", err))
		return event.NewNoopEventPublisher(logger)
	}
	return pub
}

func initializeServices(cfg *config.Config, store *storage, redisClient *redis.Client, pub event.EventPublisher, logger *slog.Logger) (api.Services, loan.LoanService) {
	logger.Info("Initializing application components...")

	loanRepo := store.loans
	if cfg.Redis.Enabled && redisClient != nil {
		loanRepo = cache.NewLoanRepository(loanRepo, redisClient, cfg.Redis.CacheTTL, logger)
	}

	clock := loan.SystemClock
	customerService := customer.NewCustomerService(store.customers, loanRepo, pub, logger)
	loanService := loan.NewLoanService(loanRepo, customerService, pub, clock, loan.Options{
		RetentionDays: cfg.Loan.RetentionDays,
		UpcomingDays:  cfg.Loan.UpcomingDays,
	}, logger)
	userService := user.NewService(store.users, bcrypt.DefaultCost, logger)
	reportService := report.NewService(loanService, customerService, clock, logger)

	return api.Services{
		Loans:     loanService,
		Customers: customerService,
		Users:     userService,
		Reports:   reportService,
		Clock:     clock,
	}, loanService
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, rabbitConn *amqp.Connection, redisClient *redis.Client,
	shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	triggerReason := waitForShutdownTrigger(shutdownChan, serverErrors, logger)

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	stopCronScheduler(cronScheduler, logger)
	closeRabbitMQConnection(rabbitConn, logger)
	closeRedisClient(redisClient, logger)
	shutdownHTTPServer(srv, serverErrors, logger)

	logger.Info("Application shutdown process complete.")
}

func waitForShutdownTrigger(shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) string {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received.", "signal", sig.String())
		return "signal: " + sig.String()
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		logger.Info("Server goroutine finished before signal.", "error", err)
		return "server exited"
	}
}

func stopCronScheduler(cronScheduler *cron.Cron, logger *slog.Logger) {
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	if rabbitConn != nil && !rabbitConn.IsClosed() {
		logger.Info("Closing RabbitMQ connection...")
		if err := rabbitConn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
		} else {
			logger.Info("RabbitMQ connection closed.")
		}
	} else if rabbitConn == nil {
		logger.Info("RabbitMQ connection was not established, skipping close.")
	} else {
		logger.Info("RabbitMQ connection already closed, skipping close.")
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		} else {
			logger.Info("HTTP server shutdown initiated.")
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}

func initializeRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	logger.Info("Initializing central Redis client...")
	if cfg.Redis.Addr == "" {
		logger.Error("Redis address (addr) is not configured.")
		os.Exit(1)
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if status := rdb.Ping(ctx); status.Err() != nil {
		logger.Error("Failed to connect to Redis", "error", status.Err(), "addr", cfg.Redis.Addr)
		_ = rdb.Close()
		os.Exit(1)
		return nil
	}

	logger.Info("Central Redis client connected successfully.", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return rdb
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient != nil {
		logger.Info("Closing central Redis client connection...")
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close central Redis client connection gracefully", "error", err)
		} else {
			logger.Info("Central Redis client connection closed.")
		}
	} else {
		logger.Info("Redis client was not initialized, skipping close.")
	}
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, purgeJob, reminderJob batch.Job) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	purgeSpec := cfg.Batch.PurgeSchedule
	if purgeSpec == "" {
		purgeSpec = "0 2 * * *"
		logger.Warn("Purge schedule not configured, using default", "schedule", purgeSpec)
	}
	reminderSpec := cfg.Batch.ReminderSchedule
	if reminderSpec == "" {
		reminderSpec = "0 8 * * *"
		logger.Warn("Reminder schedule not configured, using default", "schedule", reminderSpec)
	}

	jobs := []struct {
		spec    string
		timeout time.Duration
		job     batch.Job
	}{
		{purgeSpec, cfg.Batch.PurgeTimeout, purgeJob},
		{reminderSpec, cfg.Batch.ReminderTimeout, reminderJob},
	}
	for _, j := range jobs {
		jobID, err := batch.Schedule(c, j.spec, j.timeout, j.job, logger)
		if err != nil {
			logger.Error("Failed to schedule job", "job", j.job.Name(), "schedule", j.spec, slog.Any("error", err))
			continue
		}
		logger.Info("Scheduled job", "job", j.job.Name(), "schedule", j.spec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func setupLogger(cfg config.LoggerConfig) *slog.Logger {
	return logging.NewLogger(cfg)
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	retryCount := 5
	for i := 1; i <= retryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", retryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retryCount, err)
}

func rabbitMQURI(cfg config.RabbitMQConfig) (string, error) {
	if cfg.Host == "" {
		return "", fmt.Errorf("RabbitMQ host is not configured")
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return "", fmt.Errorf("RabbitMQ username and password must be provided together")
	}

	port := cfg.Port
	if port == 0 {
		port = 5672
	}
	if cfg.Username != "" {
		return fmt.Sprintf("amqp://%s:%s@%s:%d", cfg.Username, cfg.Password, cfg.Host, port), nil
	}
	return fmt.Sprintf("amqp://%s:%d", cfg.Host, port), nil
}

func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, error) {
	uri, err := rabbitMQURI(cfg.RabbitMQ)
	if err != nil {
		return nil, err
	}

	conn, err := connectRabbitMQ(uri, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		return nil, err
	}
	return conn, nil
}
