package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recipeshelf/import-service/internal/api/handler"
	"github.com/recipeshelf/import-service/internal/api/router"
	"github.com/recipeshelf/import-service/internal/config"
	"github.com/recipeshelf/import-service/internal/extractor"
	"github.com/recipeshelf/import-service/internal/orchestrator"
	"github.com/recipeshelf/import-service/internal/recipes"
	"github.com/recipeshelf/import-service/internal/registry"
	"github.com/recipeshelf/import-service/internal/resync"
	"github.com/recipeshelf/import-service/shared/logger"
	"github.com/recipeshelf/import-service/shared/postgresql"
	"github.com/recipeshelf/import-service/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("IMPORT_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/import-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting import service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Persistence backend
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	store := recipes.NewStorage(dbClient.GetDB(), appLogger.Logger)

	// Terminal event publisher (optional)
	var publisher orchestrator.Publisher
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Host != "" {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		publisher = orchestrator.NewAMQPPublisher(rabbitClient)
	} else {
		appLogger.Info("RabbitMQ not configured, terminal event publishing disabled")
	}

	// Registry and orchestrator
	reg := registry.New()

	extractorClient := extractor.NewClient(&extractor.Config{
		BaseURL:        cfg.Extractor.BaseURL,
		ConnectTimeout: cfg.Extractor.ConnectTimeout,
		IdleTimeout:    cfg.Extractor.IdleTimeout,
	}, appLogger.Logger)

	orch := orchestrator.New(&orchestrator.Config{
		Registry:    reg,
		Store:       store,
		Streams:     orchestrator.WrapClient(extractorClient),
		Publisher:   publisher,
		Logger:      appLogger.Logger,
		AutoDismiss: cfg.Registry.AutoDismiss,
	})

	// Pending-import queue and resync coordinator
	queue := resync.NewRedisQueue(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.QueueKey,
		appLogger.Logger,
	)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queue.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	coordinator := resync.NewCoordinator(queue, reg, orch, store, appLogger.Logger)
	go coordinator.Run(ctx, cfg.Resync.Interval)

	// HTTP server
	engine := router.SetupRouter(&handler.Dependencies{
		Logger:       appLogger.Logger,
		Registry:     reg,
		Orchestrator: orch,
		Resyncer:     coordinator,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP server listening",
			slog.Int("port", cfg.Server.Port),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("HTTP server error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()
	orch.CancelAll()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP server shutdown timeout exceeded",
			slog.Any("error", err),
		)
	}

	appLogger.Info("Import service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ publisher client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.PublishRetry,
		PublishRetryDelay:  cfg.PublishDelay,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
