package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/pdf-station/internal/compression"
	"github.com/cuongbtq/pdf-station/internal/config"
	"github.com/cuongbtq/pdf-station/internal/exchange"
	"github.com/cuongbtq/pdf-station/internal/staging"
	"github.com/cuongbtq/pdf-station/internal/storage"
	"github.com/cuongbtq/pdf-station/internal/transform"
	"github.com/cuongbtq/pdf-station/internal/worker"
	"github.com/cuongbtq/pdf-station/shared/logger"
	"github.com/cuongbtq/pdf-station/shared/postgresql"
	"github.com/cuongbtq/pdf-station/shared/rabbitmq"
	"github.com/cuongbtq/pdf-station/shared/sentry"
)

const sentryFlushTimeout = 2 * time.Second

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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	reporter, err := sentry.NewReporter(cfg.ReporterConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize error reporting: %w", err)
	}
	defer reporter.Flush(sentryFlushTimeout)

	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	queues := exchange.Topology(cfg.RabbitMQ.Exchange.Name, exchange.Queues{
		Submitted:  cfg.RabbitMQ.Queues.Submitted,
		Status:     cfg.RabbitMQ.Queues.Status,
		DeadLetter: cfg.RabbitMQ.Queues.DeadLetter,
	})
	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(queues), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	area, err := staging.New(cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.MaxUploadSize, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize staging area: %w", err)
	}

	processor := worker.NewProcessor(&worker.ProcessorConfig{
		Logger:            appLogger.Logger,
		Store:             storage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		Events:            exchange.NewPublisher(rabbitClient),
		Compressor:        compression.NewEngine(),
		Transformer:       transform.NewTransformer(),
		Staging:           area,
		Reporter:          reporter,
		DefaultQuality:    cfg.Compression.DefaultQuality,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:      appLogger.Logger,
		Consumer:    rabbitClient,
		Processor:   processor,
		Queue:       cfg.RabbitMQ.Queues.Submitted,
		WorkerID:    workerID(),
		Concurrency: cfg.Worker.Concurrency,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workerInstance.Start(gctx)
	})

	appLogger.Info("Worker service started successfully")

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
		}
		return err
	case <-ctx.Done():
		appLogger.Info("Received signal, shutting down gracefully")
	}

	// In-flight jobs finish on their own context; bound the wait for them
	select {
	case err := <-done:
		if err != nil {
			return err
		}
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Duration("timeout", cfg.Worker.ShutdownTimeout),
		)
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// workerID doubles as the consumer tag; the suffix keeps restarted pods apart
func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	return hostname + "-" + uuid.NewString()[:8]
}
