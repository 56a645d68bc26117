package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/pdf-station/internal/api/handler"
	"github.com/cuongbtq/pdf-station/internal/api/router"
	"github.com/cuongbtq/pdf-station/internal/config"
	"github.com/cuongbtq/pdf-station/internal/exchange"
	"github.com/cuongbtq/pdf-station/internal/staging"
	"github.com/cuongbtq/pdf-station/internal/statuscache"
	"github.com/cuongbtq/pdf-station/internal/storage"
	"github.com/cuongbtq/pdf-station/internal/submission"
	"github.com/cuongbtq/pdf-station/shared/logger"
	"github.com/cuongbtq/pdf-station/shared/postgresql"
	"github.com/cuongbtq/pdf-station/shared/rabbitmq"
	"github.com/cuongbtq/pdf-station/shared/redis"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		if err := dbClient.Migrate("up"); err != nil {
			return err
		}
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	redisClient, err := redis.NewClient(cfg.Redis.ClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	area, err := staging.New(cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.MaxUploadSize, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize staging area: %w", err)
	}

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	cache := statuscache.New(redisClient.GetClient(), cfg.Redis.StatusTTL)

	relay := submission.NewRelay(&submission.RelayConfig{
		Logger:    appLogger.Logger,
		Store:     store,
		Publisher: exchange.NewPublisher(rabbitClient),
		Interval:  cfg.Outbox.PollInterval,
		BatchSize: cfg.Outbox.BatchSize,
	})

	service := submission.NewService(&submission.Config{
		Logger:     appLogger.Logger,
		Store:      store,
		Stager:     area,
		Cache:      cache,
		Notifier:   relay,
		MaxRetries: cfg.Jobs.MaxRetries,
	})

	subscriber := statuscache.NewSubscriber(&statuscache.SubscriberConfig{
		Logger:      appLogger.Logger,
		Consumer:    rabbitClient,
		Cache:       cache,
		Queue:       cfg.RabbitMQ.Queues.Status,
		ConsumerTag: consumerTag(),
	})

	r := initRouter(cfg, appLogger.Logger, service, []handler.NamedCheck{
		{Name: "postgres", Checker: dbClient},
		{Name: "rabbitmq", Checker: rabbitClient},
		{Name: "redis", Checker: redisClient},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return relay.Run(gctx)
	})

	g.Go(func() error {
		return subscriber.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown", slog.Any("error", err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRabbitMQ connects and declares the exchange with the job queues
func initRabbitMQ(cfg *config.Config, logger *slog.Logger) (*rabbitmq.Client, error) {
	queues := exchange.Topology(cfg.RabbitMQ.Exchange.Name, exchange.Queues{
		Submitted:  cfg.RabbitMQ.Queues.Submitted,
		Status:     cfg.RabbitMQ.Queues.Status,
		DeadLetter: cfg.RabbitMQ.Queues.DeadLetter,
	})

	return rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(queues), logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, service handler.JobService, checks []handler.NamedCheck) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:             logger,
		Service:            service,
		Checks:             checks,
		ServiceName:        cfg.App.Name,
		MaxUploadSize:      cfg.Storage.MaxUploadSize,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})
}

func consumerTag() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "api"
	}
	return "api-status-" + hostname
}
