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
	"time"

	"github.com/cuongbtq/job-audit/internal/api/handler"
	"github.com/cuongbtq/job-audit/internal/api/router"
	"github.com/cuongbtq/job-audit/internal/audit"
	"github.com/cuongbtq/job-audit/internal/broadcast"
	"github.com/cuongbtq/job-audit/internal/config"
	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/internal/extract"
	"github.com/cuongbtq/job-audit/internal/fetcher"
	"github.com/cuongbtq/job-audit/internal/queue"
	"github.com/cuongbtq/job-audit/internal/scheduler"
	"github.com/cuongbtq/job-audit/internal/scrape"
	"github.com/cuongbtq/job-audit/internal/storage"
	"github.com/cuongbtq/job-audit/shared/gcs"
	"github.com/cuongbtq/job-audit/shared/llm"
	"github.com/cuongbtq/job-audit/shared/logger"
	"github.com/cuongbtq/job-audit/shared/postgresql"
	"github.com/cuongbtq/job-audit/shared/rabbitmq"
	"github.com/cuongbtq/job-audit/shared/redislock"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	// Optional blob store for page snapshots and screenshots
	var blobs fetcher.BlobStore
	if cfg.Storage.Bucket != "" {
		blobStore, err := initBlobStore(ctx, &cfg.Storage, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize blob store: %w", err)
		}
		defer blobStore.Close()
		blobs = blobStore
	}

	// Optional Redis for the broadcast gate lock
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = redislock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer rdb.Close()
		appLogger.Info("Redis connection established")
	}

	loc, err := time.LoadLocation(cfg.Broadcast.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	auditService := initAuditService(cfg, store, queue.NewTaskQueue(rabbitClient, appLogger.Logger), blobs, appLogger.Logger)
	gate := initBroadcastGate(cfg, store, rdb, loc, appLogger.Logger)
	sources := toOpenTaskInputs(cfg.Sources)

	// Start the scheduler
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(auditService, gate, sources, scheduler.Config{
			SeedSpec:      cfg.Scheduler.SeedSpec,
			BroadcastSpec: cfg.Scheduler.BroadcastSpec,
			Location:      loc,
		}, appLogger.Logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { <-sched.Stop().Done() }()
	}

	// Initialize router
	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:    appLogger.Logger,
		DB:        dbClient,
		Audit:     auditService,
		Gate:      gate,
		Positions: store,
		Sources:   sources,
		Location:  loc,
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down server...")
	case err := <-errChan:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig, app *config.AppConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		Service:      app.Name,
		Version:      app.Version,
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

// initRabbitMQ initializes the RabbitMQ client
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
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.DeadLetter.Exchange,
		DeadLetterQueue:    cfg.DeadLetter.Queue,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initBlobStore initializes the GCS blob store
func initBlobStore(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (*gcs.Store, error) {
	return gcs.NewStore(ctx, &gcs.Config{
		Bucket:          cfg.Bucket,
		Prefix:          cfg.Prefix,
		CredentialsFile: cfg.CredentialsFile,
		Endpoint:        cfg.Endpoint,
	}, logger)
}

// initAuditService wires the closed-role checker and scrape pipeline behind
// the audit service so POST /tasks/handle can run tasks in process
func initAuditService(cfg *config.Config, store *storage.Storage, q audit.Queue, blobs fetcher.BlobStore, logger *slog.Logger) *audit.Service {
	llmClient := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	pages := fetcher.New(fetcher.NewChromeBrowser(cfg.Browser.CDPURL, cfg.Browser.NavTimeout), blobs, logger)

	pipeline := scrape.NewPipeline(
		pages,
		extract.NewLinkExtractor(llmClient, logger),
		extract.NewJobExtractor(llmClient, logger),
		store,
		scrape.Config{
			Concurrency:  cfg.Scraper.Concurrency,
			RatePerHost:  cfg.Scraper.RatePerHost,
			BurstPerHost: cfg.Scraper.BurstPerHost,
		},
		logger,
	)

	return audit.NewService(&audit.Dependencies{
		Store:   store,
		Queue:   q,
		Checker: extract.NewClosedRoleChecker(pages, llmClient, blobs, logger),
		Scraper: pipeline,
		Logger:  logger,
	})
}

// initBroadcastGate builds the gate, locked through Redis when available
func initBroadcastGate(cfg *config.Config, store *storage.Storage, rdb *redis.Client, loc *time.Location, logger *slog.Logger) *broadcast.Gate {
	categories := make([]domain.Site, 0, len(cfg.Broadcast.Categories))
	for _, c := range cfg.Broadcast.Categories {
		categories = append(categories, domain.Site(c))
	}

	notifier := broadcast.NewHTTPNotifier(cfg.Broadcast.Endpoints, cfg.Broadcast.Token, cfg.Broadcast.Timeout, logger)

	var opts []broadcast.Option
	if rdb != nil {
		opts = append(opts, broadcast.WithLocker(redislock.NewLocker(rdb, cfg.App.Name+":")))
	}

	return broadcast.NewGate(store, notifier, broadcast.Config{
		Location:   loc,
		Categories: categories,
		MaxPerList: cfg.Broadcast.MaxPerList,
		LockTTL:    cfg.Broadcast.LockTTL,
	}, logger, opts...)
}

func toOpenTaskInputs(sources []config.SourceConfig) []audit.OpenTaskInput {
	out := make([]audit.OpenTaskInput, len(sources))
	for i, s := range sources {
		out[i] = audit.OpenTaskInput{
			URL:            s.URL,
			ExtraNotes:     s.ExtraNotes,
			CompanyID:      s.CompanyID,
			Site:           s.Site,
			JobTitleFilter: s.JobTitleFilter,
		}
	}
	return out
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
