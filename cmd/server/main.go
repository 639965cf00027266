package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/boundary"
	"github.com/campaignops/resource-factory/internal/cache"
	"github.com/campaignops/resource-factory/internal/campaign"
	"github.com/campaignops/resource-factory/internal/config"
	"github.com/campaignops/resource-factory/internal/database"
	"github.com/campaignops/resource-factory/internal/filestore"
	"github.com/campaignops/resource-factory/internal/handlers"
	"github.com/campaignops/resource-factory/internal/httpclient"
	"github.com/campaignops/resource-factory/internal/kafka"
	"github.com/campaignops/resource-factory/internal/lifecycle"
	"github.com/campaignops/resource-factory/internal/localization"
	"github.com/campaignops/resource-factory/internal/metrics"
	"github.com/campaignops/resource-factory/internal/schema"
	"github.com/campaignops/resource-factory/internal/workbook"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting resource-factory",
		zap.String("environment", cfg.Environment),
		zap.Int("http_port", cfg.Server.HTTPPort),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	collector := metrics.NewCollector()

	db, err := database.NewConnection(cfg.Database, cfg.GetDatabaseDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.GetDatabaseURL(), cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pingErr := redisClient.Ping(pingCtx).Err()
	cancel()

	var store cache.Store = cache.NewRedisStore(redisClient)
	if pingErr != nil {
		logger.Warn("redis unreachable, falling back to in-memory cache", zap.Error(pingErr))
		store = cache.NewMemoryStore()
	}

	// A dead producer takes the whole service down so the orchestrator
	// restarts it rather than serving jobs whose events go nowhere.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	producer := kafka.NewProducer(cfg.Kafka, logger, func(err error) {
		logger.Error("kafka producer failed permanently, shutting down", zap.Error(err))
		shutdownCh <- syscall.SIGTERM
	})
	defer producer.Close()

	httpClient := httpclient.New(httpclient.Options{
		MaxRetries:      cfg.Clients.MaxRetries,
		RetryBackoff:    cfg.Clients.RetryBackoff,
		TransientErrors: cfg.Clients.TransientErrors,
	}, logger)

	files := filestore.NewClient(cfg.Clients.FileStore.BaseURL, httpClient, logger)
	schemas := schema.NewResolver(cfg.Clients.SchemaRegistry.BaseURL, httpClient, store, cfg.Processing.SchemaCacheTTL, logger)
	locales := localization.NewCache(cfg.Clients.Localization.BaseURL, httpClient, store, cfg.Processing.LocaleCacheTTL, cfg.Generation.DefaultModule, logger)
	boundaries := boundary.NewClient(cfg.Clients.Boundary.BaseURL, httpClient, cfg.Clients.ParallelLookups, logger)

	generatedRepo := database.NewGeneratedResourceRepository(db)
	processedRepo := database.NewProcessedResourceRepository(db)
	campaignRepo := database.NewCampaignRepository(db)

	orchestrator := campaign.NewOrchestrator(cfg.Processing, boundaries, locales, collector, logger)

	engine := lifecycle.NewEngine(
		cfg,
		generatedRepo, processedRepo,
		workbook.NewBuilder(cfg.Generation, logger),
		workbook.NewValidator(files, logger),
		files,
		schemas,
		locales,
		boundaries,
		producer,
		orchestrator,
		store,
		collector,
		logger,
	)

	campaigns := campaign.NewManager(campaignRepo, producer, cfg.Kafka.Topics, collector, logger)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := handlers.NewResourceHandler(engine, campaigns, logger)
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case sig := <-shutdownCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("resource-factory stopped")
	return nil
}
