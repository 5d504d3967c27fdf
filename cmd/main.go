package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"order-ingestion-service/internal/clients"
	"order-ingestion-service/internal/clients/amazon"
	"order-ingestion-service/internal/config"
	"order-ingestion-service/internal/database"
	"order-ingestion-service/internal/events"
	"order-ingestion-service/internal/handlers"
	"order-ingestion-service/internal/logging"
	"order-ingestion-service/internal/mapping"
	"order-ingestion-service/internal/middleware"
	"order-ingestion-service/internal/repository"
	"order-ingestion-service/internal/secrets"
	"order-ingestion-service/internal/services"
)

func main() {
	// A missing .env is fine outside local development
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Environment, cfg.LogLevel)

	if cfg.GCPProjectID != "" {
		loadSecrets(cfg, logger)
	} else {
		logger.Warn("GCP_PROJECT_ID not set, secrets are read from the environment only")
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseDSN(), cfg.Environment)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.WithError(err).Warn("auto-migration failed")
	}
	logger.Info("database connected and migrated")

	redisClient := connectRedis(cfg.RedisURL, logger)

	var publisher events.Publisher = events.NoopPublisher{}
	var natsPublisher *events.NATSPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err = events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize events publisher, events won't be published")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := natsPublisher.EnsureStream(ctx); err != nil {
				logger.WithError(err).Warn("failed to ensure order event stream")
			}
			cancel()
			publisher = natsPublisher
			defer natsPublisher.Close()
		}
	} else {
		logger.Info("NATS_URL not configured, events disabled")
	}

	// Repositories
	orderRepo := repository.NewOrderRepository(db)
	runRepo := repository.NewImportRunRepository(db)

	// Services
	runTracker := services.NewRunTracker(runRepo, logging.Component(logger, "run_tracker"))
	importService := services.NewImportService(orderRepo, publisher, runTracker,
		mapping.ParseDialect(cfg.ImportFallbackDialect), logging.Component(logger, "import_service"))
	reconciliationService := services.NewReconciliationService(orderRepo, services.NewMatcher(services.DefaultMatchPolicy),
		publisher, runTracker, cfg.ShipperTag, logging.Component(logger, "reconciliation_service"))
	remoteService := services.NewRemoteImportService(newOrderSource(cfg, redisClient, logger), importService,
		runTracker, logging.Component(logger, "remote_import_service"))
	gate := services.NewImportGate(services.DefaultGateConfig())
	importService.SetGate(gate)
	reconciliationService.SetGate(gate)
	remoteService.SetGate(gate)
	orderService := services.NewOrderService(orderRepo, orderRepo, logging.Component(logger, "order_service"))

	// Handlers
	healthHandler := handlers.NewHealthHandler(readinessChecks(db, redisClient, natsPublisher))
	importHandler := handlers.NewImportHandler(importService, reconciliationService, remoteService, runRepo)
	orderHandler := handlers.NewOrderHandler(orderService)

	router := setupRouter(cfg, logger, healthHandler, importHandler, orderHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Environment}).Info("order ingestion service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shut down")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info("server shutdown complete")
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	healthHandler *handlers.HealthHandler,
	importHandler *handlers.ImportHandler,
	orderHandler *handlers.OrderHandler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logging.Component(logger, "http")))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.MaxBodySize(cfg.MaxUploadSize))
	handlers.RegisterRoutes(v1, importHandler, orderHandler)

	return router
}

// loadSecrets overrides environment credentials with the ones held in Secret Manager
func loadSecrets(cfg *config.Config, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	secretManager, err := secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
	if err != nil {
		logger.WithError(err).Warn("failed to initialize GCP Secret Manager")
		return
	}
	defer secretManager.Close()

	if cfg.DBPasswordSecretName != "" {
		password, err := secretManager.GetString(ctx, cfg.DBPasswordSecretName)
		if err != nil {
			logger.WithError(err).Warn("failed to load database password from Secret Manager")
		} else {
			cfg.DBPassword = password
		}
	}

	if cfg.AmazonSecretName != "" {
		creds, err := secretManager.GetAmazonCredentials(ctx, cfg.AmazonSecretName)
		if err != nil {
			logger.WithError(err).Warn("failed to load Amazon credentials from Secret Manager")
			return
		}
		cfg.Amazon.ClientID = creds.ClientID
		cfg.Amazon.ClientSecret = creds.ClientSecret
		cfg.Amazon.RefreshToken = creds.RefreshToken
		if creds.MarketplaceID != "" {
			cfg.Amazon.MarketplaceID = creds.MarketplaceID
		}
		if creds.Region != "" {
			cfg.Amazon.Region = creds.Region
		}
		logger.Info("Amazon credentials loaded from Secret Manager")
	}
}

// connectRedis returns nil when Redis is not configured or unreachable
func connectRedis(redisURL string, logger *logrus.Logger) *redis.Client {
	if redisURL == "" {
		logger.Info("REDIS_URL not configured, access tokens are cached per process")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("failed to parse Redis URL, continuing without shared token cache")
		return nil
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("failed to connect to Redis, continuing without shared token cache")
		_ = client.Close()
		return nil
	}
	logger.Info("connected to Redis for shared token cache")
	return client
}

// newOrderSource builds the SP-API client, or nil when no credential is configured
func newOrderSource(cfg *config.Config, redisClient *redis.Client, logger *logrus.Logger) clients.OrderSource {
	if !cfg.Amazon.Configured() {
		logger.Info("Amazon credentials not configured, remote fetch disabled")
		return nil
	}

	opts := []amazon.Option{amazon.WithLogger(logging.Component(logger, "amazon_client"))}
	if redisClient != nil {
		opts = append(opts, amazon.WithTokenStore(amazon.NewRedisTokenStore(redisClient, cfg.Amazon.ClientID)))
	}

	return amazon.NewClient(amazon.Config{
		Credentials: amazon.Credentials{
			ClientID:     cfg.Amazon.ClientID,
			ClientSecret: cfg.Amazon.ClientSecret,
			RefreshToken: cfg.Amazon.RefreshToken,
		},
		MarketplaceID:     cfg.Amazon.MarketplaceID,
		Region:            cfg.Amazon.Region,
		Endpoint:          cfg.Amazon.Endpoint,
		TokenEndpoint:     cfg.Amazon.TokenEndpoint,
		PageSize:          cfg.Amazon.PageSize,
		PageDelay:         cfg.Amazon.PageDelay,
		ItemDelay:         cfg.Amazon.ItemDelay,
		BackoffBase:       cfg.Amazon.BackoffBase,
		MaxAttempts:       cfg.Amazon.MaxAttempts,
		RequestsPerSecond: cfg.Amazon.RequestsPerSecond,
		HTTPTimeout:       cfg.Amazon.HTTPTimeout,
	}, opts...)
}

func readinessChecks(db *gorm.DB, redisClient *redis.Client, natsPublisher *events.NATSPublisher) map[string]handlers.ReadinessCheck {
	checks := map[string]handlers.ReadinessCheck{
		"database": func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsPublisher != nil {
		checks["nats"] = func(context.Context) error {
			if !natsPublisher.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}
	return checks
}
