// Package main provides the main entry point for the Kage Bunshin post scheduling service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/handlers"
	"github.com/amirphl/Kage-Bunshin/app/middleware"
	"github.com/amirphl/Kage-Bunshin/app/router"
	"github.com/amirphl/Kage-Bunshin/app/services"
	businessflow "github.com/amirphl/Kage-Bunshin/business_flow"
	"github.com/amirphl/Kage-Bunshin/config"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/platform"
	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/ratelimit"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/amirphl/Kage-Bunshin/worker"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Kage Bunshin application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Post{},
		&models.PlatformResult{},
		&models.WebhookConfig{},
		&models.WebhookDelivery{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeRedis initializes the Redis client and verifies connectivity
func initializeRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	// Override connection settings if provided in config
	opt.DB = cfg.RedisDB
	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startRedisHealthMonitor starts a background goroutine that periodically pings
// Redis to detect connectivity issues. The returned cancel function stops the
// monitor.
func startRedisHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializePlatformRegistry builds the adapter registry from the enabled
// platform configurations
func initializePlatformRegistry(cfg config.PlatformsConfig, store platform.CredentialStore) *platform.Registry {
	var adapters []platform.Adapter

	if cfg.Twitter.Enabled {
		adapters = append(adapters, platform.NewTwitterAdapter(store, platform.ClientConfig{
			BaseURL: cfg.Twitter.BaseURL,
			Timeout: cfg.Twitter.Timeout,
		}))
	}
	if cfg.LinkedIn.Enabled {
		adapters = append(adapters, platform.NewLinkedInAdapter(store, platform.ClientConfig{
			BaseURL: cfg.LinkedIn.BaseURL,
			Timeout: cfg.LinkedIn.Timeout,
		}))
	}
	if cfg.Facebook.Enabled {
		adapters = append(adapters, platform.NewFacebookAdapter(store, platform.ClientConfig{
			BaseURL: cfg.Facebook.BaseURL,
			Timeout: cfg.Facebook.Timeout,
		}))
	}
	if cfg.Mastodon.Enabled {
		adapters = append(adapters, platform.NewMastodonAdapter(store, platform.ClientConfig{
			BaseURL: cfg.Mastodon.BaseURL,
			Timeout: cfg.Mastodon.Timeout,
		}))
	}

	registry := platform.NewRegistry(adapters...)
	log.Printf("Platform registry initialized with adapters: %v", registry.Names())
	return registry
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeRedis(cfg.Cache)
	if err != nil {
		return nil, err
	}

	cancelMonitor := startRedisHealthMonitor(context.Background(), rc, 30*time.Second)
	stopFuncs = append(stopFuncs, cancelMonitor)

	// Initialize repositories
	postRepo := repository.NewPostRepository(db)
	resultRepo := repository.NewPlatformResultRepository(db)
	webhookConfigRepo := repository.NewWebhookConfigRepository(db)
	webhookDeliveryRepo := repository.NewWebhookDeliveryRepository(db)

	// Initialize queue and delayed-job promoter
	q := queue.NewRedisQueue(rc, cfg.Cache.RedisPrefix+cfg.Queue.KeyPrefix, log.Default(), queue.Options{
		PromoteInterval: cfg.Queue.PromoterInterval,
		StatusTTL:       cfg.Queue.JobStatusTTL,
	})
	stopPromoter := q.StartPromoter(context.Background())
	stopFuncs = append(stopFuncs, stopPromoter)

	// Initialize rate limiter
	limiter := ratelimit.NewRedisLimiter(rc, cfg.Cache.RedisPrefix+cfg.RateLimit.KeyPrefix, log.Default())

	// Initialize platform adapters
	credStore := platform.NewRedisCredentialStore(rc, cfg.Cache.RedisPrefix+"platform:credentials")
	registry := initializePlatformRegistry(cfg.Platforms, credStore)

	// Initialize webhook delivery
	webhookService := services.NewWebhookDeliveryService(&cfg.Webhook, q, webhookConfigRepo, webhookDeliveryRepo, rc)

	// Initialize flows
	postFlow := businessflow.NewPostFlow(postRepo, resultRepo, q, registry, webhookService, db)
	webhookFlow := businessflow.NewWebhookConfigFlow(webhookConfigRepo, webhookDeliveryRepo, webhookService, db)

	// Initialize workers
	postProcessor := worker.NewPostProcessor(q, postRepo, resultRepo, registry, webhookService)
	webhookDeliverer := worker.NewWebhookDeliverer(webhookService)

	pool := worker.NewPool(q, cfg.Queue.WorkerCount)
	pool.Register(utils.JobTypePublishPost, postProcessor.Process)
	pool.Register(utils.JobTypeDeliverWebhook, webhookDeliverer.Deliver)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	pool.Start(workerCtx)
	stopFuncs = append(stopFuncs, func() {
		cancelWorkers()
		pool.Wait()
	})
	log.Printf("Worker pool started with %d consumers", cfg.Queue.WorkerCount)

	sweeper := worker.NewStuckSweeper(postRepo, q, log.Default())
	stopSweeper := sweeper.Start(context.Background())
	stopFuncs = append(stopFuncs, stopSweeper)

	// Initialize handlers
	postHandler := handlers.NewPostHandler(postFlow)
	webhookHandler := handlers.NewWebhookHandler(webhookFlow)

	// Initialize middleware
	identityResolver := services.NewRedisIdentityResolver(rc, cfg.Cache.RedisPrefix+"identity:token")
	identityMiddleware := middleware.NewIdentityMiddleware(identityResolver)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		postHandler,
		webhookHandler,
		identityMiddleware,
		rateLimitMiddleware,
	)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
