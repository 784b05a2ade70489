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
	"go.uber.org/zap"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/infrastructure/cache"
	"github.com/storelink/backend/internal/infrastructure/config"
	"github.com/storelink/backend/internal/infrastructure/event"
	"github.com/storelink/backend/internal/infrastructure/fx"
	"github.com/storelink/backend/internal/infrastructure/logger"
	"github.com/storelink/backend/internal/infrastructure/persistence"
	"github.com/storelink/backend/internal/infrastructure/ratelimit"
	"github.com/storelink/backend/internal/infrastructure/scheduler"
	"github.com/storelink/backend/internal/infrastructure/storage"
	"github.com/storelink/backend/internal/infrastructure/telemetry"
	"github.com/storelink/backend/internal/interfaces/http/handler"
	"github.com/storelink/backend/internal/interfaces/http/middleware"
	"github.com/storelink/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log = logProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting StoreLink sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("storelink.sync"))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Database
	dbOpts := []persistence.Option{
		persistence.WithZapLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
			logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL)),
	}
	if cfg.Telemetry.DBTraceEnabled {
		dbOpts = append(dbOpts, persistence.WithPlugin(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		}, log)))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Redis is optional; every shared component has an in-process fallback
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		redisClient = client
		log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.Addr()))
	}

	// Repositories
	mappingRepo := persistence.NewGormProductMappingRepository(db.DB)
	transactionRepo := persistence.NewGormInventoryTransactionRepository(db.DB)
	jobRepo := persistence.NewGormSyncJobRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	rateRepo := persistence.NewGormExchangeRateRepository(db.DB)

	// Outbound plumbing shared by every platform
	policy := newRetryPolicy(cfg.Retry, syncMetrics, log)
	limitStore := newRateLimitStore(cfg.RateLimit, redisClient, cfg.Redis.KeyPrefix)
	limiter, err := newPlatformLimiter(cfg.RateLimit, limitStore, syncMetrics, log)
	if err != nil {
		log.Fatal("Failed to create rate limiter", zap.Error(err))
	}

	adapters, err := newPlatforms(cfg, limiter, policy, redisClient, syncMetrics, log)
	if err != nil {
		log.Fatal("Failed to configure platforms", zap.Error(err))
	}
	if len(adapters.registry.Codes()) == 0 {
		log.Warn("No platform is enabled; sync jobs will have nothing to push")
	}

	// Application services
	reconciler := appintegration.NewInventoryReconciler(mappingRepo, transactionRepo, adapters.registry,
		appintegration.WithLocker(newSKULocker(redisClient, cfg.Redis.KeyPrefix, log)),
		appintegration.WithMetrics(syncMetrics),
		appintegration.WithLogger(log.Named("reconciler")),
	)
	mappingService := appintegration.NewProductMappingService(reconciler)

	pairs, err := parseCurrencyPairs(cfg.ExchangeRate.Pairs)
	if err != nil {
		log.Fatal("Invalid exchange rate configuration", zap.Error(err))
	}
	fallbacks, err := parseFallbackRates(cfg.ExchangeRate.Fallbacks)
	if err != nil {
		log.Fatal("Invalid exchange rate configuration", zap.Error(err))
	}
	rateService := appintegration.NewExchangeRateService(
		rateRepo,
		fx.NewHTTPProvider(cfg.ExchangeRate.BaseURL, cfg.ExchangeRate.APIKey, cfg.ExchangeRate.Timeout, policy),
		pairs,
		fallbacks,
		log.Named("exchange-rate"),
	)

	notifier := event.NewAsyncNotifier(cfg.Notifier.BufferSize, log.Named("notifier"))
	notifier.Subscribe("log", event.LogHandler(log.Named("sync-events")))

	deps := scheduler.SyncSchedulerDeps{
		Jobs:      jobRepo,
		Mappings:  mappingRepo,
		Inventory: appintegration.NewInventorySynchronizer(reconciler),
		Prices:    appintegration.NewPriceSynchronizer(reconciler, rateService),
		Audit:     syncLogRepo,
		Notifier:  notifier,
		Metrics:   syncMetrics,
	}

	acks, ackPurger, err := newAckStore(ctx, cfg, db, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create acknowledgment store", zap.Error(err))
	}
	if adapters.smartStore != nil {
		deps.Orders = appintegration.NewOrderIngestionPipeline(adapters.smartStore, reconciler, acks,
			appintegration.OrderIngestionConfig{
				PageSize:        cfg.Orders.PageSize,
				PageDelay:       cfg.Orders.PageDelay,
				Overlap:         cfg.Orders.Overlap,
				InitialLookback: cfg.Orders.InitialLookback,
				AckTTL:          cfg.Orders.AckTTL,
				ConfirmOrders:   cfg.Orders.ConfirmOrders,
			},
			log.Named("orders"),
		)
	}

	syncScheduler, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
		Concurrency: cfg.Scheduler.Concurrency,
		JobTimeout:  cfg.Scheduler.JobTimeout,
	}, deps, log.Named("scheduler"))
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}

	// Audit log archive
	var archive *storage.S3Archive
	if cfg.Retention.ArchiveEnabled {
		archive, err = storage.NewS3Archive(&cfg.Storage,
			storage.WithLogger(log.Named("archive")),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to create archive storage", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare archive bucket", zap.Error(err), zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	retentionCfg := scheduler.LogRetentionConfig{
		Retention:     cfg.Retention.Retention,
		BatchSize:     cfg.Retention.BatchSize,
		ArchivePrefix: cfg.Retention.ArchivePrefix,
	}
	var retention *scheduler.LogRetention
	if archive != nil {
		retention = scheduler.NewLogRetention(retentionCfg, syncLogRepo, archive, log.Named("retention"))
	} else {
		retention = scheduler.NewLogRetention(retentionCfg, syncLogRepo, nil, log.Named("retention"))
	}
	if ackPurger != nil {
		retention.WithMarkerPurger(ackPurger)
	}

	// Cron
	var taskLock scheduler.TaskLock
	if redisClient != nil {
		taskLock = cache.NewRedisLock(redisClient, cfg.Redis.KeyPrefix+"lock:cron:", cache.WithLockLogger(log.Named("cron-lock")))
	}
	cronRunner := scheduler.NewCronRunner(scheduler.CronRunnerConfig{
		Location:    cfg.Scheduler.Location(),
		TaskTimeout: cfg.Scheduler.CronTaskTimeout,
		LockTTL:     cfg.Scheduler.CronLockTTL,
	}, taskLock, syncLogRepo, log.Named("cron"))
	if cfg.Scheduler.Enabled {
		err := scheduler.RegisterSyncTasks(cronRunner, scheduler.CronSchedules{
			FullSync:       cfg.Scheduler.FullSyncCron,
			OrderIngestion: cfg.Scheduler.OrderIngestionCron,
			ExchangeRate:   cfg.Scheduler.ExchangeRateCron,
			LogRetention:   cfg.Scheduler.LogRetentionCron,
		}, syncScheduler, rateService, retention)
		if err != nil {
			log.Fatal("Failed to register cron tasks", zap.Error(err))
		}
		if err := cronRunner.Start(ctx); err != nil {
			log.Fatal("Failed to start cron runner", zap.Error(err))
		}
	} else {
		log.Info("Cron triggers disabled; jobs run only when triggered through the API")
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled)...)
	engine.Use(middleware.HTTPMetrics(meterProvider, log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	healthChecks := map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	systemHandler := handler.NewSystemHandler(version, healthChecks)
	engine.GET("/health", systemHandler.Health)

	apiMiddleware := []gin.HandlerFunc{middleware.Timeout(cfg.HTTP.WriteTimeout)}
	if cfg.HTTP.RateLimitEnabled {
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limitStore, ratelimit.Rule{
			Points:   cfg.HTTP.RateLimitRequests,
			Duration: cfg.HTTP.RateLimitWindow,
		}))
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithMiddleware(apiMiddleware...))
	r.Register(systemHandler).
		Register(handler.NewSyncJobHandler(syncScheduler)).
		Register(handler.NewMappingHandler(mappingService)).
		Register(handler.NewInventoryHandler(reconciler)).
		Register(handler.NewExchangeRateHandler(rateService))
	if archive != nil {
		r.Register(handler.NewArchiveHandler(archive))
	}
	r.Setup()
	r.LogRoutes(log)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := cronRunner.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping cron runner", zap.Error(err))
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping sync scheduler", zap.Error(err))
	}
	if err := notifier.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping notifier", zap.Error(err))
	}
	if dropped := notifier.Dropped(); dropped > 0 {
		log.Warn("Sync events dropped while the notifier was saturated", zap.Int64("dropped", dropped))
	}
	if closer, ok := acks.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error("Error closing acknowledgment store", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	for name, shutdown := range map[string]func(context.Context) error{
		"logs":    logProvider.Shutdown,
		"metrics": meterProvider.Shutdown,
		"traces":  tracerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.String("signal", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
