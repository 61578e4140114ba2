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
	"github.com/redis/go-redis/v9"
	appcashback "github.com/tourism/backoffice/internal/application/cashback"
	appsales "github.com/tourism/backoffice/internal/application/sales"
	"github.com/tourism/backoffice/internal/infrastructure/cache"
	"github.com/tourism/backoffice/internal/infrastructure/config"
	"github.com/tourism/backoffice/internal/infrastructure/event"
	"github.com/tourism/backoffice/internal/infrastructure/logger"
	"github.com/tourism/backoffice/internal/infrastructure/persistence"
	"github.com/tourism/backoffice/internal/infrastructure/scheduler"
	"github.com/tourism/backoffice/internal/infrastructure/telemetry"
	"github.com/tourism/backoffice/internal/interfaces/http/handler"
	"github.com/tourism/backoffice/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// OTLP log export tees zap output to the collector
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = logProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))
	defer func() {
		_ = logProvider.Shutdown(context.Background())
	}()

	log.Info("Starting tourism back office",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.App.Timezone),
	)

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		_ = tracerProvider.Shutdown(context.Background())
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		_ = meterProvider.Shutdown(context.Background())
	}()
	meter := meterProvider.Meter("github.com/tourism/backoffice")

	saleMetrics, err := telemetry.NewSaleMetrics(telemetry.SaleMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		log.Fatal("Failed to create sale metrics", zap.Error(err))
	}

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.GormLoggerConfig{
		Level:         logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Database.SlowQuery,
	})
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.RegisterPoolMetrics(meter); err != nil {
		log.Warn("Failed to register database pool metrics", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Redis backs idempotency keys and the expiry lock; both degrade to process-local
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log)
	defer func() {
		_ = idempotencyStore.Close()
	}()
	locker := cache.NewLocker(redisClient, log)

	// Domain events are published after commit
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewLoggingHandler(log))
	if cfg.Kafka.Enabled {
		relay, err := event.NewKafkaRelay(event.KafkaRelayConfig{
			Brokers:     cfg.Kafka.Brokers,
			TopicPrefix: cfg.Kafka.TopicPrefix,
		}, event.DomainCatalog(), log)
		if err != nil {
			log.Fatal("Failed to create Kafka relay", zap.Error(err))
		}
		defer func() {
			_ = relay.Close()
		}()
		eventBus.Subscribe(relay)
		log.Info("Kafka event relay enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.Strings("event_types", relay.EventTypes()),
		)
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Application services
	lifecycle := appcashback.NewLifecycleManager(
		persistence.NewGormCashbackGrantRepository(db.DB),
		persistence.NewGormCashbackCampaignRepository(db.DB),
		loc,
		log,
	)
	lifecycle.SetMetrics(saleMetrics)
	lifecycle.SetEventPublisher(eventBus)

	engine := appsales.NewSaleTransactionEngine(
		persistence.NewGormTransactionScope(db.DB, cfg.Database.LockTimeout),
		lifecycle,
		appsales.EngineConfig{
			CreateTimeout: cfg.Sale.CreateTimeout,
			UpdateTimeout: cfg.Sale.UpdateTimeout,
		},
		log,
	)
	engine.SetMetrics(saleMetrics)
	engine.SetEventPublisher(eventBus)

	// Daily cashback expiry
	expiryScheduler, err := scheduler.NewCashbackExpiryScheduler(lifecycle, locker, log, scheduler.CashbackExpirySchedulerConfig{
		Enabled:       cfg.Cashback.ExpiryEnabled,
		ExpiryHour:    cfg.Cashback.ExpiryHour,
		ExpiryTimeout: cfg.Cashback.ExpiryTimeout,
		LockTTL:       cfg.Cashback.LockTTL,
		Location:      loc,
	})
	if err != nil {
		log.Fatal("Invalid cashback expiry configuration", zap.Error(err))
	}
	if err := expiryScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start cashback expiry scheduler", zap.Error(err))
	}
	if cfg.Cashback.SweepOnStart {
		// catches up on a sweep missed while the service was down
		if err := expiryScheduler.SweepInBackground(ctx); err != nil {
			log.Warn("Startup cashback expiry sweep not started", zap.Error(err))
		}
	}
	defer func() {
		if err := expiryScheduler.Stop(context.Background()); err != nil {
			log.Error("Error stopping cashback expiry scheduler", zap.Error(err))
		}
	}()

	// HTTP handlers
	systemHandler := handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, log)
	systemHandler.AddCheck("database", db.Ping)
	systemHandler.AddDetail("db_pool", func() (any, error) { return db.Stats() })
	systemHandler.AddDetail("cashback_expiry", func() (any, error) {
		return gin.H{
			"running":  expiryScheduler.IsRunning(),
			"last_run": expiryScheduler.LastRun(),
			"next_run": expiryScheduler.NextRun(time.Now()),
		}, nil
	})
	if redisClient != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpEngine := router.NewEngine(router.EngineConfig{
		Logger:         log,
		Meter:          meter,
		TracingEnabled: cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		CORS:           router.DefaultCORS(cfg.HTTP.CORSAllowOrigins, cfg.HTTP.CORSAllowMethods, cfg.HTTP.CORSAllowHeaders),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TriggerSecret:  cfg.Cashback.TriggerSecret,
	}, router.Handlers{
		Sale: handler.NewSaleHandler(engine, idempotencyStore, handler.SaleHandlerConfig{
			Location:       loc,
			IdempotencyTTL: cfg.Sale.IdempotencyTTL,
		}, log),
		Cashback: handler.NewCashbackHandler(lifecycle, expiryScheduler, log),
		System:   systemHandler,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
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

	log.Info("Server exited gracefully")
}
