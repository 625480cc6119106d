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
	loadapp "github.com/loadengine/backend/internal/application/load"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/cache"
	"github.com/loadengine/backend/internal/infrastructure/config"
	"github.com/loadengine/backend/internal/infrastructure/logger"
	"github.com/loadengine/backend/internal/infrastructure/notify"
	"github.com/loadengine/backend/internal/infrastructure/persistence"
	"github.com/loadengine/backend/internal/infrastructure/phone"
	"github.com/loadengine/backend/internal/infrastructure/provider"
	"github.com/loadengine/backend/internal/infrastructure/telemetry"
	"github.com/loadengine/backend/internal/interfaces/http/handler"
	"github.com/loadengine/backend/internal/interfaces/http/middleware"
	"github.com/loadengine/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting load engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracer, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	db, err := persistence.NewDatabase(&cfg.Database, log,
		persistence.WithLogLevel(logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithTracing(dbTracing.RegisterOtelGorm),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	orphanRepo := persistence.NewGormOrphanRepository(db.DB)
	queryLogRepo := persistence.NewGormQueryLogRepository(db.DB)

	metrics := telemetry.NewLoadMetrics("load")
	numbers := phone.NewValidator(cfg.Query.PhoneRegion)

	adapters := buildAdapters(cfg, numbers, log)
	if len(adapters) == 0 {
		log.Warn("No load provider configured, every dispatch will fail with NO_PROVIDER_AVAILABLE")
	}

	dispatcher := loadapp.NewDispatchService(loadapp.DispatchServiceConfig{
		Catalog:  loadapp.NewCatalogService(catalogRepo, log),
		Selector: loadapp.NewSelector(adapters...),
		Ledger:   ledgerRepo,
		Metrics:  metrics,
		Deadline: cfg.Dispatch.Deadline,
		Logger:   log,
	})

	notifyCfg := notify.Config{
		SMSURL:         cfg.Notify.SMSURL,
		MessengerURL:   cfg.Notify.MessengerURL,
		TelegramURL:    cfg.Notify.TelegramURL,
		ViberURL:       cfg.Notify.ViberURL,
		UserURL:        cfg.Notify.UserURL,
		APIKey:         cfg.Notify.APIKey,
		TimeoutSeconds: cfg.Notify.TimeoutSeconds,
	}
	reconciler := loadapp.NewCallbackReconciler(loadapp.CallbackReconcilerConfig{
		Ledger:  ledgerRepo,
		Orphans: orphanRepo,
		Notifications: loadapp.NewNotifier(loadapp.NotifierConfig{
			SMS:     notify.NewSMSClient(notifyCfg),
			Bots:    notify.NewBotRouter(notifyCfg),
			Users:   notify.NewUserClient(notifyCfg),
			Numbers: numbers,
			Logger:  log,
		}),
		Retry: loadapp.RetryPolicy{
			BaseDelay:  cfg.Callback.RetryDelay,
			Jitter:     cfg.Callback.RetryJitter,
			Attempts:   cfg.Callback.RetryAttempts,
			MaxElapsed: cfg.Callback.RetryMaxTotal,
		},
		Metrics: metrics,
		Logger:  log,
	})

	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	store, err := storeFactory.CreateStore(context.Background())
	if err != nil {
		log.Fatal("Failed to create duplicate query store", zap.Error(err))
	}
	queries := loadapp.NewQueryService(loadapp.QueryServiceConfig{
		Dispatcher: dispatcher,
		Store:      store,
		Logs:       queryLogRepo,
		Numbers:    numbers,
		Window:     cfg.Query.DuplicateWindow,
		Logger:     log,
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	defer limiter.Stop()

	engine, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		Metrics:        metrics,
		Tracing:        middleware.TracingConfig{ServiceName: cfg.Telemetry.ServiceName, Enabled: tracer.IsEnabled(), SkipPaths: []string{"/health", "/metrics"}},
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		System: handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthCheck{
			"database": func(context.Context) error { return db.Ping() },
		}),
		Registrars: []router.RouteRegistrar{
			router.LoadRoutes(
				handler.NewLoadHandler(dispatcher, queries, orphanRepo),
				handler.NewCallbackHandler(reconciler, cfg.Callback.APIKey, cfg.Callback.DTOneKey),
				middleware.RateLimitByUser(limiter),
			),
		},
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// callbacks already acknowledged must finish reconciling before the
	// database goes away
	done := make(chan struct{})
	go func() {
		reconciler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("Reconciliation still running at shutdown deadline")
	}

	if err := tracer.Shutdown(ctx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}
	log.Info("Server exited")
}

func buildAdapters(cfg *config.Config, numbers load.NumberValidator, log *zap.Logger) []load.ProviderAdapter {
	var adapters []load.ProviderAdapter

	if cfg.DTOne.Enabled() {
		dtone, err := provider.NewDTOneAdapter(&provider.DTOneConfig{
			BaseURL:        cfg.DTOne.BaseURL,
			APIKey:         cfg.DTOne.APIKey,
			APISecret:      cfg.DTOne.APISecret,
			CallbackURL:    cfg.DTOne.CallbackURL,
			TimeoutSeconds: cfg.DTOne.TimeoutSeconds,
		}, numbers)
		if err != nil {
			log.Fatal("Invalid DT One configuration", zap.Error(err))
		}
		adapters = append(adapters, dtone)
		log.Info("Load provider enabled", zap.String("provider", dtone.Name()))
	}

	if cfg.GlobeLabs.Enabled() {
		globe, err := provider.NewGlobeLabsAdapter(&provider.GlobeLabsConfig{
			BaseURL:        cfg.GlobeLabs.BaseURL,
			AppID:          cfg.GlobeLabs.AppID,
			AppSecret:      cfg.GlobeLabs.AppSecret,
			RewardsToken:   cfg.GlobeLabs.RewardsToken,
			TimeoutSeconds: cfg.GlobeLabs.TimeoutSeconds,
		}, numbers)
		if err != nil {
			log.Fatal("Invalid Globe Labs configuration", zap.Error(err))
		}
		adapters = append(adapters, globe)
		log.Info("Load provider enabled", zap.String("provider", globe.Name()))
	}

	return adapters
}
