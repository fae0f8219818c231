package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	reconapp "github.com/remitflow/backend/internal/application/reconciliation"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/remitflow/backend/internal/infrastructure/cache"
	"github.com/remitflow/backend/internal/infrastructure/claims"
	"github.com/remitflow/backend/internal/infrastructure/config"
	"github.com/remitflow/backend/internal/infrastructure/logger"
	"github.com/remitflow/backend/internal/infrastructure/persistence"
	remittance "github.com/remitflow/backend/internal/infrastructure/remittance"
	"github.com/remitflow/backend/internal/infrastructure/storage"
	"github.com/remitflow/backend/internal/infrastructure/telemetry"
	"github.com/remitflow/backend/internal/interfaces/http/handler"
	"github.com/remitflow/backend/internal/interfaces/http/middleware"
	"github.com/remitflow/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
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
		_ = logger.Sync(log)
	}()

	log.Info("Starting reconciliation backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry providers. Each returns a no-op implementation when disabled,
	// so the wiring below stays unconditional.
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
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	// Bridge zap into OTEL logs so application logs reach the collector
	// alongside traces and metrics
	otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: loggerProvider,
		Level:          zapcore.InfoLevel,
	})
	log = telemetry.NewBridgedLogger(log.Core(), otelCore)

	// Database with zap-backed GORM logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithGormLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database observability plugins
	if cfg.Telemetry.Enabled {
		tracingPlugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.App.Env != "production",
			SlowQueryThresh: 200 * time.Millisecond,
			DBSystem:        "postgresql",
		}, log)
		if err := tracingPlugin.Register(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}

		dbMetrics, err := telemetry.NewDBMetrics(
			meterProvider.Meter("reconciliation/db"),
			telemetry.DefaultDBMetricsConfig(),
			log,
		)
		if err != nil {
			log.Warn("Failed to create database metrics", zap.Error(err))
		} else if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
			log.Warn("Failed to register database metrics plugin", zap.Error(err))
		}
	}

	// Repositories
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	remittanceRepo := persistence.NewGormRemittanceRepository(db.DB)

	// Claims system client. Without a configured base URL the service runs
	// against the in-memory stub, which only makes sense for local development.
	var (
		claimQuery    acl.ClaimQueryService
		claimNotifier acl.ClaimStatusNotifier
		payerRegistry acl.PayerRegistry
	)
	if cfg.Claims.BaseURL != "" {
		claimsClient, err := claims.NewHTTPClient(cfg.Claims)
		if err != nil {
			log.Fatal("Failed to create claims client", zap.Error(err))
		}
		claimQuery = claimsClient
		claimNotifier = claimsClient
		payerRegistry = claimsClient
		log.Info("Claims client configured", zap.String("base_url", cfg.Claims.BaseURL))
	} else {
		memClient := claims.NewInMemory()
		claimQuery = memClient
		claimNotifier = memClient
		payerRegistry = memClient
		log.Warn("No claims.base_url configured, using in-memory claims stub")
	}

	// Remittance file parsers
	parserRegistry := remittance.NewRegistry(
		remittance.NewEDI835Parser(),
		remittance.NewCSVParser(),
	)

	// Raw file archive (S3, local directory, or disabled)
	archiver, err := storage.NewArchiver(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize remittance archive storage", zap.Error(err))
	}
	if archiver == nil {
		log.Warn("Remittance file archiving disabled")
	}

	// Aging report cache (Redis with in-memory fallback)
	reportCache, err := cache.NewReportCacheFactory(cfg.Redis, cache.WithLogger(log)).CreateCache()
	if err != nil {
		log.Fatal("Failed to initialize report cache", zap.Error(err))
	}

	// Application services
	matcher := domain.NewMatchService()
	paymentService := reconapp.NewPaymentService(
		paymentRepo, remittanceRepo, claimQuery, claimNotifier, payerRegistry, matcher, log)
	paymentService.SetAutoReconcileThreshold(cfg.Reconciliation.AutoReconcileThreshold)
	batchService := reconapp.NewBatchReconcileService(paymentService, log)
	batchService.SetLimits(cfg.Reconciliation.BatchConcurrency, cfg.Reconciliation.MaxBatchSize)
	importService := reconapp.NewRemittanceImportService(
		remittanceRepo, paymentRepo, paymentService, parserRegistry, archiver, log)
	importService.SetTransactionManager(persistence.NewTxManager(db.DB))
	agingService := reconapp.NewAgingReportService(
		claimQuery, reportCache, cfg.Reconciliation.AgingCacheTTL, log)

	// Business metrics: counters recorded by the services plus periodic
	// backlog gauges fed from the payment repository
	var reconMetrics *telemetry.ReconciliationMetrics
	if meterProvider.IsEnabled() {
		reconMetrics, err = telemetry.NewReconciliationMetrics(telemetry.ReconciliationMetricsConfig{
			Meter:           meterProvider.Meter("reconciliation/business"),
			Logger:          log,
			BacklogProvider: paymentRepo,
		})
		if err != nil {
			log.Warn("Failed to create reconciliation metrics", zap.Error(err))
		} else {
			recorder := telemetry.NewRecorder(reconMetrics)
			paymentService.SetMetrics(recorder)
			batchService.SetMetrics(recorder)
			importService.SetMetrics(recorder)
			reconMetrics.StartPeriodicCollection(ctx, 5*time.Minute)
			defer reconMetrics.Stop()
		}
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, in order: request ID, panic recovery, request
	// logging, security headers, CORS, body cap, tracing, HTTP metrics,
	// then rate limiting
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Handlers
	systemHandler := handler.NewSystemHandler()
	systemHandler.AddReadinessCheck("database", func(ctx context.Context) error {
		return db.Ping()
	})

	r := router.NewRouter(engine)
	r.RegisterRoot(systemHandler)
	r.Register(handler.NewPaymentHandler(paymentService, batchService)).
		Register(handler.NewRemittanceHandler(importService)).
		Register(handler.NewReportHandler(agingService))
	r.Setup()

	// HTTP server
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// Flush telemetry after in-flight requests finish
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
