package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appfin "github.com/erp/receivables/internal/application/finance"
	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/erp/receivables/internal/infrastructure/auth"
	"github.com/erp/receivables/internal/infrastructure/cache"
	"github.com/erp/receivables/internal/infrastructure/config"
	"github.com/erp/receivables/internal/infrastructure/event"
	"github.com/erp/receivables/internal/infrastructure/exchangerate"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/infrastructure/persistence"
	"github.com/erp/receivables/internal/infrastructure/scheduler"
	"github.com/erp/receivables/internal/infrastructure/telemetry"
	"github.com/erp/receivables/internal/interfaces/http/handler"
	"github.com/erp/receivables/internal/interfaces/http/middleware"
	"github.com/erp/receivables/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logs, err := telemetry.NewLoggerProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		panic("Failed to initialize log export: " + err.Error())
	}
	if logs.Enabled() {
		log, err = logger.New(logCfg, logs.Core(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = log.Sync()
		_ = logs.Shutdown(context.Background())
	}()

	log.Info("Starting receivables service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if tp.Enabled() && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		}, log); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	financeMetrics, err := telemetry.NewFinanceMetrics(reg)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		return err
	}

	caches := cache.NewFactory(cfg.Redis, cache.WithLogger(log), cache.WithInMemoryFallback(cfg.App.Env != "production"))
	defer func() {
		if err := caches.Close(); err != nil {
			log.Warn("Error closing redis", zap.Error(err))
		}
	}()
	idempotency, err := caches.IdempotencyStore()
	if err != nil {
		return err
	}
	rateCache, err := caches.RateCache()
	if err != nil {
		return err
	}

	base, err := valueobject.ParseCurrency(cfg.Currency.Base)
	if err != nil {
		return err
	}
	record, err := valueobject.ParseCurrency(cfg.Currency.Record)
	if err != nil {
		return err
	}
	var source finance.RateSupplier
	if cfg.Currency.RatesFile != "" {
		source = exchangerate.NewFileSupplier(cfg.Currency.RatesFile, base, cfg.Currency.DefaultRateDecimal())
		log.Info("Exchange rates read from file", zap.String("file", cfg.Currency.RatesFile))
	} else {
		source = exchangerate.NewDBSupplier(persistence.NewGormExchangeRateRepository(db.DB), base, cfg.Currency.DefaultRateDecimal())
		log.Info("Exchange rates read from the currencies table")
	}
	rates := exchangerate.NewCachedRateSupplier(source, rateCache, cfg.Currency.CacheTTL)
	rates.SetMetrics(financeMetrics)

	if cfg.Currency.RefreshInterval > 0 {
		refresh, err := scheduler.NewTrigger(scheduler.TriggerConfig{
			Name:       "exchange_rate_refresh",
			Interval:   cfg.Currency.RefreshInterval,
			RunOnStart: true,
		}, rates.Refresh, log)
		if err != nil {
			return err
		}
		if err := refresh.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = refresh.Stop(stopCtx)
		}()
	}

	clock := shared.SystemClock{Location: cfg.App.Location()}
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))

	txScope := persistence.NewGormTransactionScope(db.DB)
	contractService := appfin.NewContractService(
		persistence.NewGormContractRepository(db.DB),
		persistence.NewGormInstallmentRepository(db.DB),
		persistence.NewGormReceiptRepository(db.DB),
		txScope, clock,
	)
	contractService.SetDefaultCurrency(record)
	contractService.SetEventPublisher(eventBus)

	ledger := appfin.NewReceiptLedger(txScope, rates, clock, record, appfin.LedgerOptions{
		MaxRetries:   cfg.Ledger.MaxRetries,
		RetryBackoff: cfg.Ledger.RetryBackoff,
	})
	ledger.SetEventPublisher(eventBus)
	ledger.SetMetrics(financeMetrics)

	statusService := appfin.NewStatusService(txScope, clock)
	statusService.SetEventPublisher(eventBus)

	dashboardService := appfin.NewDashboardService(persistence.NewGormDashboardQueryRepository(db.DB), rates, clock, record)
	dashboardService.SetMetrics(financeMetrics)

	if err := middleware.SetupValidator(); err != nil {
		return err
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", func(context.Context) error { return db.Ping() })
	if client, _ := caches.Connect(); client != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		CORS:           cors,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		TracingEnabled: tp.Enabled(),
	}, log, systemHandler, httpMetrics, reg)
	if err != nil {
		return err
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	router.NewRouter(engine, router.WithMiddleware(middleware.JWTAuth(jwtService, log), middleware.TraceAttributes())).
		Register(&router.FinanceRoutes{
			Contracts:    handler.NewContractHandler(contractService, statusService, clock),
			Installments: handler.NewInstallmentHandler(contractService, ledger, statusService),
			Dashboard:    handler.NewDashboardHandler(dashboardService, rates, clock),
			Idempotency:  middleware.Idempotency(idempotency, middleware.DefaultIdempotencyTTL),
		}).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		log.Info("Shutting down server...", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
