package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	audittrail "github.com/mise/backend/internal/application/audit"
	restaurantapp "github.com/mise/backend/internal/application/restaurant"
	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/infrastructure/auth"
	"github.com/mise/backend/internal/infrastructure/cache"
	"github.com/mise/backend/internal/infrastructure/config"
	"github.com/mise/backend/internal/infrastructure/logger"
	"github.com/mise/backend/internal/infrastructure/migration"
	"github.com/mise/backend/internal/infrastructure/persistence"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
	"github.com/mise/backend/internal/infrastructure/telemetry"
	"github.com/mise/backend/internal/interfaces/http/handler"
	"github.com/mise/backend/internal/interfaces/http/middleware"
	"github.com/mise/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: search ./, /etc/mise, /app)")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
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
	defer func() { _ = log.Sync() }()

	log.Info("Starting Mise backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Telemetry
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		return err
	}
	metrics, err := telemetry.NewIsolationMetrics(meterProvider.Meter("mise/tenancy"))
	if err != nil {
		return err
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return err
		}
	} else {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return err
		}
		// migrations run out of band; refuse to serve a schema the enforcer cannot guard
		if err := migration.CheckTenantColumns(ctx, sqlDB, tenant.DefaultColumn, models.TenantTables()); err != nil {
			return err
		}
	}

	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if cfg.Database.Driver == "sqlite" {
		dbTracingCfg.DBSystem = "sqlite"
	}
	if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
		return err
	}

	// Audit trail
	spool, err := cache.NewSpoolFactory(cfg.Audit, cfg.Redis, cache.WithLogger(log)).CreateSpool()
	if err != nil {
		return err
	}
	platform := tenant.NewPlatform(db.DB, log)
	trailOpts := audittrail.Options{
		QueueSize:     cfg.Audit.QueueSize,
		Workers:       cfg.Audit.Workers,
		MaxAttempts:   cfg.Audit.MaxAttempts,
		RetryInterval: cfg.Audit.RetryInterval,
		DrainInterval: cfg.Audit.DrainInterval,
		Logger:        log,
		Metrics:       metrics,
	}
	trail := audittrail.New(persistence.NewGormAuditStore(platform), spool, trailOpts)

	// Isolation enforcer, registered once before the database is shared
	if _, err := tenant.Register(db.DB, tenant.Options{
		Tables:   models.TenantTables(),
		Recorder: trail,
		Denials:  metrics,
		Logger:   log,
	}); err != nil {
		return err
	}

	// Directories and cache
	directory := persistence.NewGormTenantDirectory(db.DB, persistence.DirectoryOptions{
		Retries:    cfg.Tenancy.DirectoryRetries,
		RetryDelay: cfg.Tenancy.DirectoryRetryDelay,
		Logger:     log,
	})
	users := persistence.NewGormUserDirectory(platform)
	tenants, err := cache.NewTenantCache(directory,
		cache.WithTTL(cfg.Tenancy.CacheTTL),
		cache.WithSweepInterval(cfg.Tenancy.SweepInterval),
		cache.WithCacheLogger(log),
		cache.WithCacheMetrics(metrics),
	)
	if err != nil {
		return err
	}
	tenants.Start()

	var gateOpts []tenancy.GateOption
	if cfg.Tenancy.VerifyUserAssociation {
		gateOpts = append(gateOpts, tenancy.WithUserAssociation(users))
	}
	gate := tenancy.NewGate(tenants, trail, log, gateOpts...)
	verifier := tenancy.NewVerifier(users, trail, log)

	// Services
	scope := tenant.NewScope(db.DB)
	menuService := restaurantapp.NewMenuService(persistence.NewGormMenuItemRepository(scope))
	orderService := restaurantapp.NewOrderService(persistence.NewGormOrderRepository(scope), trail)
	settingsService := restaurantapp.NewSettingsService(tenants, directory, tenants, trail)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return err
	}
	middleware.SetupValidator()
	engine.Use(
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		logger.GinMiddleware(log),
		middleware.SpanErrorMarker(),
	)

	router.Setup(engine, router.Dependencies{
		Handlers: router.Handlers{
			Health:   handler.NewHealthHandler(db),
			Menu:     handler.NewMenuHandler(menuService),
			Orders:   handler.NewOrderHandler(orderService),
			Settings: handler.NewSettingsHandler(settingsService),
			Audit:    handler.NewAuditHandler(trail),
		},
		Tokens:     auth.NewJWTService(cfg.JWT),
		Gate:       gate,
		Verifier:   verifier,
		BaseDomain: cfg.Tenancy.BaseDomain,
		HintHeader: cfg.Tenancy.SubdomainHeader,
		HintQuery:  cfg.Tenancy.SubdomainQueryParam,
		Logger:     log,
	})

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
	var result *multierror.Error
	select {
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		result = multierror.Append(result, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop taking requests first, then drain what they recorded.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := tenants.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := trail.Close(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if closer, ok := spool.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
