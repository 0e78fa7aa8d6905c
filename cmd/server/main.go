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
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/infrastructure/auth"
	"github.com/herbtrace/backend/internal/infrastructure/cache"
	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/herbtrace/backend/internal/infrastructure/ledger"
	"github.com/herbtrace/backend/internal/infrastructure/lock"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"github.com/herbtrace/backend/internal/infrastructure/persistence"
	"github.com/herbtrace/backend/internal/infrastructure/scheduler"
	"github.com/herbtrace/backend/internal/infrastructure/telemetry"
	"github.com/herbtrace/backend/internal/interfaces/http/handler"
	"github.com/herbtrace/backend/internal/interfaces/http/middleware"
	"github.com/herbtrace/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Herb Trace API
//	@version		1.0
//	@description	Herb batch traceability with dual writes to the local store and a Hyperledger Fabric ledger

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}
	collector := telemetry.Collector{
		Endpoint:       cfg.Telemetry.CollectorEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    serviceName,
		ServiceVersion: version,
	}

	// Log export needs a provider before the final logger can tee into it
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Collector: collector,
		Enabled:   cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    serviceName,
			LoggerProvider: loggerProvider,
			Level:          logger.ParseLevel(cfg.Log.Level),
		})
		if log, err = logger.New(logCfg, otelCore); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting herb trace backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Collector:     collector,
		Enabled:       cfg.Telemetry.Enabled,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.Profiling.Enabled,
		ServerAddress:     cfg.Telemetry.Profiling.ServerAddress,
		ApplicationName:   serviceName,
		BasicAuthUser:     cfg.Telemetry.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Telemetry.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Telemetry.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Telemetry.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Collector:      collector,
		Enabled:        cfg.Telemetry.MetricsEnabled,
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meterProvider.Meter("herbtrace/ledger"))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Database
	var gormOpts []logger.GormLoggerOption
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		gormOpts = append(gormOpts, logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), gormOpts...)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if db.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.App.Env == "development",
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected successfully", zap.String("driver", db.Driver))

	// Ledger
	gateway := newLedgerGateway(ctx, cfg.Ledger, ledgerMetrics, log)
	defer func() {
		if err := gateway.Disconnect(); err != nil {
			log.Error("Error closing ledger session", zap.Error(err))
		}
	}()

	// Redis is only needed for shared locks or token revocation
	var redisClient redis.UniversalClient
	if cfg.Lock.Driver == "redis" || cfg.JWT.CheckRevocation {
		client, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		redisClient = client
	}

	itemLocker, err := lock.New(cfg.Lock, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create item locker", zap.Error(err))
	}
	responseStore, err := cache.NewResponseStore(cfg.Lock, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	verifierOpts := []auth.VerifierOption{}
	if cfg.JWT.CheckRevocation {
		verifierOpts = append(verifierOpts,
			auth.WithRevocationList(auth.NewRedisRevocationList(redisClient, cfg.JWT.RevocationPrefix)),
		)
	}
	verifier := auth.NewTokenVerifier(cfg.JWT, verifierOpts...)

	// Repositories
	batchRepo := persistence.NewGormHerbBatchRepository(db.DB)
	bindingRepo := persistence.NewGormTraceBindingRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Application services
	auditService := traceability.NewAuditService(auditRepo)
	recorder := traceability.NewEventRecorder(txScope, gateway, auditService, itemLocker, log,
		traceability.WithLedgerTimeout(cfg.Ledger.WriteDeadline()),
	)
	journeys := traceability.NewJourneyReconciler(batchRepo, gateway, auditService, ledgerMetrics, log)
	traceLookup := traceability.NewTraceLookup(txScope, bindingRepo, batchRepo, journeys, log)
	itemService := traceability.NewItemService(txScope, batchRepo, bindingRepo, itemLocker)
	resubmissions := traceability.NewResubmissionService(gateway, auditService, itemLocker, ledgerMetrics,
		traceability.ResubmissionConfig{
			LedgerTimeout: cfg.Ledger.WriteDeadline(),
			BatchSize:     cfg.Resubmit.BatchSize,
			MaxAttempts:   cfg.Resubmit.MaxAttempts,
			Workers:       cfg.Resubmit.Workers,
		},
		log,
	)

	resubmitter := scheduler.NewResubmitter(resubmissions, log, scheduler.ResubmitterConfig{
		Enabled:  cfg.Resubmit.Enabled,
		Interval: cfg.Resubmit.Interval,
	})
	if err := resubmitter.Start(ctx); err != nil {
		log.Fatal("Failed to start ledger resubmitter", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Recovery first so a panic anywhere below still produces a response.
	// RequestID precedes tracing and logging so both can read it.
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFromHTTP(cfg.HTTP)))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: serviceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Logger:        log,
		Enabled:       cfg.Telemetry.MetricsEnabled,
	}))

	// Health check endpoint (outside API versioning)
	healthHandler := handler.NewHealthHandler(db, gateway, version)
	engine.GET("/health", healthHandler.Health)
	router.RegisterSwagger(engine)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuth(middleware.JWTMiddlewareConfig{
		Verifier: verifier,
		Required: cfg.JWT.Required,
		SkipPaths: []string{
			r.BasePath() + "/trace",
		},
		Logger: log,
	}))
	r.Use(middleware.SpanEnricher())

	var limiters []*middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiters = append(limiters, limiter)
		r.Use(middleware.RateLimit(limiter, middleware.ActorOrIPKey))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	guards := router.Guards{
		Idempotency: middleware.Idempotency(responseStore, middleware.IdempotencyConfig{
			TTL:      cfg.HTTP.IdempotencyTTL,
			ClaimTTL: cfg.HTTP.IdempotencyClaim,
		}, log),
	}
	if cfg.HTTP.TraceRateLimit > 0 {
		traceLimiter := middleware.NewRateLimiter(cfg.HTTP.TraceRateLimit, time.Minute)
		limiters = append(limiters, traceLimiter)
		guards.TraceLimit = middleware.RateLimit(traceLimiter, middleware.ClientIPKey)
	}
	defer func() {
		for _, l := range limiters {
			l.Close()
		}
	}()

	groups := router.RegisterTraceability(r, router.Handlers{
		Events: handler.NewEventHandler(recorder),
		Items:  handler.NewItemHandler(itemService, journeys),
		Trace:  handler.NewTraceHandler(traceLookup),
		Audit:  handler.NewAuditHandler(auditService, resubmissions),
	}, guards)
	r.Setup()
	for _, g := range groups {
		log.Debug("Route group registered",
			zap.String("group", g.Name()),
			zap.String("prefix", r.BasePath()+g.Prefix()),
			zap.Int("routes", len(g.Routes())),
		)
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
	if err := resubmitter.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping ledger resubmitter", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log exporter", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newLedgerGateway returns the shared Fabric gateway, or a disabled one when the
// ledger integration is switched off. A failed startup connect is not fatal: the
// gateway reconnects on first use and writes degrade to FAILED until then.
func newLedgerGateway(ctx context.Context, cfg config.LedgerConfig, metrics *telemetry.LedgerMetrics, log *zap.Logger) *ledger.Gateway {
	if !cfg.Enabled {
		log.Warn("Ledger integration disabled; every write will be recorded as FAILED")
		return ledger.NewDisabledGateway(log)
	}

	gateway := ledger.NewGateway(ledger.NewFabricConnector(cfg), ledger.SettingsFromConfig(cfg), log,
		ledger.WithMetrics(metrics),
	)
	if cfg.ConnectOnStartup {
		if err := gateway.Connect(ctx); err != nil {
			log.Warn("Ledger unreachable at startup", zap.Error(err))
		}
	}
	log.Info("Ledger gateway configured",
		zap.String("peer", cfg.PeerEndpoint),
		zap.String("channel", cfg.Channel),
		zap.String("chaincode", cfg.Chaincode),
	)
	return gateway
}
