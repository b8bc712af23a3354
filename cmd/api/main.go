package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jdavido74/medical-pro/cmd/mainconfig"
	"github.com/jdavido74/medical-pro/internal/api/router"
	"github.com/jdavido74/medical-pro/internal/appointments"
	"github.com/jdavido74/medical-pro/internal/audit"
	"github.com/jdavido74/medical-pro/internal/availability"
	"github.com/jdavido74/medical-pro/internal/cache"
	"github.com/jdavido74/medical-pro/internal/clinic"
	appconfig "github.com/jdavido74/medical-pro/internal/config"
	"github.com/jdavido74/medical-pro/internal/events"
	httpmiddleware "github.com/jdavido74/medical-pro/internal/http/middleware"
	"github.com/jdavido74/medical-pro/internal/observability/metrics"
	"github.com/jdavido74/medical-pro/internal/realtime"
	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling API", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid clinic timezone", "error", err)
		os.Exit(1)
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	redisClient := newRedisClient(cfg)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	metricsHandler, schedMetrics := setupMetrics()

	// Shared cache, kept coherent across instances over Redis pub/sub.
	sharedCache := cache.New()
	bridge := cache.NewRedisBridge(redisClient, sharedCache, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("cache bridge stopped", "error", err)
		}
	}()

	clinicStore := clinic.NewStore(redisClient)
	availabilityStore := availability.NewStore(pool)
	appointmentRepo := appointments.NewRepository(pool)
	outbox := events.NewOutboxStore(pool)
	auditService := audit.NewService(auditDB)

	planner := scheduling.NewPlanner(
		clinic.NewCachedSource(clinicStore, sharedCache, cfg.CacheTTL),
		availability.NewCachedSource(availabilityStore, sharedCache, cfg.CacheTTL),
		appointmentRepo,
		scheduling.WithLocation(loc),
		scheduling.WithGranularity(cfg.SlotGranularityMinutes),
		scheduling.WithLogger(logger),
		scheduling.WithObserver(schedMetrics),
	)

	hub := realtime.NewHub(logger)
	bookingService := appointments.NewService(
		appointmentRepo,
		planner,
		appointments.NewRedisLocker(redisClient, cfg.SlotLockTTL),
		appointments.WithEvents(outbox),
		appointments.WithAuditor(auditService),
		appointments.WithTracker(appointments.NewTracker(realtime.TrackerListener(hub))),
		appointments.WithObserver(schedMetrics),
		appointments.WithLogger(logger),
	)

	deliveryHandler := buildDeliveryHandler(ctx, cfg, sharedCache, hub, logger)
	deliverer := events.NewDeliverer(outbox, deliveryHandler, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval).
		WithRetry(cfg.OutboxMaxAttempts, cfg.OutboxRetryBackoff).
		WithObserver(schedMetrics)
	go deliverer.Start(ctx)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	handler := router.New(&router.Config{
		Logger:       logger,
		Env:          cfg.Env,
		Appointments: appointments.NewHandler(planner, bookingService, logger),
		Availability: availability.NewHandler(availabilityStore, sharedCache, outbox, logger),
		Clinic:       clinic.NewHandler(clinicStore, sharedCache, logger),
		Audit:        audit.NewHandler(auditService, logger),
		Realtime:     realtime.NewHandler(hub, cfg.CORSAllowedOrigins, logger),
		HealthChecks: map[string]router.Check{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	// One last pass so events written during shutdown are not left waiting.
	if n := deliverer.Drain(shutdownCtx); n > 0 {
		logger.Info("outbox drained on shutdown", "delivered", n)
	}
	logger.Info("server stopped")
}

// connectPostgresPool returns nil when databaseURL is empty or unusable.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		return nil
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return nil
	}
	return pool
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// setupMetrics registers scheduling metrics plus the Go runtime collectors
// on a dedicated registry.
func setupMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSchedulingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// buildDeliveryHandler fans outbox entries out to cache invalidation, the
// websocket hub and, when a queue is configured, SQS.
func buildDeliveryHandler(ctx context.Context, cfg *appconfig.Config, c *cache.Cache, hub *realtime.Hub, logger *logging.Logger) events.DeliveryHandler {
	fanout := events.Fanout{
		availability.Invalidator(c),
		realtime.NewNotifier(hub),
	}
	if cfg.ScheduleEventsQueueURL == "" {
		return fanout
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config; schedule events stay local", "error", err)
		return fanout
	}
	client := mainconfig.NewSQSClient(awsCfg, cfg)
	return append(fanout, events.NewSQSPublisher(client, cfg.ScheduleEventsQueueURL))
}
