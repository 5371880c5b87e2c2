// Package main is the entry point for the Talentboard API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/talentboard/internal/api"
	"github.com/onnwee/talentboard/internal/auth"
	"github.com/onnwee/talentboard/internal/config"
	"github.com/onnwee/talentboard/internal/db"
	"github.com/onnwee/talentboard/internal/feature"
	"github.com/onnwee/talentboard/internal/health"
	"github.com/onnwee/talentboard/internal/idempotency"
	"github.com/onnwee/talentboard/internal/listing"
	"github.com/onnwee/talentboard/internal/middleware"
	"github.com/onnwee/talentboard/internal/reach"
	"github.com/onnwee/talentboard/internal/scout"
	"github.com/onnwee/talentboard/internal/stage"
	"github.com/onnwee/talentboard/internal/talent"
	"github.com/onnwee/talentboard/internal/tracing"
)

const serviceName = "talentboard-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("Talentboard API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Database
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Redis is optional; feature gates, rate limiting, and the reach cache
	// degrade to local defaults without it.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	stageMetrics := stage.NewMetrics()
	scoutMetrics := scout.NewMetrics()
	for _, reg := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, stageMetrics, scoutMetrics} {
		if err := reg.Register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Repositories
	listingRepo := listing.NewPostgresRepository(conn)
	talentStore := talent.NewPostgresStore(conn)
	scoutRepo := scout.NewPostgresRepository(conn)

	// Feature gates
	var boostGate feature.Source = feature.StaticSource(cfg.BoostEnabled)
	if redisClient != nil {
		boostGate = feature.NewRedisSource(redisClient, cfg.BoostEnabled)
	}

	// Reach estimation with optional Redis cache
	var estimator reach.Estimator = reach.NewHTTPEstimator(cfg.ReachEstimatorURL)
	if redisClient != nil {
		ttl := time.Duration(cfg.ReachCacheTTLMinutes) * time.Minute
		estimator = reach.NewCachedEstimator(estimator, redisClient, ttl)
	}

	// Decision engines
	classifier := stage.NewClassifier(listingRepo, stage.SignalSet{
		Submissions: talentStore,
		Boost:       boostGate,
	}, stageMetrics)

	weights, err := scout.LoadCalibration(cfg.ScoutCalibrationFile)
	if err != nil {
		logger.Warn("scout calibration unavailable, using default weights", "error", err)
	}
	scoutService := scout.NewService(listingRepo, listingRepo.Sponsors(), talentStore, scoutRepo,
		scout.WithWeights(weights),
		scout.WithFreshness(time.Duration(cfg.ScoutFreshnessHours)*time.Hour),
		scout.WithLimit(cfg.ScoutLimit),
		scout.WithSecondaryAdjustment(cfg.ScoutSecondaryAdjust),
		scout.WithMetrics(scoutMetrics),
	)

	// Auth
	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	// Handlers
	stageHandlers := api.NewStageHandlers(classifier, estimator)
	scoutHandlers := api.NewScoutHandlers(scoutService)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(conn),
		RedisChecker:   redisChecker(redisClient),
		MetricsEnabled: true,
	})

	// Rate limiting: per-user fixed windows, Redis-backed when available.
	var limitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	if redisClient != nil {
		limitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
	}
	scoutLimiter := middleware.RateLimiter(limitStore, middleware.DefaultScoutLimit(), middleware.UserKeyFunc())
	inviteLimiter := middleware.RateLimiter(limitStore, middleware.DefaultInviteLimit(), middleware.UserKeyFunc())

	// Idempotency protection for the invite endpoint.
	idemRepo := idempotency.NewInMemoryRepository()
	idem := middleware.IdempotencyMiddleware(idemRepo, map[string]bool{
		"/api/listings/{id}/scouts/{user_id}/invite": true,
	})
	stopCleanup := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idemRepo, time.Hour, 24*time.Hour, stopCleanup)
	defer close(stopCleanup)

	mux := newRouter(routerDeps{
		stage:         stageHandlers,
		scouts:        scoutHandlers,
		health:        healthHandlers,
		metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		authn:         middleware.Auth(jwtService),
		scoutLimiter:  scoutLimiter,
		inviteLimiter: inviteLimiter,
		idem:          idem,
	})
	handler := wrapMiddleware(mux, logger, httpMetrics, cfg.Env, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

// routerDeps collects the handlers and per-route middleware the mux needs.
type routerDeps struct {
	stage   *api.StageHandlers
	scouts  *api.ScoutHandlers
	health  *api.HealthHandlers
	metrics http.Handler

	authn         func(http.Handler) http.Handler
	scoutLimiter  func(http.Handler) http.Handler
	inviteLimiter func(http.Handler) http.Handler
	idem          func(http.Handler) http.Handler
}

// newRouter builds the route table served behind the middleware chain.
func newRouter(d routerDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /api/sponsor/stage", d.authn(http.HandlerFunc(d.stage.GetSponsorStage)))
	mux.Handle("GET /api/listings/{id}/scouts", d.authn(d.scoutLimiter(http.HandlerFunc(d.scouts.GetListingScouts))))
	mux.Handle("POST /api/listings/{id}/scouts/{user_id}/invite",
		d.authn(d.inviteLimiter(d.idem(http.HandlerFunc(d.scouts.InviteScout)))))
	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /health/ready", d.health.Ready)
	mux.Handle("GET /metrics", d.metrics)
	return mux
}

// wrapMiddleware applies the shared chain:
// RequestID -> Tracing -> HTTPMetrics -> Logging -> CORS -> Profiling.
func wrapMiddleware(mux http.Handler, logger *slog.Logger, httpMetrics *middleware.Metrics, env string, corsOrigins []string) http.Handler {
	var handler http.Handler = mux
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     env == "development",
		Environment: env,
	})(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: corsOrigins})(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// redisChecker returns a health checker for the Redis client, or nil when
// Redis is not configured.
func redisChecker(client *redis.Client) api.HealthChecker {
	if client == nil {
		return nil
	}
	return health.NewRedisChecker(client)
}
