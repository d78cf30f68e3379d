// Package main is the entry point for the ranking API server.
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

	"github.com/okplace/listrank/internal/api"
	"github.com/okplace/listrank/internal/auth"
	"github.com/okplace/listrank/internal/completeness"
	"github.com/okplace/listrank/internal/config"
	"github.com/okplace/listrank/internal/counters"
	"github.com/okplace/listrank/internal/db"
	"github.com/okplace/listrank/internal/health"
	"github.com/okplace/listrank/internal/jobs"
	"github.com/okplace/listrank/internal/ledger"
	"github.com/okplace/listrank/internal/middleware"
	"github.com/okplace/listrank/internal/overall"
	"github.com/okplace/listrank/internal/property"
	"github.com/okplace/listrank/internal/rank"
	"github.com/okplace/listrank/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if *help {
		fmt.Println("Listrank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Redis is optional: when configured it backs shared rate limiting and
	// readiness checks, otherwise limits are per-instance in memory.
	var redisClient *redis.Client
	var rateStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		rateStore = middleware.NewRedisRateLimitStore(redisClient)
	}

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "listrank-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Stores and domain services.
	registry := property.NewPostgresRepository(database, logger)
	ledgerStore := ledger.NewPostgresStore(database, logger)
	counterStore := counters.NewPostgresStore(database, logger)
	rankStore := rank.NewPostgresStore(database, logger)

	traffic := counters.NewAggregator(counterStore, logger)
	calculator := overall.NewCalculator(ledgerStore, traffic, rankStore, logger)

	rankMetrics := rank.NewMetrics()
	assignor := rank.NewAssignor(registry, calculator, rankStore, rank.AssignorConfig{
		Logger:        logger,
		Metrics:       rankMetrics,
		GatherWorkers: cfg.GatherWorkers,
	})

	var reconciler *completeness.Reconciler
	if cfg.ReconcileEnabled {
		source := completeness.NewPostgresAttributeSource(database)
		reconciler = completeness.NewReconciler(
			completeness.DefaultChecklist(), source, registry, ledgerStore, logger)
	}

	jobMetrics := jobs.NewMetrics()
	batchJob := rank.NewJob(rank.JobConfig{
		Interval:   cfg.BatchInterval,
		Timeout:    cfg.BatchTimeout,
		Logger:     logger,
		JobMetrics: jobMetrics,
		Reconciler: reconciler,
	}, assignor)
	if err := batchJob.Start(ctx); err != nil {
		logger.Error("failed to start batch job", "error", err)
		os.Exit(1)
	}

	// Metrics registry.
	httpMetrics := middleware.NewMetrics()
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(httpMetrics.Collectors()...)
	promRegistry.MustRegister(rankMetrics.Collectors()...)
	promRegistry.MustRegister(jobMetrics.Collectors()...)

	// Handlers.
	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	authMiddleware := api.NewAuthMiddleware(jwtService)

	rankHandlers := api.NewRankHandlers(registry, rankStore, assignor)
	scoreHandlers := api.NewScoreHandlers(registry, ledgerStore, calculator)

	healthConfig := api.HealthHandlersConfig{DBChecker: health.NewDBChecker(database)}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	mutationLimit := middleware.RateLimiter(rateStore, middleware.DefaultMutationLimit(), middleware.SubjectKeyFunc(), httpMetrics)
	batchLimit := middleware.RateLimiter(rateStore, middleware.DefaultBatchLimit(), middleware.SubjectKeyFunc(), httpMetrics)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	// Exact match wins over the /ranks/ prefix, so the batch trigger cannot be
	// shadowed by a property reference.
	mux.Handle("/ranks/batch", authMiddleware.RequireAuth(batchLimit(http.HandlerFunc(rankHandlers.TriggerBatch))))
	mux.HandleFunc("/ranks/", rankHandlers.GetRank)
	mux.Handle("/scores/", authMiddleware.RequireAuth(mutationLimit(http.HandlerFunc(scoreHandlers.Route))))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"listrank-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware chain, outermost first:
	// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> Profiling -> global rate limit.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.Profiling(middleware.ProfilingConfig{Enabled: cfg.ProfilingEnabled, Environment: cfg.Env})(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing("listrank-api")(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	batchJob.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}
