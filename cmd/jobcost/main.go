package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/config"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/handler"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/cache"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/observability"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/resilience"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/supabase"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "jobcost-engine")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	analysisCache := cache.New[*domain.CostAnalysis](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var svc *service.AnalysisService
	if cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		supabaseClient := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		stores := service.Stores{
			Jobs:       supabaseClient,
			JobBudgets: supabaseClient,
			Ledger:     supabaseClient,
			Budgets:    supabaseClient,
			BOM:        supabaseClient,
			Insights:   supabaseClient,
		}
		svc = service.NewAnalysisService(stores, analysisCache, cfg.MaxConcurrency, metrics, logger)
	} else {
		logger.Warn("analysis service: Supabase not configured, /v1 routes unavailable")
	}

	// --- Router ---
	router := handler.NewRouter(svc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
