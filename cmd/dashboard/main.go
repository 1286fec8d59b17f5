package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BowlPulp/HodlSync/internal/application/services"
	"github.com/BowlPulp/HodlSync/internal/config"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/auth"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/cache"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/provider"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/registry"
	"github.com/BowlPulp/HodlSync/internal/presentation/handlers"
	"github.com/BowlPulp/HodlSync/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level)
	defer logger.Sync()

	logger.Info("Starting HodlSync dashboard",
		zap.Int("port", cfg.Dashboard.Port),
		zap.String("registry_url", cfg.Dashboard.RegistryURL),
		zap.Duration("cache_ttl", cfg.Dashboard.CacheTTL),
	)

	// Connect to Redis (optional, in-memory store otherwise)
	var store cache.Store
	redisStore, err := cache.NewRedisStore(cfg.Redis, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, using in-memory cache", zap.Error(err))
		store = cache.NewMemoryStore()
	} else {
		defer redisStore.Close()
		store = redisStore
	}

	// Create clients and services
	tokens := auth.NewTokenManager(cfg.Auth)
	registryClient := registry.NewClient(cfg.Dashboard.RegistryURL, cfg.Auth.CookieName, nil, logger)
	providerClient := provider.NewMoralisClient(cfg.Provider, logger)
	aggregator := services.NewAggregatorService(
		registryClient,
		providerClient,
		store,
		cfg.Dashboard.CacheTTL,
		logger,
	)

	// Create handlers
	portfolioHandler := handlers.NewPortfolioHandler(aggregator, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthChecker{
		"cache": store,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RateLimiter(cfg.Dashboard.RateLimitRPS))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens, cfg.Auth.CookieName))
		portfolioHandler.RegisterRoutes(r)
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Dashboard.ReadTimeout,
		WriteTimeout: cfg.Dashboard.WriteTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("Dashboard server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dashboard.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}
