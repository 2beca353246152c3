package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"chaingate/internal/analytics"
	"chaingate/internal/api"
	"chaingate/internal/config"
	"chaingate/internal/credentials"
	"chaingate/internal/logger"
	"chaingate/internal/models"
	"chaingate/internal/observability"
	"chaingate/internal/ratelimit"
	"chaingate/internal/storage"
	"chaingate/internal/version"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize credential storage
	storeInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storeInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStore storage.Store = storeInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStore(storeInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStore = instrumented
	}

	if err := seedBootstrapKey(context.Background(), activeStore, cfg); err != nil {
		slog.Error("Failed to seed bootstrap key", "error", err)
		os.Exit(1)
	}

	// Assemble admission control
	var (
		limiter        *ratelimit.Middleware
		counterHealthy func() bool
	)
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			// Startup proceeds; the failover counter enforces limits
			// locally until Redis comes back.
			slog.Warn("Redis unreachable at startup; rate limits start on local counters", "error", err)
		}
		cancel()

		local := ratelimit.NewLocalCounter(cfg.RateLimit.SweepInterval)
		defer local.Close()

		failover := ratelimit.NewFailoverCounter(
			ratelimit.NewRedisCounter(redisClient),
			local,
			cfg.RateLimit.StoreTimeout,
		)
		counterHealthy = failover.Healthy

		var counters ratelimit.CounterStore = failover
		if cfg.Metrics.Enabled {
			instrumented, err := observability.NewInstrumentedCounter(failover)
			if err != nil {
				slog.Error("Failed to create instrumented counter store", "error", err)
				os.Exit(1)
			}
			counters = instrumented
		}

		registry := ratelimit.NewRegistry()
		for endpoint, limits := range cfg.RateLimit.Endpoints {
			if err := registry.Register(endpoint, limits); err != nil {
				slog.Error("Invalid rate limit configuration", "endpoint", endpoint, "error", err)
				os.Exit(1)
			}
		}
		registry.Seal()

		var engineOpts []ratelimit.EngineOption
		if cfg.Metrics.Enabled {
			recorder, err := observability.NewDecisionRecorder()
			if err != nil {
				slog.Error("Failed to create decision recorder", "error", err)
				os.Exit(1)
			}
			engineOpts = append(engineOpts, ratelimit.WithRecorder(recorder))
		}

		limiter = ratelimit.NewMiddleware(
			ratelimit.NewResolver(credentials.NewStoreValidator(activeStore)),
			ratelimit.NewEngine(registry, counters, engineOpts...),
		)
	}

	// Initialize HTTP handlers
	handlers := api.NewHandlers(analytics.NewService(), activeStore, counterHealthy)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(handlers, cfg, limiter, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// seedBootstrapKey inserts the configured bootstrap key into storage if it
// does not already exist. It is a no-op when BootstrapKey is empty.
func seedBootstrapKey(ctx context.Context, store storage.Store, cfg *models.Config) error {
	raw := cfg.Security.BootstrapKey
	if raw == "" {
		return nil
	}
	if _, err := store.GetAPIKeyByHash(ctx, models.HashAPIKey(raw)); err == nil {
		// Already seeded - idempotent.
		return nil
	}
	name := cfg.Security.BootstrapKeyName
	if name == "" {
		name = "bootstrap"
	}
	key := models.NewAPIKey(models.NewKeyID(), name, raw, models.TierPremium, nil)
	if err := store.SaveAPIKey(ctx, key); err != nil {
		return fmt.Errorf("seed bootstrap key: %w", err)
	}
	slog.Info("Bootstrap API key seeded", "id", key.ID, "prefix", key.Prefix)
	return nil
}
