// Package main provides the entrypoint for the PartsRoute API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/advisor/httpadvisor"
	"github.com/partsroute/partsroute/internal/api"
	"github.com/partsroute/partsroute/internal/api/middleware"
	"github.com/partsroute/partsroute/internal/cache"
	"github.com/partsroute/partsroute/internal/database"
	"github.com/partsroute/partsroute/internal/geo"
	geoors "github.com/partsroute/partsroute/internal/geo/openrouteservice"
	"github.com/partsroute/partsroute/internal/history"
	"github.com/partsroute/partsroute/internal/optimizer"
	"github.com/partsroute/partsroute/internal/provider/resilience"
	"github.com/partsroute/partsroute/internal/routing"
	routingors "github.com/partsroute/partsroute/internal/routing/openrouteservice"
	"github.com/partsroute/partsroute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "partsroute-api"

	// Load .env in local development; in deployed environments the
	// variables come from the platform.
	_ = godotenv.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting PartsRoute API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Connect to Redis for the geocode cache (optional)
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer redisClient.Close() //nolint:errcheck // best effort cleanup
		log.Info().Str("addr", addr).Msg("redis connected")
	}

	// Provider health registry, shared by all outbound clients
	registry := resilience.NewRegistry()

	// Initialize geocoding and routing providers. Both are optional: without
	// an ORS key the engine answers every request from local estimation.
	var (
		geocoder        geo.Geocoder
		routingProvider routing.Provider
	)
	if orsKey := os.Getenv("ORS_API_KEY"); orsKey != "" {
		geocoder = geoors.NewClient(geoors.ClientConfig{
			APIKey:   orsKey,
			Registry: registry,
			Logger:   log,
		})
		if redisClient != nil {
			geocoder = cache.NewGeocodeCache(cache.GeocodeCacheConfig{
				Client: redisClient,
				Inner:  geocoder,
				Logger: log,
			})
		}

		routingProvider = routing.NewService(routing.ServiceConfig{
			Provider: routingors.NewClient(routingors.ClientConfig{
				APIKey:   orsKey,
				Registry: registry,
				Logger:   log,
			}),
			Logger: log,
		})
		log.Info().Msg("openrouteservice providers initialized")
	} else {
		log.Warn().Msg("ORS_API_KEY not set - running in local estimation mode")
	}

	// Initialize the optimization advisor (optional)
	engineCfg := optimizer.ServiceConfig{
		Geocoder: geocoder,
		Routing:  routingProvider,
		Logger:   log,
	}
	if advisorKey := os.Getenv("ADVISOR_API_KEY"); advisorKey != "" {
		engineCfg.Advisor = httpadvisor.NewClient(httpadvisor.ClientConfig{
			APIKey:   advisorKey,
			BaseURL:  os.Getenv("ADVISOR_BASE_URL"),
			Registry: registry,
			Logger:   log,
		})
		log.Info().Msg("optimization advisor initialized")
	} else {
		log.Info().Msg("advisor not configured - using deterministic planner")
	}

	engine := optimizer.NewService(engineCfg)
	log.Info().Msg("optimization engine initialized")

	// Route plan history
	plans := history.NewPostgresRepository(pool)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Optimizer:   engine,
		Plans:       plans,
		Pool:        pool,
		Redis:       redisClient,
		Registry:    registry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
