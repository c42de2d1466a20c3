// Package main provides the entrypoint for the PartsRoute dispatch worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/advisor/httpadvisor"
	"github.com/partsroute/partsroute/internal/database"
	"github.com/partsroute/partsroute/internal/geo"
	geoors "github.com/partsroute/partsroute/internal/geo/openrouteservice"
	"github.com/partsroute/partsroute/internal/history"
	"github.com/partsroute/partsroute/internal/optimizer"
	"github.com/partsroute/partsroute/internal/provider/resilience"
	"github.com/partsroute/partsroute/internal/routing"
	routingors "github.com/partsroute/partsroute/internal/routing/openrouteservice"
	"github.com/partsroute/partsroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "partsroute-worker"

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
		Msg("starting PartsRoute worker")

	// Get port from environment or default to 8080
	// Worker also exposes health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID == "" || subscription == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION are required")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database for route plan storage
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Provider health registry, shared by all outbound clients
	registry := resilience.NewRegistry()

	// Same provider wiring as the API: without an ORS key every run is
	// answered from local estimation.
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
	}

	dispatchJob := worker.NewDispatchJob(worker.DispatchJobConfig{
		Config: worker.DefaultDispatchConfig(),
		Engine: optimizer.NewService(engineCfg),
		Plans:  history.NewPostgresRepository(pool),
		Logger: log,
	})

	pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        projectID,
		SubscriptionName: subscription,
		DispatchJob:      dispatchJob,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer pubsubHandler.Close() //nolint:errcheck // best effort cleanup

	// Create HTTP server for health checks
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start health check server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Start message processing
	go func() {
		if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("pubsub handler error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
