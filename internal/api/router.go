// Package api provides the HTTP API for PartsRoute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/api/handler"
	"github.com/partsroute/partsroute/internal/api/middleware"
	"github.com/partsroute/partsroute/internal/history"
	"github.com/partsroute/partsroute/internal/optimizer"
	"github.com/partsroute/partsroute/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Optimizer is the route optimization engine (required).
	Optimizer *optimizer.Service

	// Plans stores optimized routes (optional; without it plans are not
	// persisted and the retrieval endpoints return 404).
	Plans history.Repository

	// Pool, Redis, and Registry feed the ops endpoints (all optional).
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Registry *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "partsroute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Pool:      cfg.Pool,
		Redis:     cfg.Redis,
		Registry:  cfg.Registry,
	})
	optimizeHandler := handler.NewOptimizeHandler(cfg.Optimizer, cfg.Plans, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Route optimization - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:optimize", optimizeHandler.OptimizeRoute)

		// Stored route plans - standard rate limiting
		r.Route("/routes", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", optimizeHandler.ListRoutePlans)
			r.Route("/{planId}", func(r chi.Router) {
				r.Get("/", optimizeHandler.GetRoutePlan)
				r.Delete("/", optimizeHandler.DeleteRoutePlan)
			})
		})
	})

	return r
}
