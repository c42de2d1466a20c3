// Package handler provides HTTP handlers for the PartsRoute API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/partsroute/partsroute/internal/api/models"
	"github.com/partsroute/partsroute/internal/api/response"
	"github.com/partsroute/partsroute/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	pool      *pgxpool.Pool
	redis     *redis.Client
	registry  *resilience.Registry
}

// OpsConfig wires the dependencies the ops endpoints report on. Every field
// except Version is optional; absent dependencies are simply not reported.
type OpsConfig struct {
	Version   string
	BuildTime string
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		pool:      cfg.Pool,
		redis:     cfg.Redis,
		registry:  cfg.Registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service is
// ready when its storage dependencies answer; external routing providers are
// deliberately excluded since the engine degrades without them.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := models.HealthStatusOK
	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			status = models.HealthStatusFail
		}
	}
	if h.redis != nil && status == models.HealthStatusOK {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			// The geocode cache is fail-open; a dead Redis degrades, not fails.
			status = models.HealthStatusDegraded
		}
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
	}

	if h.pool != nil {
		sub := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		if err := h.pool.Ping(ctx); err != nil {
			sub.Status = models.HealthStatusFail
			detail := err.Error()
			sub.Detail = &detail
			status.Status = models.HealthStatusFail
		}
		status.Subsystems = append(status.Subsystems, sub)
	}
	if h.redis != nil {
		sub := models.SubsystemStatus{Name: "redis", Status: models.HealthStatusOK}
		if err := h.redis.Ping(ctx).Err(); err != nil {
			sub.Status = models.HealthStatusDegraded
			detail := err.Error()
			sub.Detail = &detail
			if status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.registry != nil {
		for _, health := range h.registry.GetAllHealth() {
			provider := models.ProviderStatus{
				Provider: health.Name,
				Status:   models.HealthStatusOK,
			}
			switch {
			case health.IsUnhealthy():
				provider.Status = models.HealthStatusFail
			case health.IsDegraded():
				provider.Status = models.HealthStatusDegraded
			}
			if health.LastSuccessAt != nil {
				ts := models.Timestamp(*health.LastSuccessAt)
				provider.LastSuccessAt = &ts
			}
			if health.LastFailureAt != nil {
				ts := models.Timestamp(*health.LastFailureAt)
				provider.LastFailureAt = &ts
			}
			if health.LastError != "" {
				msg := health.LastError
				provider.Message = &msg
			}
			// A broken provider degrades route quality but never takes the
			// service down; the fallback engine keeps answering.
			if provider.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
				status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, "local-estimation")
			}
			status.Providers = append(status.Providers, provider)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}
