package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/api/models"
	"github.com/partsroute/partsroute/internal/api/response"
	"github.com/partsroute/partsroute/internal/history"
	"github.com/partsroute/partsroute/internal/optimizer"
)

// OptimizeHandler handles route optimization endpoints.
type OptimizeHandler struct {
	service  *optimizer.Service
	plans    history.Repository
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewOptimizeHandler creates a new OptimizeHandler. The plan repository may
// be nil, in which case results are returned but not stored.
func NewOptimizeHandler(service *optimizer.Service, plans history.Repository, logger zerolog.Logger) *OptimizeHandler {
	return &OptimizeHandler{
		service:  service,
		plans:    plans,
		validate: validator.New(),
		logger:   logger,
	}
}

// OptimizeRoute handles POST /v1/routes:optimize.
func (h *OptimizeHandler) OptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var input models.OptimizeRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := h.validate.Struct(&input); err != nil {
		response.BadRequest(w, r, "request validation failed", fieldErrors(err))
		return
	}

	depot, addresses, opts := input.ToDomain()

	result, err := h.service.OptimizeRoute(r.Context(), depot, addresses, opts)
	if err != nil {
		var verr *optimizer.ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(w, r, verr.Message, nil)
			return
		}
		response.InternalError(w, r, "route optimization failed")
		return
	}

	plan := &history.RoutePlan{
		ID:        uuid.NewString(),
		Depot:     depot,
		Addresses: addresses,
		Options:   opts,
		Result:    result,
		Source:    result.Source,
		CreatedAt: time.Now(),
	}

	if h.plans != nil {
		if err := h.plans.Create(r.Context(), plan); err != nil {
			// Persistence is best effort; the dispatcher still gets the route.
			h.logger.Error().Err(err).Str("plan_id", plan.ID).Msg("failed to store route plan")
		}
	}

	location := fmt.Sprintf("/v1/routes/%s", plan.ID)
	response.Created(w, r, location, models.RoutePlanResponse{
		PlanID:    plan.ID,
		Depot:     plan.Depot,
		Result:    result,
		CreatedAt: models.Timestamp(plan.CreatedAt),
	})
}

// GetRoutePlan handles GET /v1/routes/{planId}.
func (h *OptimizeHandler) GetRoutePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planId")
	if _, err := uuid.Parse(planID); err != nil {
		response.BadRequest(w, r, "planId must be a UUID", nil)
		return
	}
	if h.plans == nil {
		response.NotFound(w, r, "route plan not found")
		return
	}

	plan, err := h.plans.Get(r.Context(), planID)
	if err != nil {
		if errors.Is(err, history.ErrPlanNotFound) {
			response.NotFound(w, r, "route plan not found")
			return
		}
		response.InternalError(w, r, "failed to load route plan")
		return
	}

	response.JSON(w, r, http.StatusOK, models.RoutePlanResponse{
		PlanID:    plan.ID,
		Depot:     plan.Depot,
		Result:    plan.Result,
		CreatedAt: models.Timestamp(plan.CreatedAt),
	})
}

// ListRoutePlans handles GET /v1/routes.
func (h *OptimizeHandler) ListRoutePlans(w http.ResponseWriter, r *http.Request) {
	if h.plans == nil {
		response.JSON(w, r, http.StatusOK, models.PagedRoutePlans{
			Items: []models.RoutePlanSummary{},
			Meta:  models.PagedResponseMeta{Limit: 50},
		})
		return
	}

	opts := history.ListOptions{
		Cursor: r.URL.Query().Get("cursor"),
	}

	result, err := h.plans.List(r.Context(), opts)
	if err != nil {
		response.InternalError(w, r, "failed to list route plans")
		return
	}

	items := make([]models.RoutePlanSummary, 0, len(result.Items))
	for _, plan := range result.Items {
		summary := models.RoutePlanSummary{
			PlanID:    plan.ID,
			Depot:     plan.Depot,
			Source:    plan.Source,
			CreatedAt: models.Timestamp(plan.CreatedAt),
		}
		if plan.Result != nil {
			summary.StopCount = len(plan.Result.Stops)
			summary.TotalDistanceKm = plan.Result.TotalDistanceKm
			summary.TotalDurationMinutes = plan.Result.TotalDurationMinutes
		}
		items = append(items, summary)
	}

	page := models.PagedRoutePlans{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: 50},
	}
	if result.NextCursor != "" {
		page.Meta.NextCursor = &result.NextCursor
	}

	response.JSON(w, r, http.StatusOK, page)
}

// DeleteRoutePlan handles DELETE /v1/routes/{planId}.
func (h *OptimizeHandler) DeleteRoutePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planId")
	if _, err := uuid.Parse(planID); err != nil {
		response.BadRequest(w, r, "planId must be a UUID", nil)
		return
	}
	if h.plans == nil {
		response.NotFound(w, r, "route plan not found")
		return
	}

	if err := h.plans.Delete(r.Context(), planID); err != nil {
		if errors.Is(err, history.ErrPlanNotFound) {
			response.NotFound(w, r, "route plan not found")
			return
		}
		response.InternalError(w, r, "failed to delete route plan")
		return
	}

	response.NoContent(w, r)
}

// fieldErrors converts validator errors into API field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Namespace(),
			Message: fmt.Sprintf("failed validation on %q", fe.Tag()),
			Code:    fe.Tag(),
		})
	}
	return out
}
