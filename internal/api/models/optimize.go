package models

import (
	"time"

	"github.com/partsroute/partsroute/internal/optimizer"
)

// TimeWindowInput is a delivery time window in the request payload.
type TimeWindowInput struct {
	Start string `json:"start" validate:"required,len=5"`
	End   string `json:"end" validate:"required,len=5"`
}

// AddressInput is one delivery address in an optimization request.
type AddressInput struct {
	ID           string           `json:"id" validate:"required"`
	Address      string           `json:"address" validate:"required,min=3"`
	OrderID      string           `json:"orderId" validate:"required"`
	CustomerName string           `json:"customerName" validate:"required"`
	OrderNumber  string           `json:"orderNumber,omitempty"`
	Priority     string           `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	TimeWindow   *TimeWindowInput `json:"timeWindow,omitempty"`
}

// OptimizeOptionsInput carries per-request optimization options.
type OptimizeOptionsInput struct {
	VehicleType        string           `json:"vehicleType,omitempty" validate:"omitempty,oneof=car van truck motorcycle"`
	ConsiderTraffic    bool             `json:"considerTraffic,omitempty"`
	DepartureTime      *time.Time       `json:"departureTime,omitempty"`
	MaxStopsPerRoute   int              `json:"maxStopsPerRoute,omitempty" validate:"omitempty,gte=1,lte=20"`
	ServiceTimePerStop int              `json:"serviceTimePerStop,omitempty" validate:"omitempty,gte=1,lte=120"`
	WorkingHours       *TimeWindowInput `json:"workingHours,omitempty"`
}

// OptimizeRouteRequest is the payload for POST /v1/routes:optimize.
type OptimizeRouteRequest struct {
	Depot     string               `json:"depot" validate:"required,min=3"`
	Addresses []AddressInput       `json:"addresses" validate:"required,min=1,max=20,dive"`
	Options   OptimizeOptionsInput `json:"options"`
}

// ToDomain converts the request into engine types.
func (r *OptimizeRouteRequest) ToDomain() (string, []optimizer.Address, optimizer.Options) {
	addresses := make([]optimizer.Address, len(r.Addresses))
	for i, a := range r.Addresses {
		addr := optimizer.Address{
			ID:           a.ID,
			Text:         a.Address,
			OrderID:      a.OrderID,
			CustomerName: a.CustomerName,
			OrderNumber:  a.OrderNumber,
			Priority:     optimizer.Priority(a.Priority),
		}
		if a.TimeWindow != nil {
			addr.TimeWindow = &optimizer.TimeWindow{Start: a.TimeWindow.Start, End: a.TimeWindow.End}
		}
		addresses[i] = addr
	}

	opts := optimizer.Options{
		VehicleType:        optimizer.VehicleType(r.Options.VehicleType),
		ConsiderTraffic:    r.Options.ConsiderTraffic,
		DepartureTime:      r.Options.DepartureTime,
		MaxStopsPerRoute:   r.Options.MaxStopsPerRoute,
		ServiceTimePerStop: r.Options.ServiceTimePerStop,
	}
	if r.Options.WorkingHours != nil {
		opts.WorkingHours = &optimizer.TimeWindow{
			Start: r.Options.WorkingHours.Start,
			End:   r.Options.WorkingHours.End,
		}
	}

	return r.Depot, addresses, opts
}

// RoutePlanResponse is the payload returned for an optimized route.
type RoutePlanResponse struct {
	PlanID    string            `json:"planId"`
	Depot     string            `json:"depot"`
	Result    *optimizer.Result `json:"result"`
	CreatedAt Timestamp         `json:"createdAt"`
}

// PagedRoutePlans is a page of stored route plans.
type PagedRoutePlans struct {
	Items []RoutePlanSummary `json:"items"`
	Meta  PagedResponseMeta  `json:"meta"`
}

// RoutePlanSummary is a stored plan without the full stop list.
type RoutePlanSummary struct {
	PlanID               string    `json:"planId"`
	Depot                string    `json:"depot"`
	StopCount            int       `json:"stopCount"`
	TotalDistanceKm      float64   `json:"totalDistanceKm"`
	TotalDurationMinutes float64   `json:"totalDurationMinutes"`
	Source               string    `json:"source"`
	CreatedAt            Timestamp `json:"createdAt"`
}
