// Package optimizer implements the delivery route optimization engine: it
// turns a batch of delivery addresses into an ordered, time- and
// distance-annotated visiting sequence for a dispatch run.
package optimizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/partsroute/partsroute/internal/geo"
	"github.com/partsroute/partsroute/internal/routing"
)

// Priority is the delivery priority of an order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight returns the sort weight of a priority; lower sorts earlier.
// Addresses without a priority sort after all prioritized ones.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// TimeWindow is a local time-of-day delivery window ("HH:MM").
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// StartMinutes returns the window start as minutes since midnight.
func (w TimeWindow) StartMinutes() (int, error) {
	return parseClock(w.Start)
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// Address is one delivery requirement submitted to the engine.
// Immutable once submitted.
type Address struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	OrderID      string      `json:"orderId"`
	CustomerName string      `json:"customerName"`
	OrderNumber  string      `json:"orderNumber,omitempty"`
	Priority     Priority    `json:"priority,omitempty"`
	TimeWindow   *TimeWindow `json:"timeWindow,omitempty"`
}

// LocationGroup is a physical stop: one or more addresses whose resolved
// coordinates fall within the consolidation threshold of each other.
type LocationGroup struct {
	ID string `json:"id"`

	// Address is the representative address text (the first member's).
	Address string `json:"address"`

	// Coordinate is the resolved position, nil when geocoding failed.
	Coordinate *geo.Coordinate `json:"coordinate,omitempty"`

	// Addresses are the member addresses in discovery order.
	Addresses []Address `json:"addresses"`

	// TotalOrders is the member count.
	TotalOrders int `json:"totalOrders"`

	// Customers are the deduplicated customer names, in discovery order.
	Customers []string `json:"customers"`
}

// earliestWindow returns the earliest member time window start in minutes
// since midnight, or -1 when no member carries a window.
func (g *LocationGroup) earliestWindow() int {
	earliest := -1
	for _, a := range g.Addresses {
		if a.TimeWindow == nil {
			continue
		}
		start, err := a.TimeWindow.StartMinutes()
		if err != nil {
			continue
		}
		if earliest == -1 || start < earliest {
			earliest = start
		}
	}
	return earliest
}

// topPriority returns the highest member priority weight.
func (g *LocationGroup) topPriority() int {
	best := Priority("").Weight()
	for _, a := range g.Addresses {
		if w := a.Priority.Weight(); w < best {
			best = w
		}
	}
	return best
}

// VehicleType identifies the delivery vehicle class.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleVan        VehicleType = "van"
	VehicleTruck      VehicleType = "truck"
	VehicleMotorcycle VehicleType = "motorcycle"
)

// VehicleProfile holds the per-vehicle constants used for cost estimation
// and routing profile selection.
type VehicleProfile struct {
	// RoutingProfile is the road-network profile used for travel lookups.
	RoutingProfile routing.Profile

	// ConsumptionPer100Km is the fuel consumption in liters per 100 km.
	ConsumptionPer100Km float64

	// UrbanSpeedKmPerMin is the assumed urban speed for heuristic estimates.
	UrbanSpeedKmPerMin float64
}

// DefaultVehicleProfiles returns the built-in vehicle profiles.
func DefaultVehicleProfiles() map[VehicleType]VehicleProfile {
	return map[VehicleType]VehicleProfile{
		VehicleCar:        {RoutingProfile: routing.ProfileCar, ConsumptionPer100Km: 8.0, UrbanSpeedKmPerMin: 0.5},
		VehicleVan:        {RoutingProfile: routing.ProfileHGV, ConsumptionPer100Km: 11.0, UrbanSpeedKmPerMin: 0.45},
		VehicleTruck:      {RoutingProfile: routing.ProfileHGV, ConsumptionPer100Km: 18.0, UrbanSpeedKmPerMin: 0.38},
		VehicleMotorcycle: {RoutingProfile: routing.ProfileCar, ConsumptionPer100Km: 4.5, UrbanSpeedKmPerMin: 0.55},
	}
}

// Options are the per-request optimization options.
type Options struct {
	// VehicleType selects the vehicle profile (default: van).
	VehicleType VehicleType `json:"vehicleType,omitempty"`

	// ConsiderTraffic requests traffic-aware travel durations.
	ConsiderTraffic bool `json:"considerTraffic,omitempty"`

	// DepartureTime is the planned departure. When absent or too close to
	// now, it is advanced to now plus the provider's minimum lead.
	DepartureTime *time.Time `json:"departureTime,omitempty"`

	// MaxStopsPerRoute lowers the engine's configured maximum (default: 20)
	// for this request. Values above the configured maximum are ignored.
	MaxStopsPerRoute int `json:"maxStopsPerRoute,omitempty"`

	// ServiceTimePerStop is the handling time per order in minutes
	// (default: 5). A stop's service time is TotalOrders times this value.
	ServiceTimePerStop int `json:"serviceTimePerStop,omitempty"`

	// WorkingHours constrains the dispatch run, advisory only.
	WorkingHours *TimeWindow `json:"workingHours,omitempty"`
}

// OptimizedStop is one position in the final route.
type OptimizedStop struct {
	// Order is the 1-based position in the visiting sequence.
	Order int `json:"order"`

	Group LocationGroup `json:"group"`

	// TravelTimeMinutes and TravelDistanceKm describe the incoming leg.
	TravelTimeMinutes float64 `json:"travelTimeMinutes"`
	TravelDistanceKm  float64 `json:"travelDistanceKm"`

	// CumulativeTimeMinutes and CumulativeDistanceKm run from route start,
	// service time included. Non-decreasing across the sequence.
	CumulativeTimeMinutes float64 `json:"cumulativeTimeMinutes"`
	CumulativeDistanceKm  float64 `json:"cumulativeDistanceKm"`

	// EstimatedArrival is the wall-clock arrival at this stop.
	EstimatedArrival time.Time `json:"estimatedArrival"`

	// Estimated is true when the leg values come from a heuristic rather
	// than a routing provider measurement.
	Estimated bool `json:"estimated,omitempty"`

	// LegGeometry is the encoded polyline of the incoming leg, when known.
	LegGeometry string `json:"legGeometry,omitempty"`
}

// Result is the engine's output for one optimization request.
type Result struct {
	Stops []OptimizedStop `json:"stops"`

	// TotalDistanceKm includes the return leg to the depot.
	TotalDistanceKm float64 `json:"totalDistanceKm"`

	// TotalDurationMinutes includes per-stop service time and the return leg.
	TotalDurationMinutes float64 `json:"totalDurationMinutes"`

	// DrivingTimeMinutes excludes service time.
	DrivingTimeMinutes float64 `json:"drivingTimeMinutes"`

	// FuelCostEstimate is in currency units.
	FuelCostEstimate float64 `json:"fuelCostEstimate"`

	// RouteEfficiency is a bounded score in [0, 100].
	RouteEfficiency float64 `json:"routeEfficiency"`

	Warnings []string `json:"warnings"`

	// DepartureTime is the effective departure after any adjustment.
	DepartureTime time.Time `json:"departureTime"`

	// BoundingBox is the map viewport covering the route, when computable.
	BoundingBox *geo.Bound `json:"boundingBox,omitempty"`

	// AdvisorReasoning and AdvisorInsights are present when the sequence
	// came from the optimization advisor.
	AdvisorReasoning string   `json:"advisorReasoning,omitempty"`
	AdvisorInsights  []string `json:"advisorInsights,omitempty"`

	// Source records how the route was produced: "advisor", "heuristic",
	// or "local-estimate".
	Source string `json:"source"`
}

// Route sources.
const (
	SourceAdvisor       = "advisor"
	SourceHeuristic     = "heuristic"
	SourceLocalEstimate = "local-estimate"
)

// ValidationError is the only error class surfaced to callers: the input
// shape is unusable and no route can be produced.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
