package optimizer

import (
	"fmt"
)

// DefaultFuelPricePerLiter is the assumed pump price when none is configured.
const DefaultFuelPricePerLiter = 1.85

// Thresholds for operational warnings.
const (
	longRouteMinutes    = 480.0
	longRouteKm         = 300.0
	heavyStopOrderCount = 3
	largeRunOrderCount  = 20
)

// MetricsEstimator derives route-level cost and quality metrics.
type MetricsEstimator struct {
	fuelPricePerLiter float64
	profiles          map[VehicleType]VehicleProfile
}

// NewMetricsEstimator creates a metrics estimator. A zero fuel price falls
// back to DefaultFuelPricePerLiter; nil profiles fall back to the built-ins.
func NewMetricsEstimator(fuelPricePerLiter float64, profiles map[VehicleType]VehicleProfile) *MetricsEstimator {
	if fuelPricePerLiter <= 0 {
		fuelPricePerLiter = DefaultFuelPricePerLiter
	}
	if profiles == nil {
		profiles = DefaultVehicleProfiles()
	}
	return &MetricsEstimator{
		fuelPricePerLiter: fuelPricePerLiter,
		profiles:          profiles,
	}
}

// FuelCost estimates the fuel cost of a route for the given vehicle.
// Unknown vehicle types fall back to the van profile.
func (m *MetricsEstimator) FuelCost(distanceKm float64, vehicle VehicleType) float64 {
	profile, ok := m.profiles[vehicle]
	if !ok {
		profile = m.profiles[VehicleVan]
	}
	return distanceKm / 100.0 * profile.ConsumptionPer100Km * m.fuelPricePerLiter
}

// Efficiency scores a route in [0, 100] against a worst-case assumption of
// 10 km per stop: the shorter the actual route, the higher the score.
func (m *MetricsEstimator) Efficiency(distanceKm float64, stopCount int) float64 {
	if stopCount == 0 {
		return 0
	}
	worst := float64(stopCount) * 10.0
	score := (worst - distanceKm) / worst * 100.0
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// EstimatedLegsWarning is attached when some legs of a live route carry
// heuristic values because the routing provider could not measure them.
const EstimatedLegsWarning = "some route legs could not be measured live, their times and distances are heuristic estimates"

// Warnings inspects the computed route and returns operational advisories:
// unmeasured legs, long duration, long distance, heavily loaded stops, large
// order counts, and routes dominated by time window constraints.
func (m *MetricsEstimator) Warnings(totals RouteTotals, groups []LocationGroup) []string {
	var warnings []string

	if totals.EstimatedLegs > 0 {
		warnings = append(warnings, EstimatedLegsWarning)
	}
	if totals.DurationMinutes > longRouteMinutes {
		warnings = append(warnings, fmt.Sprintf(
			"route duration of %.0f minutes exceeds a standard 8-hour shift", totals.DurationMinutes))
	}
	if totals.DistanceKm > longRouteKm {
		warnings = append(warnings, fmt.Sprintf(
			"route distance of %.0f km exceeds %.0f km, consider splitting the run", totals.DistanceKm, longRouteKm))
	}

	heavyStops := 0
	totalOrders := 0
	windowedOrders := 0
	for _, g := range groups {
		totalOrders += g.TotalOrders
		if g.TotalOrders > heavyStopOrderCount {
			heavyStops++
		}
		for _, a := range g.Addresses {
			if a.TimeWindow != nil {
				windowedOrders++
			}
		}
	}

	if heavyStops > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d stops carry more than %d orders, allow extra handling time", heavyStops, heavyStopOrderCount))
	}
	if totalOrders > largeRunOrderCount {
		warnings = append(warnings, fmt.Sprintf(
			"%d orders on a single run, consider a second vehicle", totalOrders))
	}
	if totalOrders > 0 && windowedOrders*2 > totalOrders {
		warnings = append(warnings,
			"over half the orders carry time windows, the sequence favors window adherence over travel time")
	}

	return warnings
}
