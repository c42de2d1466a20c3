package optimizer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/geo"
	"github.com/partsroute/partsroute/internal/routing"
)

// Heuristic constants for legs the routing provider cannot measure.
// Urban driving is assumed at roughly 30 km/h, so distance is derived from
// time at 0.5 km per minute. When even straight-line distance is unknown a
// flat 10 minute / 5 km leg is assumed.
const (
	fallbackKmPerMinute    = 0.5
	fallbackLegMinutes     = 10.0
	fallbackLegKm          = 5.0
	straightLineSpeedKmMin = 0.5
)

// RouteTotals aggregates a computed route, return leg included.
type RouteTotals struct {
	DistanceKm      float64
	DurationMinutes float64
	DrivingMinutes  float64

	// EstimatedLegs counts legs (return leg included) the provider could not
	// measure, where heuristic values were used instead.
	EstimatedLegs int
}

// DetailCalculator turns a planned visiting order into per-stop travel
// details: leg times and distances, cumulative progress, and arrival
// estimates.
type DetailCalculator struct {
	provider routing.Provider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDetailCalculator creates a detail calculator backed by the provider.
func NewDetailCalculator(provider routing.Provider, logger zerolog.Logger) *DetailCalculator {
	return &DetailCalculator{
		provider: provider,
		logger:   logger.With().Str("component", "detail_calculator").Logger(),
		now:      time.Now,
	}
}

// Compute walks the ordered groups from the depot, measuring each leg at its
// shifted departure (route departure plus accumulated travel and service
// time) so traffic-aware durations reflect when the vehicle actually drives
// the leg. A stop's service time is its order count times
// serviceTimePerOrder minutes.
//
// Leg lookups are fail-soft: when the provider cannot measure a leg, a
// heuristic estimate is used and the stop is flagged Estimated. The closing
// return leg to the depot is added to the totals but not emitted as a stop.
func (d *DetailCalculator) Compute(ctx context.Context, depot geo.Coordinate, ordered []LocationGroup, departAt time.Time, profile routing.Profile, considerTraffic bool, serviceTimePerOrder int) ([]OptimizedStop, RouteTotals, error) {
	stops := make([]OptimizedStop, 0, len(ordered))
	totals := RouteTotals{}

	cumulativeMinutes := 0.0
	cumulativeKm := 0.0
	prevCoord := &depot

	for i, group := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, RouteTotals{}, err
		}

		legDepart := departAt.Add(time.Duration(cumulativeMinutes * float64(time.Minute)))
		leg := d.measureLeg(ctx, prevCoord, group.Coordinate, legDepart, profile, considerTraffic)

		cumulativeMinutes += leg.DurationMinutes
		cumulativeKm += leg.DistanceKm
		arrival := departAt.Add(time.Duration(cumulativeMinutes * float64(time.Minute)))

		stops = append(stops, OptimizedStop{
			Order:                 i + 1,
			Group:                 group,
			TravelTimeMinutes:     leg.DurationMinutes,
			TravelDistanceKm:      leg.DistanceKm,
			CumulativeTimeMinutes: cumulativeMinutes,
			CumulativeDistanceKm:  cumulativeKm,
			EstimatedArrival:      arrival,
			Estimated:             leg.Estimated,
			LegGeometry:           leg.Geometry,
		})

		totals.DrivingMinutes += leg.DurationMinutes
		if leg.Estimated {
			totals.EstimatedLegs++
		}
		cumulativeMinutes += float64(group.TotalOrders * serviceTimePerOrder)

		if group.Coordinate != nil {
			prevCoord = group.Coordinate
		}
	}

	totals.DistanceKm = cumulativeKm

	if len(ordered) > 0 {
		legDepart := departAt.Add(time.Duration(cumulativeMinutes * float64(time.Minute)))
		returnLeg := d.measureLeg(ctx, prevCoord, &depot, legDepart, profile, considerTraffic)
		totals.DrivingMinutes += returnLeg.DurationMinutes
		totals.DistanceKm += returnLeg.DistanceKm
		cumulativeMinutes += returnLeg.DurationMinutes
		if returnLeg.Estimated {
			totals.EstimatedLegs++
		}
	}

	totals.DurationMinutes = cumulativeMinutes

	d.logger.Debug().
		Int("stops", len(stops)).
		Float64("distance_km", totals.DistanceKm).
		Float64("duration_min", totals.DurationMinutes).
		Msg("computed route details")

	return stops, totals, nil
}

type legInfo struct {
	DurationMinutes float64
	DistanceKm      float64
	Geometry        string
	Estimated       bool
}

func (d *DetailCalculator) measureLeg(ctx context.Context, from, to *geo.Coordinate, departAt time.Time, profile routing.Profile, considerTraffic bool) legInfo {
	if from == nil || to == nil {
		return legInfo{
			DurationMinutes: fallbackLegMinutes,
			DistanceKm:      fallbackLegKm,
			Estimated:       true,
		}
	}

	floored, _ := routing.FloorDeparture(departAt, d.now())
	info, err := d.provider.TravelInfo(ctx, routing.TravelRequest{
		Origin:          *from,
		Destination:     *to,
		Profile:         profile,
		DepartAt:        floored,
		ConsiderTraffic: considerTraffic,
	})
	if err != nil {
		d.logger.Warn().
			Err(err).
			Msg("leg lookup failed, using straight-line estimate")
		return estimateLeg(*from, *to)
	}

	return legInfo{
		DurationMinutes: info.DurationMinutes,
		DistanceKm:      info.DistanceKm,
		Geometry:        info.Geometry,
	}
}

// estimateLeg derives a leg from straight-line distance at assumed urban
// speed.
func estimateLeg(from, to geo.Coordinate) legInfo {
	straightKm := geo.DistanceMeters(from, to) / 1000.0
	minutes := straightKm / straightLineSpeedKmMin
	if minutes < 1 {
		minutes = 1
	}
	return legInfo{
		DurationMinutes: minutes,
		DistanceKm:      minutes * fallbackKmPerMinute,
		Estimated:       true,
	}
}
