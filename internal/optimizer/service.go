package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/advisor"
	"github.com/partsroute/partsroute/internal/geo"
	"github.com/partsroute/partsroute/internal/routing"
	"github.com/partsroute/partsroute/pkg/polyline"
)

// LiveFailureWarning is attached when live optimization failed and the local
// estimate was used instead.
const LiveFailureWarning = "live route optimization failed, the route below is a local estimate"

// Defaults for optional service configuration.
const (
	DefaultMaxStopsPerRoute   = 20
	DefaultServiceTimePerStop = 5
)

// ServiceConfig wires the optimization engine's collaborators. Geocoder and
// Routing are optional: without both, every request is answered by the local
// estimation engine.
type ServiceConfig struct {
	// Geocoder resolves delivery addresses (optional).
	Geocoder geo.Geocoder

	// Routing measures travel legs (optional).
	Routing routing.Provider

	// Advisor proposes visiting sequences (optional).
	Advisor advisor.Advisor

	// FuelPricePerLiter defaults to DefaultFuelPricePerLiter.
	FuelPricePerLiter float64

	// VehicleProfiles defaults to the built-ins.
	VehicleProfiles map[VehicleType]VehicleProfile

	// MaxStopsPerRoute defaults to DefaultMaxStopsPerRoute. Per-request
	// options may only lower it.
	MaxStopsPerRoute int

	// ServiceTimePerStop is the default handling time per order in minutes.
	ServiceTimePerStop int

	// FallbackSeed fixes the local estimator's jitter, for tests.
	FallbackSeed uint64

	Logger zerolog.Logger
}

// Service is the route optimization engine's entry point. It orchestrates
// consolidation, matrix building, sequencing, detail calculation, and
// metrics, and guarantees a usable route for any valid input: every failure
// past validation degrades to the local estimation engine instead of
// surfacing.
type Service struct {
	consolidator *Consolidator
	matrix       *MatrixBuilder
	planner      *Planner
	details      *DetailCalculator
	metrics      *MetricsEstimator
	fallback     *FallbackOptimizer

	profiles    map[VehicleType]VehicleProfile
	maxStops    int
	serviceTime int
	liveCapable bool

	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates the optimization engine.
func NewService(cfg ServiceConfig) *Service {
	maxStops := cfg.MaxStopsPerRoute
	if maxStops <= 0 {
		maxStops = DefaultMaxStopsPerRoute
	}
	serviceTime := cfg.ServiceTimePerStop
	if serviceTime <= 0 {
		serviceTime = DefaultServiceTimePerStop
	}
	profiles := cfg.VehicleProfiles
	if profiles == nil {
		profiles = DefaultVehicleProfiles()
	}

	logger := cfg.Logger.With().Str("component", "optimizer").Logger()

	s := &Service{
		consolidator: NewConsolidator(cfg.Geocoder, logger),
		planner:      NewPlanner(cfg.Advisor, logger),
		metrics:      NewMetricsEstimator(cfg.FuelPricePerLiter, profiles),
		fallback: NewFallbackOptimizer(FallbackConfig{
			FuelPricePerLiter: cfg.FuelPricePerLiter,
			Profiles:          profiles,
			Seed:              cfg.FallbackSeed,
			Logger:            logger,
		}),
		profiles:    profiles,
		maxStops:    maxStops,
		serviceTime: serviceTime,
		liveCapable: cfg.Geocoder != nil && cfg.Routing != nil,
		logger:      logger,
		now:         time.Now,
	}

	if cfg.Routing != nil {
		s.matrix = NewMatrixBuilder(cfg.Routing, logger)
		s.details = NewDetailCalculator(cfg.Routing, logger)
	}

	if !s.liveCapable {
		logger.Warn().Msg("geocoding or routing not configured, all routes will be local estimates")
	}

	return s
}

// OptimizeRoute produces an optimized delivery route from the depot over
// the given addresses. The only error class returned is *ValidationError;
// any downstream failure is absorbed by the local estimation engine.
func (s *Service) OptimizeRoute(ctx context.Context, depot string, addresses []Address, opts Options) (*Result, error) {
	if err := s.validate(depot, addresses, opts); err != nil {
		return nil, err
	}

	departAt := s.effectiveDeparture(opts)

	if !s.liveCapable {
		return s.fallback.Optimize(depot, addresses, opts, departAt), nil
	}

	result, err := s.optimizeLive(ctx, depot, addresses, opts, departAt)
	if err != nil {
		return s.degradedResult(depot, addresses, opts, departAt, err), nil
	}

	return result, nil
}

func (s *Service) degradedResult(depot string, addresses []Address, opts Options, departAt time.Time, cause error) *Result {
	s.logger.Error().
		Err(cause).
		Str("depot", depot).
		Int("addresses", len(addresses)).
		Msg("live optimization failed, degrading to local estimate")

	result := s.fallback.Optimize(depot, addresses, opts, departAt)
	result.Warnings = append([]string{LiveFailureWarning}, result.Warnings...)
	return result
}

func (s *Service) validate(depot string, addresses []Address, opts Options) *ValidationError {
	if depot == "" {
		return &ValidationError{Message: "a depot address is required"}
	}
	if len(addresses) == 0 {
		return &ValidationError{Message: "at least one delivery address is required"}
	}

	maxStops := s.maxStops
	if opts.MaxStopsPerRoute > 0 && opts.MaxStopsPerRoute < maxStops {
		maxStops = opts.MaxStopsPerRoute
	}
	if len(addresses) > maxStops {
		return &ValidationError{Message: fmt.Sprintf(
			"number of delivery addresses exceeds the maximum of %d per route", maxStops)}
	}

	for _, a := range addresses {
		if a.Text == "" {
			return &ValidationError{Message: "every delivery address needs a non-empty address text"}
		}
		if a.TimeWindow != nil {
			if _, err := a.TimeWindow.StartMinutes(); err != nil {
				return &ValidationError{Message: fmt.Sprintf(
					"invalid time window for address %q: %v", a.Text, err)}
			}
		}
	}

	return nil
}

// effectiveDeparture resolves the requested departure against the minimum
// lead: absent or too-near departures are floored to now plus the lead.
func (s *Service) effectiveDeparture(opts Options) time.Time {
	now := s.now()
	if opts.DepartureTime == nil {
		return now.Add(routing.MinDepartureLead)
	}
	floored, adjusted := routing.FloorDeparture(*opts.DepartureTime, now)
	if adjusted {
		s.logger.Debug().
			Time("requested", *opts.DepartureTime).
			Time("effective", floored).
			Msg("departure adjusted to minimum lead")
	}
	return floored
}

func (s *Service) optimizeLive(ctx context.Context, depot string, addresses []Address, opts Options, departAt time.Time) (*Result, error) {
	vehicle := opts.VehicleType
	if vehicle == "" {
		vehicle = VehicleVan
	}
	profile, ok := s.profiles[vehicle]
	if !ok {
		profile = s.profiles[VehicleVan]
	}
	serviceTime := opts.ServiceTimePerStop
	if serviceTime <= 0 {
		serviceTime = s.serviceTime
	}

	depotCoord, err := s.consolidator.resolve(ctx, Address{Text: depot})
	if err != nil {
		return nil, fmt.Errorf("resolving depot %q: %w", depot, err)
	}

	groups, err := s.consolidator.Consolidate(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("consolidating addresses: %w", err)
	}

	matrix, err := s.matrix.Build(ctx, *depotCoord, groups, departAt, profile.RoutingProfile, opts.ConsiderTraffic)
	if err != nil {
		return nil, fmt.Errorf("building travel matrix: %w", err)
	}

	plan := s.planner.Sequence(ctx, groups, matrix, PlanConstraints{
		Depot:              depot,
		VehicleType:        vehicle,
		ConsiderTraffic:    opts.ConsiderTraffic,
		WorkingHours:       opts.WorkingHours,
		ServiceTimeMinutes: serviceTime,
	})

	ordered := make([]LocationGroup, len(plan.Order))
	for i, gi := range plan.Order {
		ordered[i] = groups[gi]
	}

	stops, totals, err := s.details.Compute(ctx, *depotCoord, ordered, departAt, profile.RoutingProfile, opts.ConsiderTraffic, serviceTime)
	if err != nil {
		return nil, fmt.Errorf("computing route details: %w", err)
	}

	result := &Result{
		Stops:                stops,
		TotalDistanceKm:      totals.DistanceKm,
		TotalDurationMinutes: totals.DurationMinutes,
		DrivingTimeMinutes:   totals.DrivingMinutes,
		FuelCostEstimate:     s.metrics.FuelCost(totals.DistanceKm, vehicle),
		RouteEfficiency:      s.metrics.Efficiency(totals.DistanceKm, len(stops)),
		Warnings:             s.metrics.Warnings(totals, groups),
		DepartureTime:        departAt,
		BoundingBox:          routeBound(*depotCoord, stops),
		AdvisorReasoning:     plan.Reasoning,
		AdvisorInsights:      plan.Insights,
		Source:               plan.Source,
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}

	s.logger.Info().
		Str("depot", depot).
		Int("stops", len(stops)).
		Str("source", plan.Source).
		Float64("distance_km", totals.DistanceKm).
		Float64("duration_min", totals.DurationMinutes).
		Msg("optimized delivery route")

	return result, nil
}

// routeBound computes the map viewport covering the depot, every resolved
// stop, and the decoded leg geometries.
func routeBound(depot geo.Coordinate, stops []OptimizedStop) *geo.Bound {
	coords := []geo.Coordinate{depot}
	for _, s := range stops {
		if s.Group.Coordinate != nil {
			coords = append(coords, *s.Group.Coordinate)
		}
		if s.LegGeometry != "" {
			for _, p := range polyline.Decode(s.LegGeometry) {
				coords = append(coords, geo.Coordinate{Lat: p.Lat, Lon: p.Lon})
			}
		}
	}
	return geo.BoundOf(coords)
}
