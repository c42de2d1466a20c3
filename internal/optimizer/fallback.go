package optimizer

import (
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FallbackWarning is attached to every locally estimated route.
const FallbackWarning = "route estimated locally without live routing data, times and distances are approximate"

// areaScores ranks known localities roughly by drive-out order from a
// central depot. First match wins; unmatched addresses sort last.
var areaScores = []struct {
	area  string
	score float64
}{
	{"amsterdam", 10},
	{"haarlem", 20},
	{"utrecht", 30},
	{"den haag", 40},
	{"rotterdam", 50},
	{"eindhoven", 60},
}

const unknownAreaScore = 1000.0

// postcodePattern matches a Dutch 4-digit postcode prefix.
var postcodePattern = regexp.MustCompile(`\b([1-9][0-9]{3})\b`)

// Priority bonuses pull prioritized addresses toward the front of the
// fallback sequence.
const (
	highPriorityBonus   = -100.0
	mediumPriorityBonus = -50.0
)

// FallbackConfig configures the local estimation engine.
type FallbackConfig struct {
	// FuelPricePerLiter defaults to DefaultFuelPricePerLiter.
	FuelPricePerLiter float64

	// Profiles defaults to the built-in vehicle profiles.
	Profiles map[VehicleType]VehicleProfile

	// Seed fixes the jitter source; zero seeds from the clock.
	Seed uint64

	Logger zerolog.Logger
}

// FallbackOptimizer produces a complete route estimate without any network
// access: addresses are sequenced by locality and postcode, and leg values
// come from a lookup table keyed by route density and vehicle type. It is
// the engine's answer when no routing provider is configured or every live
// stage has failed.
type FallbackOptimizer struct {
	metrics *MetricsEstimator
	rng     *rand.Rand
	logger  zerolog.Logger
}

// NewFallbackOptimizer creates a local estimation engine.
func NewFallbackOptimizer(cfg FallbackConfig) *FallbackOptimizer {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &FallbackOptimizer{
		metrics: NewMetricsEstimator(cfg.FuelPricePerLiter, cfg.Profiles),
		rng:     rand.New(rand.NewPCG(seed, seed)),
		logger:  cfg.Logger.With().Str("component", "fallback_optimizer").Logger(),
	}
}

// Optimize produces a locally estimated route. Never fails and performs no
// I/O. Addresses with identical normalized text are merged into one stop;
// coordinates stay nil throughout.
func (f *FallbackOptimizer) Optimize(depot string, addresses []Address, opts Options, departAt time.Time) *Result {
	groups := f.groupByText(addresses)
	f.sortByArea(groups)

	vehicle := opts.VehicleType
	if vehicle == "" {
		vehicle = VehicleVan
	}
	serviceTime := opts.ServiceTimePerStop
	if serviceTime <= 0 {
		serviceTime = 5
	}

	baseKm, kmPerMin := f.legProfile(len(groups), vehicle)

	stops := make([]OptimizedStop, 0, len(groups))
	cumulativeMinutes := 0.0
	cumulativeKm := 0.0
	drivingMinutes := 0.0

	for i, g := range groups {
		legKm := f.jitter(baseKm)
		legMinutes := legKm / kmPerMin

		cumulativeKm += legKm
		cumulativeMinutes += legMinutes
		drivingMinutes += legMinutes

		stops = append(stops, OptimizedStop{
			Order:                 i + 1,
			Group:                 g,
			TravelTimeMinutes:     legMinutes,
			TravelDistanceKm:      legKm,
			CumulativeTimeMinutes: cumulativeMinutes,
			CumulativeDistanceKm:  cumulativeKm,
			EstimatedArrival:      departAt.Add(time.Duration(cumulativeMinutes * float64(time.Minute))),
			Estimated:             true,
		})

		cumulativeMinutes += float64(g.TotalOrders * serviceTime)
	}

	totalKm := cumulativeKm
	if len(groups) > 0 {
		returnKm := f.jitter(baseKm)
		returnMinutes := returnKm / kmPerMin
		totalKm += returnKm
		drivingMinutes += returnMinutes
		cumulativeMinutes += returnMinutes
	}

	totals := RouteTotals{
		DistanceKm:      totalKm,
		DurationMinutes: cumulativeMinutes,
		DrivingMinutes:  drivingMinutes,
	}

	warnings := append([]string{FallbackWarning}, f.metrics.Warnings(totals, groups)...)

	f.logger.Info().
		Str("depot", depot).
		Int("stops", len(stops)).
		Float64("distance_km", totalKm).
		Msg("produced locally estimated route")

	return &Result{
		Stops:                stops,
		TotalDistanceKm:      totalKm,
		TotalDurationMinutes: totals.DurationMinutes,
		DrivingTimeMinutes:   totals.DrivingMinutes,
		FuelCostEstimate:     f.metrics.FuelCost(totalKm, vehicle),
		RouteEfficiency:      f.metrics.Efficiency(totalKm, len(stops)),
		Warnings:             warnings,
		DepartureTime:        departAt,
		Source:               SourceLocalEstimate,
	}
}

// groupByText merges addresses whose normalized text is identical. Without
// coordinates this is the only safe consolidation.
func (f *FallbackOptimizer) groupByText(addresses []Address) []LocationGroup {
	index := make(map[string]int)
	groups := make([]LocationGroup, 0, len(addresses))

	for _, a := range addresses {
		key := strings.ToLower(strings.Join(strings.Fields(a.Text), " "))
		if i, ok := index[key]; ok {
			appendToGroup(&groups[i], a)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, newGroup(a, nil))
	}

	return groups
}

// sortByArea orders groups by locality score, postcode, and priority bonus.
// The sort is stable so equal scores keep submission order.
func (f *FallbackOptimizer) sortByArea(groups []LocationGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return f.areaScore(groups[i]) < f.areaScore(groups[j])
	})
}

func (f *FallbackOptimizer) areaScore(g LocationGroup) float64 {
	lower := strings.ToLower(g.Address)

	score := unknownAreaScore
	for _, entry := range areaScores {
		if strings.Contains(lower, entry.area) {
			score = entry.score
			break
		}
	}

	// A postcode refines ordering inside and across localities: nearby
	// postcodes tend to be numerically close.
	if m := postcodePattern.FindStringSubmatch(g.Address); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			score += float64(code) / 1000.0
		}
	}

	switch g.topPriority() {
	case PriorityHigh.Weight():
		score += highPriorityBonus
	case PriorityMedium.Weight():
		score += mediumPriorityBonus
	}

	return score
}

// legProfile returns the assumed leg distance and speed for a route of the
// given density. Larger runs imply denser stop spacing.
func (f *FallbackOptimizer) legProfile(stopCount int, vehicle VehicleType) (baseKm, kmPerMin float64) {
	switch {
	case stopCount <= 5:
		baseKm = 7.0
	case stopCount <= 10:
		baseKm = 5.5
	default:
		baseKm = 4.5
	}

	switch vehicle {
	case VehicleMotorcycle:
		kmPerMin = 0.55
	case VehicleCar:
		kmPerMin = 0.5
	case VehicleTruck:
		kmPerMin = 0.38
	default:
		kmPerMin = 0.45
	}

	return baseKm, kmPerMin
}

// jitter spreads a base value by up to plus or minus twenty percent so
// estimated legs do not look implausibly uniform.
func (f *FallbackOptimizer) jitter(base float64) float64 {
	return base * (0.8 + 0.4*f.rng.Float64())
}
