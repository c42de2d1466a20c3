package optimizer

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/advisor"
)

// Planner decides the visiting order over consolidated stops. When an
// advisor is configured its proposal is preferred; any advisor failure or
// malformed proposal falls through to the deterministic heuristic
// (nearest-neighbor construction refined by 2-opt), so planning never fails.
type Planner struct {
	advisor advisor.Advisor
	logger  zerolog.Logger
}

// NewPlanner creates a planner. The advisor may be nil.
func NewPlanner(adv advisor.Advisor, logger zerolog.Logger) *Planner {
	return &Planner{
		advisor: adv,
		logger:  logger.With().Str("component", "planner").Logger(),
	}
}

// Plan is the planner's output: a visiting order over group indices plus
// provenance.
type Plan struct {
	// Order lists group indices (0-based into the input slice) in visiting
	// order.
	Order []int

	// Source is SourceAdvisor or SourceHeuristic.
	Source string

	// Reasoning and Insights carry the advisor's rationale when present.
	Reasoning string
	Insights  []string
}

// PlanConstraints carries the dispatch-run context forwarded to the advisor.
type PlanConstraints struct {
	Depot              string
	VehicleType        VehicleType
	ConsiderTraffic    bool
	WorkingHours       *TimeWindow
	ServiceTimeMinutes int
}

// Sequence plans the visiting order for groups using the travel matrix.
// Matrix node 0 is the depot and node i+1 corresponds to groups[i].
//
// After sequencing, delivery constraints are applied as a post-hoc stable
// reorder: stops with a time window move to the front ordered by window
// start, then stops are stably ordered by priority. The reorder trades
// travel optimality for constraint adherence.
func (p *Planner) Sequence(ctx context.Context, groups []LocationGroup, matrix *Matrix, cons PlanConstraints) Plan {
	if len(groups) == 0 {
		return Plan{Order: []int{}, Source: SourceHeuristic}
	}
	if len(groups) == 1 {
		plan := Plan{Order: []int{0}, Source: SourceHeuristic}
		if fromAdvisor := p.tryAdvisor(ctx, groups, cons); fromAdvisor != nil {
			plan = *fromAdvisor
		}
		return plan
	}

	if plan := p.tryAdvisor(ctx, groups, cons); plan != nil {
		plan.Order = p.applyConstraintOrdering(groups, plan.Order)
		return *plan
	}

	order := nearestNeighbor(matrix, len(groups))
	order = twoOpt(matrix, order)
	order = p.applyConstraintOrdering(groups, order)

	return Plan{Order: order, Source: SourceHeuristic}
}

// tryAdvisor asks the advisor for a proposal and returns nil when the
// advisor is absent, fails, or proposes a malformed order.
func (p *Planner) tryAdvisor(ctx context.Context, groups []LocationGroup, cons PlanConstraints) *Plan {
	if p.advisor == nil {
		return nil
	}

	scenario := buildScenario(groups, cons)
	proposal, err := p.advisor.ProposeSequence(ctx, scenario)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("advisor", p.advisor.Name()).
			Msg("advisor proposal unusable, falling back to heuristic sequencing")
		return nil
	}

	// The advisor client validates its own responses, but the planner accepts
	// any Advisor implementation. Never index groups with an unchecked order.
	if err := proposal.ValidateOrder(len(groups)); err != nil {
		p.logger.Warn().
			Err(err).
			Str("advisor", p.advisor.Name()).
			Ints("order", proposal.Order).
			Msg("advisor proposal unusable, falling back to heuristic sequencing")
		return nil
	}

	p.logger.Debug().
		Str("advisor", p.advisor.Name()).
		Ints("order", proposal.Order).
		Msg("using advisor-proposed sequence")

	return &Plan{
		Order:     proposal.Order,
		Source:    SourceAdvisor,
		Reasoning: proposal.Reasoning,
		Insights:  proposal.Insights,
	}
}

func buildScenario(groups []LocationGroup, cons PlanConstraints) advisor.Scenario {
	locations := make([]advisor.Location, len(groups))
	for i, g := range groups {
		loc := advisor.Location{
			Index:       i,
			Address:     g.Address,
			TotalOrders: g.TotalOrders,
			Customers:   g.Customers,
		}
		if g.Coordinate != nil {
			lat, lon := g.Coordinate.Lat, g.Coordinate.Lon
			loc.Lat, loc.Lon = &lat, &lon
		}
		for _, a := range g.Addresses {
			if a.Priority != "" && loc.Priority == "" {
				loc.Priority = string(a.Priority)
			}
			if a.TimeWindow != nil && loc.WindowStart == "" {
				loc.WindowStart = a.TimeWindow.Start
				loc.WindowEnd = a.TimeWindow.End
			}
		}
		locations[i] = loc
	}

	constraints := advisor.Constraints{
		VehicleType:        string(cons.VehicleType),
		ConsiderTraffic:    cons.ConsiderTraffic,
		ServiceTimeMinutes: cons.ServiceTimeMinutes,
	}
	if cons.WorkingHours != nil {
		constraints.WorkingHoursStart = cons.WorkingHours.Start
		constraints.WorkingHoursEnd = cons.WorkingHours.End
	}

	return advisor.Scenario{
		Depot:       cons.Depot,
		Locations:   locations,
		Constraints: constraints,
		Goals: []string{
			"minimize total travel time",
			"respect delivery time windows",
			"deliver high priority orders early",
		},
	}
}

// nearestNeighbor builds an initial tour over matrix durations: start at the
// depot (node 0) and repeatedly move to the cheapest unvisited stop.
// Returns 0-based group indices.
func nearestNeighbor(m *Matrix, n int) []int {
	visited := make([]bool, n+1)
	order := make([]int, 0, n)
	current := 0

	for len(order) < n {
		best := -1
		bestCost := 0.0
		for node := 1; node <= n; node++ {
			if visited[node] {
				continue
			}
			cost := m.Duration(current, node)
			if best == -1 || cost < bestCost {
				best = node
				bestCost = cost
			}
		}
		visited[best] = true
		order = append(order, best-1)
		current = best
	}

	return order
}

// twoOpt refines the tour by segment reversal until no improving move
// remains. The tour is closed (depot to depot) and the matrix is directed,
// so candidate cost is evaluated over the full tour rather than by edge
// delta.
func twoOpt(m *Matrix, order []int) []int {
	const epsilon = 1e-9

	best := append([]int(nil), order...)
	bestCost := tourDuration(m, best)

	improved := true
	for improved {
		improved = false
		for i := 0; i < len(best)-1; i++ {
			for j := i + 1; j < len(best); j++ {
				candidate := append([]int(nil), best...)
				reverse(candidate[i : j+1])
				cost := tourDuration(m, candidate)
				if cost < bestCost-epsilon {
					best = candidate
					bestCost = cost
					improved = true
				}
			}
		}
	}

	return best
}

// tourDuration sums directed durations over the closed tour
// depot -> order[0] -> ... -> order[n-1] -> depot.
func tourDuration(m *Matrix, order []int) float64 {
	total := 0.0
	current := 0
	for _, g := range order {
		total += m.Duration(current, g+1)
		current = g + 1
	}
	total += m.Duration(current, 0)
	return total
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// applyConstraintOrdering reorders the planned sequence for delivery
// constraints. Two stable passes: first by priority weight, then windowed
// stops move to the front ordered by window start. Window adherence wins
// over both priority and travel optimality.
func (p *Planner) applyConstraintOrdering(groups []LocationGroup, order []int) []int {
	hasWindow := false
	hasPriority := false
	for _, g := range groups {
		if g.earliestWindow() >= 0 {
			hasWindow = true
		}
		if g.topPriority() < (Priority("").Weight()) {
			hasPriority = true
		}
	}
	if !hasWindow && !hasPriority {
		return order
	}

	out := append([]int(nil), order...)

	if hasPriority {
		sort.SliceStable(out, func(i, j int) bool {
			return groups[out[i]].topPriority() < groups[out[j]].topPriority()
		})
	}

	if hasWindow {
		sort.SliceStable(out, func(i, j int) bool {
			wi, wj := groups[out[i]].earliestWindow(), groups[out[j]].earliestWindow()
			switch {
			case wi >= 0 && wj >= 0:
				return wi < wj
			case wi >= 0:
				return true
			default:
				return false
			}
		})
	}

	p.logger.Debug().
		Ints("order", out).
		Bool("windows", hasWindow).
		Bool("priorities", hasPriority).
		Msg("applied constraint ordering to planned sequence")

	return out
}
