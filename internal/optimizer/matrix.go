package optimizer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/geo"
	"github.com/partsroute/partsroute/internal/routing"
)

// Penalty values assigned to matrix cells whose travel lookup failed or whose
// endpoints lack coordinates. Large enough that the planner steers around
// them, finite so the route still visits every stop.
const (
	PenaltyDurationMinutes = 9999.0
	PenaltyDistanceKm      = 9999.0
)

// Cell is one directed travel measurement in the matrix.
type Cell struct {
	DurationMinutes float64
	DistanceKm      float64

	// Estimated is true for penalty cells: the value is a placeholder, not
	// a provider measurement.
	Estimated bool
}

// Matrix is a directed travel matrix over depot plus stops. Index 0 is the
// depot; index i (1..n) is the i-th location group. Directed: cell (i,j) and
// cell (j,i) are looked up independently.
type Matrix struct {
	cells [][]Cell
}

// Size returns the node count (depot included).
func (m *Matrix) Size() int {
	return len(m.cells)
}

// At returns the directed cell from node i to node j.
func (m *Matrix) At(i, j int) Cell {
	return m.cells[i][j]
}

// Duration returns the directed travel duration in minutes from i to j.
func (m *Matrix) Duration(i, j int) float64 {
	return m.cells[i][j].DurationMinutes
}

// MatrixBuilder computes directed travel matrices through a routing provider.
type MatrixBuilder struct {
	provider routing.Provider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewMatrixBuilder creates a matrix builder backed by the given provider.
func NewMatrixBuilder(provider routing.Provider, logger zerolog.Logger) *MatrixBuilder {
	return &MatrixBuilder{
		provider: provider,
		logger:   logger.With().Str("component", "matrix_builder").Logger(),
		now:      time.Now,
	}
}

// Build computes the directed travel matrix for the depot and the given
// groups at the requested departure. Departures too close to now are floored
// to the provider's minimum lead and the adjustment is logged.
//
// Lookup failures and unresolved endpoints are fail-soft: the cell gets
// penalty values and the matrix stays complete. Only context cancellation
// aborts the build.
func (b *MatrixBuilder) Build(ctx context.Context, depot geo.Coordinate, groups []LocationGroup, departAt time.Time, profile routing.Profile, considerTraffic bool) (*Matrix, error) {
	floored, adjusted := routing.FloorDeparture(departAt, b.now())
	if adjusted {
		b.logger.Debug().
			Time("requested", departAt).
			Time("effective", floored).
			Msg("departure floored to minimum lead for matrix build")
	}

	n := len(groups) + 1
	cells := make([][]Cell, n)
	for i := range cells {
		cells[i] = make([]Cell, n)
	}

	coord := func(i int) *geo.Coordinate {
		if i == 0 {
			return &depot
		}
		return groups[i-1].Coordinate
	}

	penalties := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			from, to := coord(i), coord(j)
			if from == nil || to == nil {
				cells[i][j] = penaltyCell()
				penalties++
				continue
			}

			info, err := b.provider.TravelInfo(ctx, routing.TravelRequest{
				Origin:          *from,
				Destination:     *to,
				Profile:         profile,
				DepartAt:        floored,
				ConsiderTraffic: considerTraffic,
			})
			if err != nil {
				b.logger.Warn().
					Err(err).
					Int("from", i).
					Int("to", j).
					Msg("travel lookup failed, assigning penalty cell")
				cells[i][j] = penaltyCell()
				penalties++
				continue
			}

			cells[i][j] = Cell{
				DurationMinutes: info.DurationMinutes,
				DistanceKm:      info.DistanceKm,
			}
		}
	}

	b.logger.Debug().
		Int("nodes", n).
		Int("penalty_cells", penalties).
		Msg("built travel matrix")

	return &Matrix{cells: cells}, nil
}

func penaltyCell() Cell {
	return Cell{
		DurationMinutes: PenaltyDurationMinutes,
		DistanceKm:      PenaltyDistanceKm,
		Estimated:       true,
	}
}
