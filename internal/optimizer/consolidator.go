package optimizer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/geo"
)

// ProximityThresholdMeters is the consolidation radius: addresses whose
// resolved coordinates fall within this distance of a group's anchor are
// merged into that group.
const ProximityThresholdMeters = 100.0

// Consolidator resolves delivery addresses to coordinates and merges
// near-identical locations into single stops.
type Consolidator struct {
	geocoder geo.Geocoder
	logger   zerolog.Logger
}

// NewConsolidator creates a consolidator. The geocoder may be nil, in which
// case every address becomes an unresolved singleton group.
func NewConsolidator(geocoder geo.Geocoder, logger zerolog.Logger) *Consolidator {
	return &Consolidator{
		geocoder: geocoder,
		logger:   logger.With().Str("component", "consolidator").Logger(),
	}
}

// Consolidate resolves each address and groups addresses by proximity using
// a single greedy pass: each resolved address joins the first existing group
// whose anchor coordinate lies within ProximityThresholdMeters, otherwise it
// anchors a new group. Grouping is therefore anchor-based, not transitive:
// two addresses 150 m apart stay separate even if a third lies between them.
//
// Geocoding failures are fail-soft. An unresolvable address becomes its own
// group with a nil coordinate and the route still includes it; only context
// cancellation aborts the pass.
func (c *Consolidator) Consolidate(ctx context.Context, addresses []Address) ([]LocationGroup, error) {
	groups := make([]LocationGroup, 0, len(addresses))

	for _, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		coord, err := c.resolve(ctx, addr)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.logger.Warn().
				Err(err).
				Str("address", addr.Text).
				Msg("geocoding failed, keeping address as unresolved stop")
			coord = nil
		}

		if coord != nil {
			if i := c.matchGroup(groups, *coord); i >= 0 {
				appendToGroup(&groups[i], addr)
				continue
			}
		}

		groups = append(groups, newGroup(addr, coord))
	}

	c.logger.Debug().
		Int("addresses", len(addresses)).
		Int("groups", len(groups)).
		Msg("consolidated delivery addresses")

	return groups, nil
}

func (c *Consolidator) resolve(ctx context.Context, addr Address) (*geo.Coordinate, error) {
	if c.geocoder == nil {
		return nil, geo.ErrProviderUnavailable
	}
	coord, err := c.geocoder.Resolve(ctx, addr.Text)
	if err != nil {
		return nil, err
	}
	return &coord, nil
}

// matchGroup returns the index of the first group whose anchor is within the
// proximity threshold of coord, or -1.
func (c *Consolidator) matchGroup(groups []LocationGroup, coord geo.Coordinate) int {
	for i := range groups {
		if groups[i].Coordinate == nil {
			continue
		}
		if geo.DistanceMeters(*groups[i].Coordinate, coord) <= ProximityThresholdMeters {
			return i
		}
	}
	return -1
}

func newGroup(addr Address, coord *geo.Coordinate) LocationGroup {
	return LocationGroup{
		ID:          uuid.NewString(),
		Address:     addr.Text,
		Coordinate:  coord,
		Addresses:   []Address{addr},
		TotalOrders: 1,
		Customers:   []string{addr.CustomerName},
	}
}

func appendToGroup(g *LocationGroup, addr Address) {
	g.Addresses = append(g.Addresses, addr)
	g.TotalOrders++
	for _, c := range g.Customers {
		if c == addr.CustomerName {
			return
		}
	}
	g.Customers = append(g.Customers, addr.CustomerName)
}
