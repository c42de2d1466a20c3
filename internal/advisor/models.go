// Package advisor provides the optimization-advisor boundary: an external
// capability that proposes a visiting sequence for a set of delivery stops.
// The advisor is optional and advisory; callers always keep a deterministic
// fallback.
package advisor

import (
	"context"
	"errors"
)

// Sentinel errors for advisor operations.
var (
	// ErrAdvisorUnavailable indicates the advisor is down, unreachable, or not configured.
	ErrAdvisorUnavailable = errors.New("optimization advisor unavailable")
	// ErrMalformedProposal indicates the advisor response failed to parse as the expected structure.
	ErrMalformedProposal = errors.New("malformed advisor proposal")
)

// Advisor defines the interface for optimization advisors.
type Advisor interface {
	// ProposeSequence asks the advisor for a visiting order over the scenario's
	// locations. The returned order refers to locations by their Index field.
	ProposeSequence(ctx context.Context, scenario Scenario) (*Proposal, error)
	// Name returns the advisor identifier for logging and metrics.
	Name() string
}

// Scenario is the structured route scenario submitted to the advisor.
type Scenario struct {
	// Depot is the route's fixed start and end address.
	Depot string `json:"depot"`

	// Locations are the consolidated stops to sequence.
	Locations []Location `json:"locations"`

	// Constraints are the operational constraints for this dispatch run.
	Constraints Constraints `json:"constraints"`

	// Goals are free-text optimization goals, in priority order.
	Goals []string `json:"goals"`
}

// Location is one stop in the scenario.
type Location struct {
	// Index identifies the location; proposals reference this value.
	Index int `json:"index"`

	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`

	// TotalOrders is the number of delivery orders at this stop.
	TotalOrders int `json:"totalOrders"`

	// Customers are the deduplicated customer names at this stop.
	Customers []string `json:"customers,omitempty"`

	Priority    string `json:"priority,omitempty"`
	WindowStart string `json:"windowStart,omitempty"`
	WindowEnd   string `json:"windowEnd,omitempty"`
}

// Constraints describes the operational constraints of the dispatch run.
type Constraints struct {
	VehicleType        string `json:"vehicleType"`
	ConsiderTraffic    bool   `json:"considerTraffic"`
	WorkingHoursStart  string `json:"workingHoursStart,omitempty"`
	WorkingHoursEnd    string `json:"workingHoursEnd,omitempty"`
	ServiceTimeMinutes int    `json:"serviceTimeMinutes"`
}

// Proposal is the advisor's answer: an ordering plus free-text rationale.
type Proposal struct {
	// Order lists location indices in proposed visiting order.
	Order []int `json:"order"`

	// Reasoning explains the proposed sequence.
	Reasoning string `json:"reasoning"`

	// Insights are additional operational observations.
	Insights []string `json:"insights"`
}

// ValidateOrder checks that a proposal's order is a permutation of the
// scenario's location indices: every index in range and visited exactly once.
// Returns ErrMalformedProposal (wrapped) when it is not.
func (p *Proposal) ValidateOrder(locationCount int) error {
	if len(p.Order) != locationCount {
		return errors.Join(ErrMalformedProposal,
			errors.New("proposal order length does not match location count"))
	}

	seen := make(map[int]bool, locationCount)
	for _, idx := range p.Order {
		if idx < 0 || idx >= locationCount {
			return errors.Join(ErrMalformedProposal,
				errors.New("proposal references an out-of-range location index"))
		}
		if seen[idx] {
			return errors.Join(ErrMalformedProposal,
				errors.New("proposal visits a location more than once"))
		}
		seen[idx] = true
	}

	return nil
}
