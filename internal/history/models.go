// Package history persists optimized route plans so dispatchers can revisit
// and audit past runs.
package history

import (
	"errors"
	"time"

	"github.com/partsroute/partsroute/internal/optimizer"
)

// ErrPlanNotFound indicates the requested route plan does not exist.
var ErrPlanNotFound = errors.New("route plan not found")

// RoutePlan is one stored optimization run.
type RoutePlan struct {
	// ID is the plan identifier (UUID).
	ID string `json:"id"`

	// Depot is the depot address the run started from.
	Depot string `json:"depot"`

	// Addresses are the delivery addresses as submitted.
	Addresses []optimizer.Address `json:"addresses"`

	// Options are the request options as submitted.
	Options optimizer.Options `json:"options"`

	// Result is the optimized route.
	Result *optimizer.Result `json:"result"`

	// Source mirrors Result.Source for filtering without unpacking the result.
	Source string `json:"source"`

	CreatedAt time.Time `json:"createdAt"`
}
