// Package routing provides travel time and distance lookups for delivery legs.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/partsroute/partsroute/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrDepartureInPast indicates the requested departure timestamp is not far enough in the future.
	ErrDepartureInPast = errors.New("departure timestamp must be in the future")
)

// MinDepartureLead is the minimum lead time a departure timestamp must have.
// Providers reject departures closer than this; callers must advance and retry.
const MinDepartureLead = 5 * time.Minute

// Provider defines the interface for routing providers.
type Provider interface {
	// TravelInfo retrieves travel duration and distance for a single leg.
	TravelInfo(ctx context.Context, req TravelRequest) (*TravelInfo, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Profile represents a routing profile (vehicle class on the road network).
type Profile string

const (
	// ProfileCar is the regular driving profile for cars and motorcycles.
	ProfileCar Profile = "driving-car"
	// ProfileHGV is the heavy goods vehicle profile for vans and trucks.
	ProfileHGV Profile = "driving-hgv"
)

// TravelRequest is the request for a single-leg travel lookup.
type TravelRequest struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	Profile     Profile
	// DepartAt is the departure timestamp. Must be at least MinDepartureLead
	// in the future; providers reject earlier values.
	DepartAt time.Time
	// ConsiderTraffic requests traffic-aware durations when the provider supports it.
	ConsiderTraffic bool
}

// TravelInfo is the travel cost of a single leg.
type TravelInfo struct {
	DurationMinutes float64
	DistanceKm      float64
	// Geometry is the encoded polyline of the leg, when the provider returns one.
	Geometry  string
	Provider  string
	FetchedAt time.Time
}

// FloorDeparture returns departAt advanced to now+MinDepartureLead when it is
// not strictly far enough in the future. The second return reports whether an
// adjustment was made.
func FloorDeparture(departAt, now time.Time) (time.Time, bool) {
	floor := now.Add(MinDepartureLead)
	if departAt.Before(floor) {
		return floor, true
	}
	return departAt, false
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
