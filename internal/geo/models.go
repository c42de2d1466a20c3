// Package geo provides geographic primitives and the geocoding boundary.
package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Sentinel errors for geocoding operations.
var (
	// ErrAddressNotFound indicates the geocoder returned no match for the address.
	ErrAddressNotFound = errors.New("address not found")
	// ErrProviderUnavailable indicates the geocoding provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Geocoder resolves free-text addresses to coordinates.
type Geocoder interface {
	// Resolve returns the best-match coordinate for the given address text.
	// Returns ErrAddressNotFound (possibly wrapped) when no match exists.
	Resolve(ctx context.Context, address string) (Coordinate, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point converts the coordinate to an orb point (lon/lat order).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Valid reports whether the coordinate is within valid lat/lon ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DistanceMeters returns the great-circle distance between two coordinates.
func DistanceMeters(a, b Coordinate) float64 {
	return orbgeo.Distance(a.Point(), b.Point())
}

// Bound represents a geographic bounding box.
type Bound struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// BoundOf computes the bounding box of the given coordinates.
// Returns nil for an empty input.
func BoundOf(coords []Coordinate) *Bound {
	if len(coords) == 0 {
		return nil
	}

	mb := orb.MultiPoint{}
	for _, c := range coords {
		mb = append(mb, c.Point())
	}
	b := mb.Bound()

	return &Bound{
		MinLat: b.Min[1],
		MinLon: b.Min[0],
		MaxLat: b.Max[1],
		MaxLon: b.Max[0],
	}
}

// Error provides detailed error information from a geocoding provider.
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

// ValidateCoordinate checks if a coordinate is within valid ranges.
func ValidateCoordinate(c Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lon)
	}
	return nil
}
