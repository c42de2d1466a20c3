// Package resilience provides resilient HTTP client wrappers with circuit breakers,
// timeouts, and retry logic for calls to geocoding, routing, and advisor providers.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures the breaker guarding one provider.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and health reporting.
	Name string

	// MaxRequests caps probe requests while half-open. Defaults to 1.
	MaxRequests uint32

	// Interval is the cyclic period for clearing counts while closed.
	// Zero disables clearing.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	// Defaults to 60 seconds.
	Timeout time.Duration

	// ReadyToTrip decides when the breaker opens. Nil falls back to
	// DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is invoked on every state transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the configuration used for the
// geocoding, directions, and advisor clients.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker once at least 5 requests were made
// and half or more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && failureRatio >= 0.5
}

// NewCircuitBreaker builds a typed gobreaker instance from the config.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}
