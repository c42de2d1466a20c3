// Package openrouteservice provides a geocoding client for the OpenRouteService search API.
package openrouteservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/geo"
	"github.com/partsroute/partsroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "openrouteservice-geocode"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultCountry restricts geocoding results to a single country.
	DefaultCountry = "NL"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// Country restricts results to an ISO country code (optional, defaults to NL).
	Country string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService geocoding client.
type Client struct {
	apiKey     string
	baseURL    string
	country    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	country := cfg.Country
	if country == "" {
		country = DefaultCountry
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		if cfg.Registry != nil {
			clientCfg.Registry = cfg.Registry
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		country:    country,
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// geocodeResponse is the subset of the ORS geocode search payload we consume.
type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"properties"`
	} `json:"features"`
}

// Resolve returns the best-match coordinate for the given address text.
func (c *Client) Resolve(ctx context.Context, address string) (geo.Coordinate, error) {
	endpoint := fmt.Sprintf("%s/geocode/search", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("creating request: %w", err)
	}

	q := url.Values{}
	q.Set("text", address)
	q.Set("boundary.country", c.country)
	q.Set("size", "1")
	httpReq.URL.RawQuery = q.Encode()
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Str("address", address).
		Msg("resolving address via ORS geocode")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure(err)
		return geo.Coordinate{}, &geo.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoding provider",
			Err:      geo.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := c.handleErrorResponse(resp.StatusCode)
		c.recordFailure(err)
		return geo.Coordinate{}, err
	}

	var decoded geocodeResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decoding response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return geo.Coordinate{}, &geo.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  fmt.Sprintf("no geocode results for %q", address),
			Err:      geo.ErrAddressNotFound,
		}
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return geo.Coordinate{}, &geo.Error{
			Provider: ProviderName,
			Code:     "BAD_GEOMETRY",
			Message:  fmt.Sprintf("invalid coordinate format for %q", address),
			Err:      geo.ErrAddressNotFound,
		}
	}

	// ORS returns [lon, lat] (GeoJSON order).
	result := geo.Coordinate{Lon: coords[0], Lat: coords[1]}
	if !result.Valid() {
		return geo.Coordinate{}, &geo.Error{
			Provider: ProviderName,
			Code:     "BAD_GEOMETRY",
			Message:  fmt.Sprintf("out-of-range coordinates for %q", address),
			Err:      geo.ErrAddressNotFound,
		}
	}

	c.recordSuccess()

	c.logger.Debug().
		Str("address", address).
		Float64("lat", result.Lat).
		Float64("lon", result.Lon).
		Float64("confidence", decoded.Features[0].Properties.Confidence).
		Msg("resolved address")

	return result, nil
}

// handleErrorResponse maps ORS error statuses to domain errors.
func (c *Client) handleErrorResponse(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &geo.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "geocoding rate limit exceeded",
			Err:      geo.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return &geo.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "geocoding access denied - check API key configuration",
			Err:      geo.ErrProviderUnavailable,
		}
	case statusCode >= 500:
		return &geo.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "geocoding provider is temporarily unavailable",
			Err:      geo.ErrProviderUnavailable,
		}
	default:
		return &geo.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("geocoding provider returned status %d", statusCode),
			Err:      geo.ErrProviderUnavailable,
		}
	}
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(ProviderName, err)
	}
}
