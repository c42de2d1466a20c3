// Package httpadvisor provides an HTTP client for a route-advice service
// implementing the optimization-advisor contract.
package httpadvisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/advisor"
	"github.com/partsroute/partsroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this advisor provider.
	ProviderName = "route-advisor"

	// DefaultTimeout is the default request timeout. Advice calls are slower
	// than plain routing lookups, so the default is generous.
	DefaultTimeout = 30 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the advisor client.
type ClientConfig struct {
	// APIKey authenticates against the advice service (required).
	APIKey string

	// BaseURL is the advice service base URL (required).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 30s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a route-advice API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new advisor client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		// A single retry is enough: a failed advice call falls through to the
		// deterministic planner anyway.
		clientCfg.MaxRetries = 1
		if cfg.Registry != nil {
			clientCfg.Registry = cfg.Registry
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// adviceResponse is the wire shape of the advice service response.
type adviceResponse struct {
	Order     []int    `json:"order"`
	Reasoning string   `json:"reasoning"`
	Insights  []string `json:"insights"`
}

// ProposeSequence submits the scenario and returns the advisor's proposal.
// The proposal's order is validated against the scenario before it is
// returned; any shape problem surfaces as ErrMalformedProposal.
func (c *Client) ProposeSequence(ctx context.Context, scenario advisor.Scenario) (*advisor.Proposal, error) {
	body, err := json.Marshal(scenario)
	if err != nil {
		return nil, fmt.Errorf("marshaling scenario: %w", err)
	}

	url := fmt.Sprintf("%s/v1/route-advice", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug().
		Int("location_count", len(scenario.Locations)).
		Str("vehicle_type", scenario.Constraints.VehicleType).
		Msg("requesting sequence proposal from advisor")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", advisor.ErrAdvisorUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: advisor returned status %d", advisor.ErrAdvisorUnavailable, resp.StatusCode)
	}

	var decoded adviceResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %s", advisor.ErrMalformedProposal, err)
	}

	proposal := &advisor.Proposal{
		Order:     decoded.Order,
		Reasoning: decoded.Reasoning,
		Insights:  decoded.Insights,
	}

	if err := proposal.ValidateOrder(len(scenario.Locations)); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Ints("order", proposal.Order).
		Int("insight_count", len(proposal.Insights)).
		Msg("received sequence proposal from advisor")

	return proposal, nil
}
