package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/provider/resilience"
	"github.com/fuelscout/fuelscout/internal/station"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the feed client.
type ClientConfig struct {
	// Endpoints maps retailer name to feed URL. Defaults to
	// DefaultEndpoints.
	Endpoints map[string]string

	// HTTPClient overrides the per-retailer resilient clients with a
	// single doer. Used by tests.
	HTTPClient HTTPDoer

	// Timeout per feed request (default: 10s).
	Timeout time.Duration

	// Registry receives per-retailer fetch health. Optional.
	Registry *resilience.Registry

	// Logger for fetch diagnostics.
	Logger zerolog.Logger

	// Normalizer converts raw payloads. Defaults to a normalizer using
	// the same logger.
	Normalizer *Normalizer
}

// Client fetches retailer feeds and normalizes them into canonical
// stations. Each retailer gets its own circuit breaker, so one dead host
// cannot poison fetches for the rest.
type Client struct {
	endpoints  map[string]string
	doers      map[string]HTTPDoer
	normalizer *Normalizer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a feed client.
func NewClient(cfg ClientConfig) *Client {
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints()
	}

	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = NewNormalizer(NormalizerConfig{Logger: cfg.Logger})
	}

	doers := make(map[string]HTTPDoer, len(endpoints))
	for retailer := range endpoints {
		if cfg.HTTPClient != nil {
			doers[retailer] = cfg.HTTPClient
			continue
		}
		client := resilience.NewClient(resilience.ClientConfig{
			Name:    retailer,
			Timeout: cfg.Timeout,
		})
		doers[retailer] = client
		if cfg.Registry != nil {
			cfg.Registry.Register(retailer, client)
		}
	}

	return &Client{
		endpoints:  endpoints,
		doers:      doers,
		normalizer: normalizer,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Retailers returns the configured retailer names in stable order.
func (c *Client) Retailers() []string {
	names := make([]string, 0, len(c.endpoints))
	for name := range c.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FetchRaw retrieves one retailer's raw feed payload.
func (c *Client) FetchRaw(ctx context.Context, retailer string) (json.RawMessage, error) {
	url, ok := c.endpoints[retailer]
	if !ok {
		return nil, fmt.Errorf("unknown retailer %q", retailer)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doers[retailer].Do(req)
	if err != nil {
		c.recordFailure(retailer, err)
		return nil, fmt.Errorf("fetch %s feed: %w", retailer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d from %s feed", resp.StatusCode, retailer)
		c.recordFailure(retailer, err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(retailer, err)
		return nil, fmt.Errorf("read %s feed: %w", retailer, err)
	}

	c.recordSuccess(retailer)
	return body, nil
}

// FetchStations retrieves and normalizes one retailer's feed. A feed
// whose shape is unrecognized yields zero stations, not an error.
func (c *Client) FetchStations(ctx context.Context, retailer string) ([]*station.Station, error) {
	raw, err := c.FetchRaw(ctx, retailer)
	if err != nil {
		return nil, err
	}
	return c.normalizer.Normalize(retailer, raw), nil
}

func (c *Client) recordSuccess(retailer string) {
	if c.registry != nil {
		c.registry.RecordSuccess(retailer)
	}
}

func (c *Client) recordFailure(retailer string, err error) {
	if c.registry != nil {
		c.registry.RecordFailure(retailer, err)
	}
}

// DefaultEndpoints returns the published fuel price feed URL for each
// supported retailer.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		"applegreen":     "https://applegreenstores.com/fuel-prices/data.json",
		"ascona":         "https://fuelprices.asconagroup.co.uk/newfuel.json",
		"asda":           "https://storelocator.asda.com/fuel_prices_data.json",
		"bp":             "https://www.bp.com/en_gb/united-kingdom/home/fuelprices/fuel_prices_data.json",
		"esso":           "https://fuelprices.esso.co.uk/latestdata.json",
		"jet":            "https://jetlocal.co.uk/fuel_prices_data.json",
		"karan":          "https://api.krlmedia.com/integration/live_price/krl",
		"morrisons":      "https://www.morrisons.com/fuel-prices/fuel.json",
		"moto":           "https://moto-way.com/fuel-price/fuel_prices.json",
		"motorfuelgroup": "https://fuel.motorfuelgroup.com/fuel_prices_data.json",
		"rontec":         "https://www.rontec-servicestations.co.uk/fuel-prices/data/fuel_prices_data.json",
		"sainsburys":     "https://api.sainsburys.co.uk/v1/exports/latest/fuel_prices_data.json",
		"sgn":            "https://www.sgnretail.uk/files/data/SGN_daily_fuel_prices.json",
		"shell":          "https://www.shell.co.uk/fuel-prices-data.html",
		"tesco":          "https://www.tesco.com/fuel_prices/fuel_prices_data.json",
	}
}
