package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/provider/resilience"
	"github.com/fuelscout/fuelscout/internal/station"
)

// SourceName identifies the directory source in the health registry.
const SourceName = "site-directory"

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the directory client.
type ClientConfig struct {
	// URL of the authoritative site directory export.
	URL string

	// HTTPClient overrides the resilient client. Used by tests.
	HTTPClient HTTPDoer

	// Timeout per request (default: 15s; the directory is a large
	// single payload).
	Timeout time.Duration

	// Registry receives fetch health. Optional.
	Registry *resilience.Registry

	// Logger for fetch diagnostics.
	Logger zerolog.Logger
}

// Client fetches and ingests the authoritative site directory.
type Client struct {
	url      string
	doer     HTTPDoer
	ingestor *Ingestor
	registry *resilience.Registry
	logger   zerolog.Logger
}

// NewClient creates a directory client.
func NewClient(cfg ClientConfig) *Client {
	doer := cfg.HTTPClient
	if doer == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		client := resilience.NewClient(resilience.ClientConfig{
			Name:    SourceName,
			Timeout: timeout,
		})
		doer = client
		if cfg.Registry != nil {
			cfg.Registry.Register(SourceName, client)
		}
	}

	return &Client{
		url:      cfg.URL,
		doer:     doer,
		ingestor: NewIngestor(IngestorConfig{Logger: cfg.Logger}),
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// FetchSites retrieves and ingests the directory. Transport failures
// return an error for the caller to degrade on; payload shape failures
// degrade to an empty list here.
func (c *Client) FetchSites(ctx context.Context) ([]*station.Site, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("fetch site directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d from site directory", resp.StatusCode)
		c.recordFailure(err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("read site directory: %w", err)
	}

	c.recordSuccess()
	return c.ingestor.Ingest(body), nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(SourceName)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(SourceName, err)
	}
}
