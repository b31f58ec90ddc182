package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelscout/fuelscout/internal/provider/resilience"
)

func newTestFeedClient(t *testing.T, handler http.HandlerFunc) (*Client, *resilience.Registry) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	registry := resilience.NewRegistry()
	registry.Register("shell", resilience.NewClient(resilience.ClientConfig{Name: "shell"}))

	client := NewClient(ClientConfig{
		Endpoints:  map[string]string{"shell": server.URL},
		HTTPClient: server.Client(),
		Registry:   registry,
		Logger:     zerolog.Nop(),
	})
	return client, registry
}

func TestFetchRaw_ReturnsBody(t *testing.T) {
	var gotAccept string
	client, registry := newTestFeedClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stations":[]}`))
	})

	raw, err := client.FetchRaw(context.Background(), "shell")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stations":[]}`, string(raw))
	assert.Equal(t, "application/json", gotAccept)

	health := registry.Health()
	require.Len(t, health, 1)
	assert.NotNil(t, health[0].LastSuccessAt)
	assert.Nil(t, health[0].LastFailureAt)
}

func TestFetchRaw_UnknownRetailer(t *testing.T) {
	client, _ := newTestFeedClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.FetchRaw(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown retailer")
}

func TestFetchRaw_UnexpectedStatus(t *testing.T) {
	client, registry := newTestFeedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchRaw(context.Background(), "shell")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")

	health := registry.Health()
	require.Len(t, health, 1)
	assert.NotNil(t, health[0].LastFailureAt)
	assert.Contains(t, health[0].LastError, "unexpected status 404")
}

func TestFetchRaw_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	httpClient := server.Client()
	server.Close()

	client := NewClient(ClientConfig{
		Endpoints:  map[string]string{"shell": url},
		HTTPClient: httpClient,
		Logger:     zerolog.Nop(),
	})

	_, err := client.FetchRaw(context.Background(), "shell")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch shell feed")
}

func TestFetchStations_NormalizesPayload(t *testing.T) {
	client, _ := newTestFeedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stations":[{
			"site_id": "x1",
			"brand": "Shell",
			"postcode": "TW5 9NB",
			"location": {"latitude": 51.47, "longitude": -0.37},
			"prices": {"E10": 141.9, "B7": 149.9}
		}]}`))
	})

	stations, err := client.FetchStations(context.Background(), "shell")
	require.NoError(t, err)
	require.Len(t, stations, 1)

	got := stations[0]
	assert.Equal(t, "shell-x1", got.ID)
	assert.Equal(t, "shell", got.Retailer)
	assert.Equal(t, "Shell", got.Brand)
	assert.Equal(t, "TW5 9NB", got.Postcode)
	require.NotNil(t, got.PetrolPrice)
	assert.InDelta(t, 1.419, *got.PetrolPrice, 0.0001)
	require.NotNil(t, got.DieselPrice)
	assert.InDelta(t, 1.499, *got.DieselPrice, 0.0001)
}

func TestFetchStations_UnrecognizedShapeYieldsNoStations(t *testing.T) {
	client, _ := newTestFeedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"maintenance"`))
	})

	stations, err := client.FetchStations(context.Background(), "shell")
	require.NoError(t, err)
	assert.Empty(t, stations)
}

func TestRetailers_SortedOrder(t *testing.T) {
	client := NewClient(ClientConfig{
		Endpoints: map[string]string{
			"tesco": "http://example.invalid/t",
			"asda":  "http://example.invalid/a",
			"shell": "http://example.invalid/s",
		},
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	assert.Equal(t, []string{"asda", "shell", "tesco"}, client.Retailers())
}

func TestDefaultEndpoints(t *testing.T) {
	endpoints := DefaultEndpoints()

	assert.Len(t, endpoints, 15)
	for _, retailer := range []string{"asda", "bp", "esso", "morrisons", "sainsburys", "shell", "tesco"} {
		assert.Contains(t, endpoints, retailer)
	}
	for retailer, url := range endpoints {
		assert.True(t, strings.HasPrefix(url, "https://"), "endpoint for %s is not https", retailer)
	}
}
