// Package metadata provides the overlay.Source implementations: an HTTP
// client for a remote metadata service and a local adapter over the catalog
// domain. The coalescing cache sits in front of either one.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/escapdev/overlaysync/internal/domain/catalog"
	"github.com/escapdev/overlaysync/internal/domain/overlay"
	apperrors "github.com/escapdev/overlaysync/pkg/errors"
	"github.com/escapdev/overlaysync/pkg/metrics"
)

// Client fetches layer metadata from a remote service over HTTP. Calls run
// through a circuit breaker so a flapping metadata service degrades into fast
// fetch_failed errors instead of piling up timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds the metadata API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "metadata",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

var _ overlay.Source = (*Client)(nil)

// Boundary implements overlay.Source.
func (c *Client) Boundary(ctx context.Context, country string) (overlay.BoundaryResource, error) {
	layers, err := c.countryLayers(ctx, country)
	if err != nil {
		return overlay.BoundaryResource{}, err
	}
	if len(layers.Boundaries) == 0 {
		return overlay.BoundaryResource{}, apperrors.Wrap(overlay.CodeNoMatchingResource,
			fmt.Sprintf("no boundary for country %q", country), nil)
	}
	return boundaryResource(country, layers.Boundaries[0]), nil
}

// Rasters implements overlay.Source.
func (c *Client) Rasters(ctx context.Context, country string, cat overlay.Category) ([]overlay.RasterResource, error) {
	layers, err := c.countryLayers(ctx, country)
	if err != nil {
		return nil, err
	}
	return rasterResources(layers, cat), nil
}

// Energy implements overlay.Source.
func (c *Client) Energy(ctx context.Context, country string) ([]overlay.EnergyResource, error) {
	layers, err := c.countryLayers(ctx, country)
	if err != nil {
		return nil, err
	}
	return energyResources(layers), nil
}

func (c *Client) countryLayers(ctx context.Context, country string) (catalog.CountryLayers, error) {
	endpoint := fmt.Sprintf("%s/api/v1/catalog/%s", c.baseURL, url.PathEscape(country))

	result, err := c.breaker.Execute(func() (any, error) {
		start := time.Now()
		defer func() {
			metrics.MetadataRequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build metadata request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("metadata request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errNotFound
		}
		if resp.StatusCode >= 300 {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			return nil, fmt.Errorf("metadata request error: status=%d body=%s", resp.StatusCode, string(payload))
		}

		var layers catalog.CountryLayers
		if err := json.NewDecoder(resp.Body).Decode(&layers); err != nil {
			return nil, fmt.Errorf("decode metadata response: %w", err)
		}
		return layers, nil
	})
	if err != nil {
		if err == errNotFound {
			return catalog.CountryLayers{}, apperrors.Wrap(overlay.CodeNoMatchingResource,
				fmt.Sprintf("no metadata for country %q", country), nil)
		}
		return catalog.CountryLayers{}, apperrors.Wrap(overlay.CodeFetchFailed,
			fmt.Sprintf("fetch metadata for %q", country), err)
	}
	return result.(catalog.CountryLayers), nil
}

var errNotFound = fmt.Errorf("metadata: not found")
