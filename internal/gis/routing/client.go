package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"routebudget-telemetry/internal/gis"
	"routebudget-telemetry/internal/location"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOptions struct {
	Timeout time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout: 7 * time.Second,
	}
}

func NewClient(baseURL string, options ...ClientOptions) *Client {
	opts := DefaultClientOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Route fetches a driving path between two coordinates and decodes the
// returned encoded polyline into a coordinate sequence.
func (c *Client) Route(ctx context.Context, origin, destination location.Position) (location.RouteGeometry, *Summary, error) {
	path := fmt.Sprintf("/route/v1/driving/%f,%f;%f,%f",
		origin.Longitude, origin.Latitude,
		destination.Longitude, destination.Latitude)

	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := reqURL.Query()
	q.Set("overview", "full")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var routeResp routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&routeResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if err := routeResp.validate(); err != nil {
		return nil, nil, err
	}

	best := routeResp.Routes[0]
	geometry, err := gis.DecodePolyline(best.Geometry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	return geometry, &Summary{Distance: best.Distance, Duration: best.Duration}, nil
}
