package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"routebudget-telemetry/internal/location"
)

type Client struct {
	baseURL     string
	countryCode string
	httpClient  *http.Client
}

type ClientOptions struct {
	Timeout time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout: 7 * time.Second,
	}
}

// NewClient creates a geocoding client scoped to one country.
func NewClient(baseURL, countryCode string, options ...ClientOptions) *Client {
	opts := DefaultClientOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &Client{
		baseURL:     baseURL,
		countryCode: countryCode,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Search resolves free text into candidate places, most relevant
// first, with structured address components for ranking.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	reqURL, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := reqURL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("countrycodes", c.countryCode)
	q.Set("limit", strconv.Itoa(limit))
	reqURL.RawQuery = q.Encode()

	var results []Result
	if err := c.getJSON(ctx, reqURL.String(), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Geocode resolves free text to the first matching coordinate, or nil
// if the search returns nothing.
func (c *Client) Geocode(ctx context.Context, address string) (*location.Position, error) {
	results, err := c.Search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	pos, err := results[0].Position()
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// Reverse resolves a coordinate to a display name.
func (c *Client) Reverse(ctx context.Context, pos location.Position) (string, error) {
	reqURL, err := url.Parse(c.baseURL + "/reverse")
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	q := reqURL.Query()
	q.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
	q.Set("format", "json")
	reqURL.RawQuery = q.Encode()

	var resp reverseResponse
	if err := c.getJSON(ctx, reqURL.String(), &resp); err != nil {
		return "", err
	}
	return resp.DisplayName, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
