package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the dispatch backend's trip-update REST endpoint.
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

// TripUpdate is the confirmed trip location submitted on user
// confirmation.
type TripUpdate struct {
	DriverID  string `json:"driverId"`
	CabNumber string `json:"cabNumber"`
	Location  string `json:"location"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func (c *Client) UpdateTripLocation(ctx context.Context, update TripUpdate) error {
	reqURL, err := url.Parse(c.baseURL + "/trip/location")
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
