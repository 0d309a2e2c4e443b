// Package elevation wraps the external open-elevation style lookup service.
// Lookups are pure request/response: no caching, no retries.
package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrTimeout marks a lookup that exceeded its time budget, as opposed to a
// generic transport failure. Callers surface the two differently.
var ErrTimeout = errors.New("elevation lookup timed out")

// ErrNoResult marks a well-formed response that carried no elevation.
var ErrNoResult = errors.New("elevation lookup returned no result")

// Client queries a lookup endpoint of the form
// GET {base}?locations={lat},{lng} returning {"results":[{"elevation":N}]}.
type Client struct {
	baseURL string
	timeout time.Duration
	httpc   *http.Client
}

// Options tunes a Client. Zero values get defaults.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

func New(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &Client{baseURL: baseURL, timeout: timeout, httpc: httpc}
}

type lookupResponse struct {
	Results []struct {
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup returns the elevation in meters at (lat, lng). The request is bounded
// by the client timeout on top of whatever deadline ctx already carries.
func (c *Client) Lookup(ctx context.Context, lat, lng float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "?locations=" + url.QueryEscape(
		strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build elevation request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, ErrTimeout
		}
		return 0, fmt.Errorf("elevation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("elevation service returned %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if isTimeout(err) {
			return 0, ErrTimeout
		}
		return 0, fmt.Errorf("decode elevation response: %w", err)
	}
	if len(body.Results) == 0 {
		return 0, ErrNoResult
	}

	return body.Results[0].Elevation, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
