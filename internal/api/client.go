// Package api is the HTTP client for the ParaHub backend. The backend owns
// all persistence and validation; this package only moves records.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"parahub/client-go/internal/model"
)

// TokenSource supplies the current bearer token, or "" when logged out.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for a fixed token, mostly useful in tests.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is a backend rejection that should surface
// inline on a form (bad credentials, bad or expired code/token) rather than
// as a transient network notice.
func IsAuthError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusBadRequest
}

// Client talks to the backend REST API rooted at baseURL (".../api").
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
}

func New(baseURL string, tokens TokenSource, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		tokens:  tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Spots lists all spots.
func (c *Client) Spots(ctx context.Context) ([]model.Spot, error) {
	var out []model.Spot
	if err := c.do(ctx, http.MethodGet, "/spots", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SpotByID fetches a single spot.
func (c *Client) SpotByID(ctx context.Context, id int64) (model.Spot, error) {
	var out model.Spot
	err := c.do(ctx, http.MethodGet, "/spots/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

// CreateSpot posts a new spot and returns the persisted record with its id.
func (c *Client) CreateSpot(ctx context.Context, spot model.Spot) (model.Spot, error) {
	var out model.Spot
	err := c.do(ctx, http.MethodPost, "/spots", spot, &out)
	return out, err
}

// TerrainPointsBySpot lists terrain points owned by a spot.
func (c *Client) TerrainPointsBySpot(ctx context.Context, spotID int64) ([]model.TerrainPoint, error) {
	var out []model.TerrainPoint
	err := c.do(ctx, http.MethodGet, "/terrain_points/spotID/"+strconv.FormatInt(spotID, 10), nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTerrainPoint posts a new terrain point, under the owning spot when
// one is referenced.
func (c *Client) CreateTerrainPoint(ctx context.Context, tp model.TerrainPoint) (model.TerrainPoint, error) {
	path := "/terrain_points"
	if tp.SpotID != nil {
		path += "/spotID/" + strconv.FormatInt(*tp.SpotID, 10)
	}
	var out model.TerrainPoint
	err := c.do(ctx, http.MethodPost, path, tp, &out)
	return out, err
}

// Register creates an account; the backend mails a verification code.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
}

// VerifyEmail confirms an address with the mailed one-time code.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify", map[string]string{
		"email": email,
		"code":  code,
	}, nil)
}

// RequestTwoFactor performs the first login factor and triggers code delivery.
func (c *Client) RequestTwoFactor(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/request-2fa", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
}

// LoginTwoFactor completes login with the delivered code.
func (c *Client) LoginTwoFactor(ctx context.Context, email, code string) (model.AuthResponse, error) {
	var out model.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login-2fa", map[string]string{
		"email": email,
		"code":  code,
	}, &out)
	return out, err
}

// Me fetches the user record for an explicit token. The token is passed
// rather than read from the TokenSource so revalidation checks exactly the
// token it was asked about.
func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	var out model.User

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/me", nil)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return out, fmt.Errorf("GET /user/me: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return out, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode user: %w", err)
	}
	return out, nil
}
