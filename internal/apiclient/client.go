// Package apiclient is a minimal REST client for the sensorvision HTTP API.
// The kiosk player uses it to resolve playlists and load widget data.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client talks to a sensorvisiond HTTP API.
type Client struct {
	baseURL    string
	token      string
	shareToken string
	http       *http.Client
}

// New creates a client for the API at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// SetToken installs a bearer token for authenticated endpoints.
func (c *Client) SetToken(token string) { c.token = token }

// UseShareToken switches dashboard and telemetry reads onto the
// share-scoped routes, which need no account. Kiosks running off a share
// link call this after resolving the playlist.
func (c *Client) UseShareToken(token string) { c.shareToken = token }

// prefix is the route prefix for the client's auth mode.
func (c *Client) prefix() string {
	if c.shareToken != "" {
		return "/api/v1/shared/playlists/" + url.PathEscape(c.shareToken)
	}
	return "/api/v1"
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: %s (status %d)", e.Message, e.Status)
}

// Login authenticates and stores the returned bearer token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (model.User, error) {
	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return model.User{}, err
	}
	c.token = out.Token
	return out.User, nil
}

// PlaylistByID loads a playlist with its items. Requires a token.
func (c *Client) PlaylistByID(ctx context.Context, id int64) (model.Playlist, error) {
	var p model.Playlist
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/playlists/%d", id), nil, &p)
	return p, err
}

// PlaylistByToken resolves a share token without authentication.
func (c *Client) PlaylistByToken(ctx context.Context, token string) (model.Playlist, error) {
	var p model.Playlist
	err := c.do(ctx, http.MethodGet, "/api/v1/shared/playlists/"+url.PathEscape(token), nil, &p)
	return p, err
}

// DashboardByID loads a dashboard with its widgets. Requires a bearer
// token or an installed share token.
func (c *Client) DashboardByID(ctx context.Context, id int64) (model.Dashboard, error) {
	var d model.Dashboard
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/dashboards/%d", c.prefix(), id), nil, &d)
	return d, err
}

// SeriesQuery narrows a telemetry series request.
type SeriesQuery struct {
	Variable    string
	From        time.Time
	To          time.Time
	Aggregation string // empty for raw points
	Limit       int    // raw points only; zero keeps the server default
}

// DeviceTelemetrySeries loads chart points for one device variable.
func (c *Client) DeviceTelemetrySeries(ctx context.Context, deviceID string, q SeriesQuery) ([]model.SeriesPoint, error) {
	params := url.Values{}
	params.Set("variable", q.Variable)
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		params.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	if q.Aggregation != "" {
		params.Set("aggregation", q.Aggregation)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var points []model.SeriesPoint
	path := c.prefix() + "/devices/" + url.PathEscape(deviceID) + "/telemetry?" + params.Encode()
	err := c.do(ctx, http.MethodGet, path, nil, &points)
	return points, err
}

// LatestValue is the most recent reading of one device variable.
type LatestValue struct {
	Variable  string    `json:"variable"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceLatest loads the most recent value of one device variable.
func (c *Client) DeviceLatest(ctx context.Context, deviceID, variable string) (LatestValue, error) {
	params := url.Values{}
	params.Set("variable", variable)

	var v LatestValue
	path := c.prefix() + "/devices/" + url.PathEscape(deviceID) + "/latest?" + params.Encode()
	err := c.do(ctx, http.MethodGet, path, nil, &v)
	return v, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return apiError(resp)
	}
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("apiclient: decode response: %w", err)
		}
	}
	return nil
}

// apiError surfaces the server's error message along with the status code so
// callers can branch on expired shares versus plain not-found.
func apiError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e); err == nil && e.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: resp.Status}
}
