package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

func TestLoginStoresToken(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth/login" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode credentials: %v", err)
		}
		if creds.Username != "kiosk" || creds.Password != "hunter2" {
			t.Errorf("credentials = %q/%q", creds.Username, creds.Password)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token": "tok-123",
			"user":  model.User{ID: 1, Username: "kiosk", Role: model.RoleUser},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	user, err := c.Login(context.Background(), "kiosk", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Username != "kiosk" {
		t.Errorf("Username = %q, want kiosk", user.Username)
	}
	if c.token != "tok-123" {
		t.Errorf("token = %q, want tok-123", c.token)
	}
}

func TestBearerTokenSent(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("Authorization = %q, want Bearer tok-abc", got)
		}
		json.NewEncoder(w).Encode(model.Dashboard{ID: 7, Name: "Pump Station"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	c.SetToken("tok-abc")
	dash, err := c.DashboardByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("DashboardByID: %v", err)
	}
	if dash.Name != "Pump Station" {
		t.Errorf("Name = %q, want Pump Station", dash.Name)
	}
}

func TestPlaylistByTokenPath(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/shared/playlists/kiosk-token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("share resolution should not send a token")
		}
		json.NewEncoder(w).Encode(model.Playlist{
			ID:               2,
			Name:             "Lobby Loop",
			LoopEnabled:      true,
			TransitionEffect: model.TransitionFade,
			Items: []model.PlaylistItem{
				{ID: 1, PlaylistID: 2, DashboardID: 5, Position: 0, DurationSeconds: 30},
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	p, err := c.PlaylistByToken(context.Background(), "kiosk-token")
	if err != nil {
		t.Fatalf("PlaylistByToken: %v", err)
	}
	if p.Name != "Lobby Loop" || len(p.Items) != 1 {
		t.Errorf("playlist = %+v", p)
	}
	if p.Items[0].DurationSeconds != 30 {
		t.Errorf("DurationSeconds = %d, want 30", p.Items[0].DurationSeconds)
	}
}

func TestDeviceTelemetrySeriesQuery(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("variable") != "temperature" {
			t.Errorf("variable = %q", q.Get("variable"))
		}
		if q.Get("from") != "2025-01-01T00:00:00Z" {
			t.Errorf("from = %q", q.Get("from"))
		}
		if q.Get("aggregation") != "AVG" {
			t.Errorf("aggregation = %q", q.Get("aggregation"))
		}
		json.NewEncoder(w).Encode([]model.SeriesPoint{
			{Timestamp: from, Value: 21.5},
			{Timestamp: from.Add(time.Minute), Value: 22.0},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	points, err := c.DeviceTelemetrySeries(context.Background(), "pump-1", SeriesQuery{
		Variable:    "temperature",
		From:        from,
		Aggregation: "AVG",
	})
	if err != nil {
		t.Fatalf("DeviceTelemetrySeries: %v", err)
	}
	if len(points) != 2 || points[0].Value != 21.5 {
		t.Errorf("points = %+v", points)
	}
}

func TestDeviceLatest(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/devices/pump-1/latest" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"variable":  "pressure",
			"value":     4.2,
			"timestamp": time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	v, err := c.DeviceLatest(context.Background(), "pump-1", "pressure")
	if err != nil {
		t.Fatalf("DeviceLatest: %v", err)
	}
	if v.Value != 4.2 || v.Variable != "pressure" {
		t.Errorf("latest = %+v", v)
	}
}

func TestErrorCarriesStatusAndMessage(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		json.NewEncoder(w).Encode(map[string]string{"error": "share link expired"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.PlaylistByToken(context.Background(), "stale")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusGone {
		t.Errorf("Status = %d, want 410", apiErr.Status)
	}
	if apiErr.Message != "share link expired" {
		t.Errorf("Message = %q, want share link expired", apiErr.Message)
	}
}

func TestShareTokenSwitchesToSharedRoutes(t *testing.T) {
	t.Parallel()

	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Header.Get("Authorization") != "" {
			t.Error("share-scoped reads should not send a bearer token")
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/dashboards/5"):
			json.NewEncoder(w).Encode(model.Dashboard{ID: 5, Name: "Lobby"})
		case strings.HasSuffix(r.URL.Path, "/latest"):
			json.NewEncoder(w).Encode(LatestValue{Variable: "temperature", Value: 21.5})
		default:
			json.NewEncoder(w).Encode([]model.SeriesPoint{})
		}
	}))
	defer ts.Close()

	c := New(ts.URL)
	c.UseShareToken("kiosk-token")

	if _, err := c.DashboardByID(context.Background(), 5); err != nil {
		t.Fatalf("DashboardByID: %v", err)
	}
	if _, err := c.DeviceTelemetrySeries(context.Background(), "pump-1", SeriesQuery{Variable: "temperature"}); err != nil {
		t.Fatalf("DeviceTelemetrySeries: %v", err)
	}
	if _, err := c.DeviceLatest(context.Background(), "pump-1", "temperature"); err != nil {
		t.Fatalf("DeviceLatest: %v", err)
	}

	want := []string{
		"/api/v1/shared/playlists/kiosk-token/dashboards/5",
		"/api/v1/shared/playlists/kiosk-token/devices/pump-1/telemetry",
		"/api/v1/shared/playlists/kiosk-token/devices/pump-1/latest",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, paths[i], want[i])
		}
	}
}
