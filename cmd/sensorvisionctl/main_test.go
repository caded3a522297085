package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/socketrpc"
)

type fakeOps struct {
	mu        sync.Mutex
	devices   []model.Device
	trash     []model.TrashEntry
	notes     []model.Notification
	retention model.RetentionExecution

	gotLimit   int
	restoredID int64
}

func (f *fakeOps) TelemetryCount() (int64, error) { return 1200, nil }
func (f *fakeOps) DeviceCount() (int64, error)    { return 3, nil }

func (f *fakeOps) ListDevices(limit int) ([]model.Device, error) {
	f.mu.Lock()
	f.gotLimit = limit
	f.mu.Unlock()
	return f.devices, nil
}

func (f *fakeOps) ListTrash() ([]model.TrashEntry, error) { return f.trash, nil }

func (f *fakeOps) RestoreTrash(id int64) error {
	f.mu.Lock()
	f.restoredID = id
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) RunRetentionNow() (model.RetentionExecution, error) {
	return f.retention, nil
}

func (f *fakeOps) RecentNotifications(limit int) ([]model.Notification, error) {
	f.mu.Lock()
	f.gotLimit = limit
	f.mu.Unlock()
	return f.notes, nil
}

func (f *fakeOps) limit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotLimit
}

func (f *fakeOps) restored() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restoredID
}

// newTestCtl wires a ctl to a fake daemon over a real unix socket.
func newTestCtl(t *testing.T, ops *fakeOps) (*ctl, *bytes.Buffer) {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "ctl-test.sock")
	srv := socketrpc.NewServer(sockPath, ops)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	var out bytes.Buffer
	return &ctl{client: client, socketPath: sockPath, out: &out}, &out
}

func TestStatusPrintsCounts(t *testing.T) {
	t.Parallel()
	c, out := newTestCtl(t, &fakeOps{})

	if err := c.runStatus(nil); err != nil {
		t.Fatalf("status: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Devices:") || !strings.Contains(got, "3") {
		t.Errorf("missing device count in output:\n%s", got)
	}
	if !strings.Contains(got, "1200 points") {
		t.Errorf("missing telemetry count in output:\n%s", got)
	}
	if !strings.Contains(got, c.socketPath) {
		t.Errorf("missing socket path in output:\n%s", got)
	}
}

func TestDevicesTableAndLimitFlag(t *testing.T) {
	t.Parallel()
	ops := &fakeOps{devices: []model.Device{
		{ID: 1, DeviceID: "pump-1", Name: "Coolant Pump 1", Location: "plant-a"},
		{ID: 2, DeviceID: "chiller-1", Name: "Chiller 1"},
	}}
	c, out := newTestCtl(t, ops)

	if err := c.runDevices([]string{"-limit", "7"}); err != nil {
		t.Fatalf("devices: %v", err)
	}

	if got := ops.limit(); got != 7 {
		t.Errorf("limit = %d, want 7", got)
	}
	got := out.String()
	for _, want := range []string{"pump-1", "chiller-1", "plant-a", "never"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestDevicesEmpty(t *testing.T) {
	t.Parallel()
	c, out := newTestCtl(t, &fakeOps{})

	if err := c.runDevices(nil); err != nil {
		t.Fatalf("devices: %v", err)
	}
	if !strings.Contains(out.String(), "No devices registered.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestTrashListsEntries(t *testing.T) {
	t.Parallel()
	expires := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	ops := &fakeOps{trash: []model.TrashEntry{
		{ID: 9, EntityType: "playlist", Label: "Lobby Loop", DeletedAt: time.Now(), ExpiresAt: &expires},
		{ID: 10, EntityType: "dashboard", Label: "Plant Floor", DeletedAt: time.Now()},
	}}
	c, out := newTestCtl(t, ops)

	if err := c.runTrash(nil); err != nil {
		t.Fatalf("trash: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Lobby Loop", "playlist", "Plant Floor", "never", "restore <id>"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRestoreArgValidation(t *testing.T) {
	t.Parallel()
	ops := &fakeOps{}
	c, out := newTestCtl(t, ops)

	if err := c.runRestore(nil); err == nil {
		t.Error("expected error for missing id")
	}
	if err := c.runRestore([]string{"not-a-number"}); err == nil {
		t.Error("expected error for malformed id")
	}

	if err := c.runRestore([]string{"9"}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := ops.restored(); got != 9 {
		t.Errorf("restored ID = %d, want 9", got)
	}
	if !strings.Contains(out.String(), "Restored trash entry 9.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestRetentionPrintsSummary(t *testing.T) {
	t.Parallel()
	now := time.Now()
	ops := &fakeOps{retention: model.RetentionExecution{
		Status:           "completed",
		StartedAt:        now,
		FinishedAt:       now.Add(120 * time.Millisecond),
		TelemetryDeleted: 5000,
		EventsDeleted:    12,
		TrashDeleted:     1,
	}}
	c, out := newTestCtl(t, ops)

	if err := c.runRetention(nil); err != nil {
		t.Fatalf("retention: %v", err)
	}

	got := out.String()
	for _, want := range []string{"completed in 120ms", "5000", "12", "1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRetentionFailureIsAnError(t *testing.T) {
	t.Parallel()
	ops := &fakeOps{retention: model.RetentionExecution{Status: "failed", Detail: "disk full"}}
	c, _ := newTestCtl(t, ops)

	err := c.runRetention(nil)
	if err == nil {
		t.Fatal("expected error for failed sweep")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %q, want it to carry the failure detail", err)
	}
}

func TestNotificationsOutput(t *testing.T) {
	t.Parallel()
	ops := &fakeOps{notes: []model.Notification{
		{Kind: model.NotifyDeviceOffline, Message: "pump-1 has gone quiet", CreatedAt: time.Now()},
	}}
	c, out := newTestCtl(t, ops)

	if err := c.runNotifications([]string{"-limit", "5"}); err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if got := ops.limit(); got != 5 {
		t.Errorf("limit = %d, want 5", got)
	}
	if !strings.Contains(out.String(), "pump-1 has gone quiet") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestNotificationsEmpty(t *testing.T) {
	t.Parallel()
	c, out := newTestCtl(t, &fakeOps{})

	if err := c.runNotifications(nil); err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if !strings.Contains(out.String(), "No notifications.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestFormatAge(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero means never", time.Time{}, "never"},
		{"seconds", time.Now().Add(-20 * time.Second), "just now"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m ago"},
		{"hours", time.Now().Add(-3 * time.Hour), "3h ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatAge(tc.t); got != tc.want {
				t.Errorf("formatAge = %q, want %q", got, tc.want)
			}
		})
	}

	old := time.Now().Add(-72 * time.Hour)
	if got, want := formatAge(old), old.Local().Format("2006-01-02"); got != want {
		t.Errorf("formatAge(old) = %q, want %q", got, want)
	}
}
