package duckdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

func createTestDashboard(t *testing.T, store *Store, name string) *Dashboard {
	t.Helper()
	d, err := store.CreateDashboard(name, "")
	if err != nil {
		t.Fatalf("CreateDashboard(%q): %v", name, err)
	}
	return d
}

func TestCreateWidgetDefaults(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Plant Overview")

	w, err := store.CreateWidget(d.ID, Widget{
		Type: model.WidgetLineChart, Title: "Pressure", DeviceID: "pump-1", Variable: "pressure",
	})
	if err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}
	if w.Width != model.DefaultWidgetWidth || w.Height != model.DefaultWidgetHeight {
		t.Errorf("widget size = %dx%d, want %dx%d", w.Width, w.Height,
			model.DefaultWidgetWidth, model.DefaultWidgetHeight)
	}
	if w.Aggregation != model.AggregationNone {
		t.Errorf("widget aggregation = %q, want %q", w.Aggregation, model.AggregationNone)
	}
	if w.TimeRangeMinutes != model.DefaultWidgetTimeRangeMinutes {
		t.Errorf("widget time range = %d, want %d", w.TimeRangeMinutes, model.DefaultWidgetTimeRangeMinutes)
	}

	if _, err := store.CreateWidget(9999, Widget{Type: model.WidgetGauge, Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateWidget on missing dashboard: err = %v, want ErrNotFound", err)
	}
}

func TestDashboardByID_WidgetOrder(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Plant Overview")

	// Created out of grid order on purpose.
	for _, w := range []Widget{
		{Type: model.WidgetGauge, Title: "bottom", PositionX: 0, PositionY: 4},
		{Type: model.WidgetGauge, Title: "top-right", PositionX: 8, PositionY: 0},
		{Type: model.WidgetGauge, Title: "top-left", PositionX: 0, PositionY: 0},
	} {
		if _, err := store.CreateWidget(d.ID, w); err != nil {
			t.Fatalf("CreateWidget(%q): %v", w.Title, err)
		}
	}

	loaded, err := store.DashboardByID(d.ID)
	if err != nil {
		t.Fatalf("DashboardByID: %v", err)
	}
	if len(loaded.Widgets) != 3 {
		t.Fatalf("widget count = %d, want 3", len(loaded.Widgets))
	}
	expected := []string{"top-left", "top-right", "bottom"}
	for i, want := range expected {
		if loaded.Widgets[i].Title != want {
			t.Errorf("widgets[%d] = %q, want %q", i, loaded.Widgets[i].Title, want)
		}
	}

	if _, err := store.DashboardByID(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DashboardByID(9999): err = %v, want ErrNotFound", err)
	}
}

func TestListDashboards(t *testing.T) {
	store := newTestStore(t)
	createTestDashboard(t, store, "Warehouse")
	createTestDashboard(t, store, "Assembly")

	dashboards, err := store.ListDashboards()
	if err != nil {
		t.Fatalf("ListDashboards: %v", err)
	}
	if len(dashboards) != 2 {
		t.Fatalf("ListDashboards returned %d, want 2", len(dashboards))
	}
	if dashboards[0].Name != "Assembly" || dashboards[1].Name != "Warehouse" {
		t.Errorf("dashboards = [%s, %s], want [Assembly, Warehouse]",
			dashboards[0].Name, dashboards[1].Name)
	}
}

func TestUpdateDashboard(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Plant Overview")

	updated, err := store.UpdateDashboard(d.ID, "Hall B", "coolant loop")
	if err != nil {
		t.Fatalf("UpdateDashboard: %v", err)
	}
	if updated.Name != "Hall B" || updated.Description != "coolant loop" {
		t.Errorf("UpdateDashboard = %+v, want Hall B/coolant loop", updated)
	}

	if _, err := store.UpdateDashboard(9999, "x", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateDashboard(9999): err = %v, want ErrNotFound", err)
	}
}

func TestApplyWidgetUpdate(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Plant Overview")
	w, err := store.CreateWidget(d.ID, Widget{
		Type: model.WidgetLineChart, Title: "Pressure", DeviceID: "pump-1", Variable: "pressure",
	})
	if err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}

	title := "Coolant Pressure"
	updated, err := store.ApplyWidgetUpdate(d.ID, w.ID, WidgetUpdate{Title: &title})
	if err != nil {
		t.Fatalf("ApplyWidgetUpdate: %v", err)
	}
	if updated.Title != "Coolant Pressure" {
		t.Errorf("title = %q, want %q", updated.Title, "Coolant Pressure")
	}
	// Untouched fields keep their values.
	if updated.DeviceID != "pump-1" || updated.Variable != "pressure" {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	// An update with nothing set still succeeds.
	same, err := store.ApplyWidgetUpdate(d.ID, w.ID, WidgetUpdate{})
	if err != nil {
		t.Fatalf("empty ApplyWidgetUpdate: %v", err)
	}
	if same.Title != "Coolant Pressure" {
		t.Errorf("empty update changed title to %q", same.Title)
	}

	if _, err := store.ApplyWidgetUpdate(d.ID, 9999, WidgetUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("ApplyWidgetUpdate(9999): err = %v, want ErrNotFound", err)
	}
}

func TestUpdateWidgetPosition(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Plant Overview")
	w, err := store.CreateWidget(d.ID, Widget{Type: model.WidgetGauge, Title: "Flow"})
	if err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}

	ctx := context.Background()
	moved, err := store.UpdateWidgetPosition(ctx, d.ID, WidgetLayout{
		WidgetID: w.ID, PositionX: 4, PositionY: 2, Width: 6, Height: 3,
	})
	if err != nil {
		t.Fatalf("UpdateWidgetPosition: %v", err)
	}
	if moved.PositionX != 4 || moved.PositionY != 2 || moved.Width != 6 || moved.Height != 3 {
		t.Errorf("moved widget = %+v, want 4/2/6x3", moved)
	}

	// Writing the same placement again succeeds.
	same, err := store.UpdateWidgetPosition(ctx, d.ID, WidgetLayout{
		WidgetID: w.ID, PositionX: 4, PositionY: 2, Width: 6, Height: 3,
	})
	if err != nil {
		t.Fatalf("repeat UpdateWidgetPosition: %v", err)
	}
	if same.PositionX != 4 || same.PositionY != 2 {
		t.Errorf("repeat write changed placement: %+v", same)
	}

	_, err = store.UpdateWidgetPosition(ctx, d.ID, WidgetLayout{WidgetID: 9999, PositionX: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateWidgetPosition(9999): err = %v, want ErrNotFound", err)
	}
}

func TestDeleteWidget(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Plant Overview")
	w, err := store.CreateWidget(d.ID, Widget{Type: model.WidgetGauge, Title: "Flow"})
	if err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}

	if err := store.DeleteWidget(d.ID, w.ID); err != nil {
		t.Fatalf("DeleteWidget: %v", err)
	}
	if err := store.DeleteWidget(d.ID, w.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteWidget again: err = %v, want ErrNotFound", err)
	}

	loaded, err := store.DashboardByID(d.ID)
	if err != nil {
		t.Fatalf("DashboardByID: %v", err)
	}
	if len(loaded.Widgets) != 0 {
		t.Errorf("widget count after delete = %d, want 0", len(loaded.Widgets))
	}
}

func TestCreateDashboardFromTemplate(t *testing.T) {
	store := newTestStore(t)

	d, err := store.CreateDashboardFromTemplate(model.DashboardTemplate{
		Name:        "Pump Room",
		Description: "imported",
		Widgets: []model.WidgetTemplate{
			{Type: model.WidgetLineChart, Title: "Pressure", DeviceID: "pump-1", Variable: "pressure",
				Aggregation: model.AggregationAvg, X: 0, Y: 0, Width: 8, Height: 4},
			{Type: model.WidgetGauge, Title: "Flow", DeviceID: "pump-1", Variable: "flow_rate"},
		},
	})
	if err != nil {
		t.Fatalf("CreateDashboardFromTemplate: %v", err)
	}
	if len(d.Widgets) != 2 {
		t.Fatalf("template widget count = %d, want 2", len(d.Widgets))
	}
	if d.Widgets[0].Width != 8 {
		t.Errorf("first widget width = %d, want 8", d.Widgets[0].Width)
	}
	// Second widget fell back to defaults.
	if d.Widgets[1].Width != model.DefaultWidgetWidth || d.Widgets[1].Aggregation != model.AggregationNone {
		t.Errorf("second widget = %+v, want defaults", d.Widgets[1])
	}
}

func TestTrashDashboardRestore(t *testing.T) {
	store := newTestStore(t)
	d := createTestDashboard(t, store, "Plant Overview")
	w1, err := store.CreateWidget(d.ID, Widget{Type: model.WidgetGauge, Title: "Flow"})
	if err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}
	w2, err := store.CreateWidget(d.ID, Widget{Type: model.WidgetGauge, Title: "Pressure", PositionY: 4})
	if err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}

	// ttl 0 means the entry never expires.
	if err := store.TrashDashboard(d.ID, 0); err != nil {
		t.Fatalf("TrashDashboard: %v", err)
	}
	if _, err := store.DashboardByID(d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DashboardByID after trash: err = %v, want ErrNotFound", err)
	}

	entries, err := store.ListTrash(EntityDashboard)
	if err != nil {
		t.Fatalf("ListTrash: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListTrash returned %d entries, want 1", len(entries))
	}
	if entries[0].ExpiresAt != nil {
		t.Errorf("ttl 0 entry has expiry %v, want none", entries[0].ExpiresAt)
	}
	if entries[0].Label != "Plant Overview" {
		t.Errorf("trash label = %q, want dashboard name", entries[0].Label)
	}

	if err := store.RestoreTrash(entries[0].ID); err != nil {
		t.Fatalf("RestoreTrash: %v", err)
	}

	restored, err := store.DashboardByID(d.ID)
	if err != nil {
		t.Fatalf("DashboardByID after restore: %v", err)
	}
	if len(restored.Widgets) != 2 {
		t.Fatalf("restored widget count = %d, want 2", len(restored.Widgets))
	}
	if restored.Widgets[0].ID != w1.ID || restored.Widgets[1].ID != w2.ID {
		t.Errorf("restored widget ids = [%d, %d], want [%d, %d]",
			restored.Widgets[0].ID, restored.Widgets[1].ID, w1.ID, w2.ID)
	}

	if err := store.TrashDashboard(9999, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("TrashDashboard(9999): err = %v, want ErrNotFound", err)
	}
}
