package httpserver

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

func createDashboard(t *testing.T, env *testEnv, name string) *model.Dashboard {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/dashboards",
		map[string]string{"name": name, "description": "test dashboard"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create dashboard status = %d, want %d; body %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var d model.Dashboard
	decodeBody(t, w, &d)
	return &d
}

func createWidget(t *testing.T, env *testEnv, dashboardID int64, widgetType, title string) *model.Widget {
	t.Helper()
	path := "/api/v1/dashboards/" + strconv.FormatInt(dashboardID, 10) + "/widgets"
	w := env.do(t, http.MethodPost, path, map[string]interface{}{
		"type":     widgetType,
		"title":    title,
		"deviceId": "pump-1",
		"variable": "temperature",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create widget status = %d, want %d; body %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var created model.Widget
	decodeBody(t, w, &created)
	return &created
}

func TestDashboardCRUD(t *testing.T) {
	env := newTestEnv(t)

	d := createDashboard(t, env, "Coolant Loop")
	if d.ID == 0 {
		t.Fatal("created dashboard has no id")
	}

	w := env.do(t, http.MethodGet, "/api/v1/dashboards/"+strconv.FormatInt(d.ID, 10), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get dashboard status = %d, want %d", w.Code, http.StatusOK)
	}

	w = env.do(t, http.MethodPut, "/api/v1/dashboards/"+strconv.FormatInt(d.ID, 10),
		map[string]string{"name": "Coolant Loop B", "description": "renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update dashboard status = %d, want %d", w.Code, http.StatusOK)
	}
	var updated model.Dashboard
	decodeBody(t, w, &updated)
	if updated.Name != "Coolant Loop B" {
		t.Errorf("updated name = %q, want Coolant Loop B", updated.Name)
	}

	w = env.do(t, http.MethodGet, "/api/v1/dashboards", nil)
	var list []model.Dashboard
	decodeBody(t, w, &list)
	if len(list) != 1 {
		t.Errorf("dashboards listed = %d, want 1", len(list))
	}
}

func TestCreateDashboardRequiresName(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/dashboards", `{"description": "no name"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("create status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeleteDashboardMovesToTrash(t *testing.T) {
	env := newTestEnv(t)
	d := createDashboard(t, env, "Doomed")

	w := env.do(t, http.MethodDelete, "/api/v1/dashboards/"+strconv.FormatInt(d.ID, 10), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = env.do(t, http.MethodGet, "/api/v1/dashboards/"+strconv.FormatInt(d.ID, 10), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = env.do(t, http.MethodGet, "/api/v1/admin/trash?type=dashboard", nil)
	var entries []model.TrashEntry
	decodeBody(t, w, &entries)
	if len(entries) != 1 || entries[0].EntityID != d.ID {
		t.Fatalf("trash entries = %+v, want one entry for dashboard %d", entries, d.ID)
	}
}

func TestWidgetCreateAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	d := createDashboard(t, env, "Grid")

	widget := createWidget(t, env, d.ID, model.WidgetLineChart, "Temperature")
	if widget.Width != model.DefaultWidgetWidth || widget.Height != model.DefaultWidgetHeight {
		t.Errorf("widget size = %dx%d, want %dx%d",
			widget.Width, widget.Height, model.DefaultWidgetWidth, model.DefaultWidgetHeight)
	}
	if widget.Aggregation != model.AggregationNone {
		t.Errorf("aggregation = %q, want %q", widget.Aggregation, model.AggregationNone)
	}
	if widget.TimeRangeMinutes != model.DefaultWidgetTimeRangeMinutes {
		t.Errorf("time range = %d, want %d", widget.TimeRangeMinutes, model.DefaultWidgetTimeRangeMinutes)
	}
}

func TestWidgetCreateRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	d := createDashboard(t, env, "Grid")

	path := "/api/v1/dashboards/" + strconv.FormatInt(d.ID, 10) + "/widgets"
	w := env.do(t, http.MethodPost, path, map[string]string{"type": "PIE_CHART", "title": "Nope"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestWidgetPartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	d := createDashboard(t, env, "Grid")
	widget := createWidget(t, env, d.ID, model.WidgetGauge, "Pressure")

	path := "/api/v1/dashboards/" + strconv.FormatInt(d.ID, 10) +
		"/widgets/" + strconv.FormatInt(widget.ID, 10)
	w := env.do(t, http.MethodPut, path, `{"title": "Inlet Pressure"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update widget status = %d, want %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var updated model.Widget
	decodeBody(t, w, &updated)
	if updated.Title != "Inlet Pressure" {
		t.Errorf("title = %q, want Inlet Pressure", updated.Title)
	}
	if updated.Type != model.WidgetGauge || updated.DeviceID != widget.DeviceID {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

func TestLayoutSnapshotDebouncesToStore(t *testing.T) {
	env := newTestEnv(t)
	d := createDashboard(t, env, "Grid")
	widget := createWidget(t, env, d.ID, model.WidgetLineChart, "Temperature")

	path := "/api/v1/dashboards/" + strconv.FormatInt(d.ID, 10) + "/layout"
	for x := 1; x <= 3; x++ {
		w := env.do(t, http.MethodPut, path, []model.WidgetLayout{
			{WidgetID: widget.ID, PositionX: x, PositionY: 2, Width: 6, Height: 3},
		})
		if w.Code != http.StatusAccepted {
			t.Fatalf("layout status = %d, want %d; body %s", w.Code, http.StatusAccepted, w.Body.String())
		}
	}

	// The burst coalesces into one write carrying the last placement.
	deadline := time.Now().Add(2 * time.Second)
	for {
		fresh, err := env.store.DashboardByID(d.ID)
		if err != nil {
			t.Fatalf("DashboardByID: %v", err)
		}
		if len(fresh.Widgets) == 1 && fresh.Widgets[0].PositionX == 3 {
			if fresh.Widgets[0].Width != 6 || fresh.Widgets[0].Height != 3 {
				t.Errorf("written size = %dx%d, want 6x3", fresh.Widgets[0].Width, fresh.Widgets[0].Height)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("layout write never landed; widgets = %+v", fresh.Widgets)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLayoutSnapshotValidation(t *testing.T) {
	env := newTestEnv(t)
	d := createDashboard(t, env, "Grid")

	path := "/api/v1/dashboards/" + strconv.FormatInt(d.ID, 10) + "/layout"
	w := env.do(t, http.MethodPut, path, `{"widgetId": 1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-array body status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = env.do(t, http.MethodPut, "/api/v1/dashboards/9999/layout", `[]`)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing dashboard status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDashboardTemplateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	d := createDashboard(t, env, "Pump Station")
	createWidget(t, env, d.ID, model.WidgetLineChart, "Temperature")
	createWidget(t, env, d.ID, model.WidgetGauge, "Pressure")

	w := env.do(t, http.MethodGet, "/api/v1/dashboards/"+strconv.FormatInt(d.ID, 10)+"/template", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d, want %d", w.Code, http.StatusOK)
	}
	var template model.DashboardTemplate
	if err := yaml.Unmarshal(w.Body.Bytes(), &template); err != nil {
		t.Fatalf("unmarshal exported template: %v", err)
	}
	if template.Name != "Pump Station" || len(template.Widgets) != 2 {
		t.Fatalf("template = %+v, want Pump Station with 2 widgets", template)
	}

	template.Name = "Pump Station Copy"
	raw, err := yaml.Marshal(template)
	if err != nil {
		t.Fatalf("marshal template: %v", err)
	}
	w = env.do(t, http.MethodPost, "/api/v1/templates/apply", string(raw))
	if w.Code != http.StatusCreated {
		t.Fatalf("apply status = %d, want %d; body %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var applied model.Dashboard
	decodeBody(t, w, &applied)
	if applied.ID == d.ID {
		t.Error("applied template reused the source dashboard id")
	}
	if applied.Name != "Pump Station Copy" || len(applied.Widgets) != 2 {
		t.Errorf("applied = %+v, want Pump Station Copy with 2 widgets", applied)
	}
}

func TestApplyTemplateRejectsUnknownWidgetType(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/templates/apply",
		"name: Broken\nwidgets:\n  - type: HOLOGRAM\n    title: Nope\n")
	if w.Code != http.StatusBadRequest {
		t.Errorf("apply status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
