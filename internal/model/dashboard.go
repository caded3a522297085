package model

import "time"

// Widget types rendered on dashboards and by the kiosk player.
const (
	WidgetLineChart     = "LINE_CHART"
	WidgetBarChart      = "BAR_CHART"
	WidgetGauge         = "GAUGE"
	WidgetMetricCard    = "METRIC_CARD"
	WidgetIndicator     = "INDICATOR"
	WidgetMap           = "MAP"
	WidgetTable         = "TABLE"
	WidgetControlButton = "CONTROL_BUTTON"
)

// Aggregations applied to a widget's variable before display.
const (
	AggregationNone  = "NONE"
	AggregationAvg   = "AVG"
	AggregationMin   = "MIN"
	AggregationMax   = "MAX"
	AggregationSum   = "SUM"
	AggregationCount = "COUNT"
)

// ValidWidgetType reports whether t is one of the supported widget types.
func ValidWidgetType(t string) bool {
	switch t {
	case WidgetLineChart, WidgetBarChart, WidgetGauge, WidgetMetricCard,
		WidgetIndicator, WidgetMap, WidgetTable, WidgetControlButton:
		return true
	}
	return false
}

// ValidAggregation reports whether a is one of the supported aggregations.
func ValidAggregation(a string) bool {
	switch a {
	case AggregationNone, AggregationAvg, AggregationMin, AggregationMax,
		AggregationSum, AggregationCount:
		return true
	}
	return false
}

// Dashboard is a named arrangement of widgets.
type Dashboard struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Widgets     []Widget  `json:"widgets,omitempty"`
}

// Widget is one visualization cell on a dashboard grid.
// Position defaults to (0,0) and size to 4x4 cells when not given.
// TimeRangeMinutes is how far back the widget's series query reaches.
type Widget struct {
	ID               int64     `json:"id"`
	DashboardID      int64     `json:"dashboardId"`
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	DeviceID         string    `json:"deviceId,omitempty"`
	Variable         string    `json:"variable,omitempty"`
	Aggregation      string    `json:"aggregation"`
	TimeRangeMinutes int       `json:"timeRangeMinutes"`
	PositionX        int       `json:"positionX"`
	PositionY        int       `json:"positionY"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// WidgetLayout carries only the placement of one widget. It is the unit the
// layout debouncer coalesces and writes.
type WidgetLayout struct {
	WidgetID  int64 `json:"widgetId"`
	PositionX int   `json:"positionX"`
	PositionY int   `json:"positionY"`
	Width     int   `json:"width"`
	Height    int   `json:"height"`
}

// WidgetUpdate is a partial widget change. Nil fields are left unchanged.
// Applying an update where every field is nil (or equals the stored value)
// succeeds and touches only updated_at.
type WidgetUpdate struct {
	Type             *string `json:"type,omitempty"`
	Title            *string `json:"title,omitempty"`
	DeviceID         *string `json:"deviceId,omitempty"`
	Variable         *string `json:"variable,omitempty"`
	Aggregation      *string `json:"aggregation,omitempty"`
	TimeRangeMinutes *int    `json:"timeRangeMinutes,omitempty"`
	PositionX        *int    `json:"positionX,omitempty"`
	PositionY        *int    `json:"positionY,omitempty"`
	Width            *int    `json:"width,omitempty"`
	Height           *int    `json:"height,omitempty"`
}

// DashboardTemplate is the YAML document exchanged by dashboard
// export/import.
type DashboardTemplate struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Widgets     []WidgetTemplate `yaml:"widgets"`
}

// WidgetTemplate is the YAML shape of one widget inside a template.
type WidgetTemplate struct {
	Type             string `yaml:"type"`
	Title            string `yaml:"title"`
	DeviceID         string `yaml:"deviceId,omitempty"`
	Variable         string `yaml:"variable,omitempty"`
	Aggregation      string `yaml:"aggregation,omitempty"`
	TimeRangeMinutes int    `yaml:"timeRangeMinutes,omitempty"`
	X                int    `yaml:"x"`
	Y                int    `yaml:"y"`
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
}
