// Package player is the kiosk playlist player: a single-page bubbletea
// program that owns a playlist controller and renders the current
// dashboard's widgets as terminal charts.
package player

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/CodeFleck/sensorvision-sub002/internal/apiclient"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/playlist"
)

const (
	tickEvery    = time.Second
	spinEvery    = 120 * time.Millisecond
	refreshEvery = 15 * time.Second
	fetchTimeout = 10 * time.Second
)

// DataSource is everything the player needs from the server: dashboards for
// the controller and telemetry for the widget cells.
type DataSource interface {
	playlist.DashboardFetcher
	DeviceTelemetrySeries(ctx context.Context, deviceID string, q apiclient.SeriesQuery) ([]model.SeriesPoint, error)
	DeviceLatest(ctx context.Context, deviceID, variable string) (apiclient.LatestValue, error)
}

// Source adapts the REST client to the DataSource interface.
type Source struct {
	c *apiclient.Client
}

// NewSource wraps an API client for use by the player.
func NewSource(c *apiclient.Client) Source { return Source{c: c} }

func (s Source) DashboardByID(ctx context.Context, id int64) (*model.Dashboard, error) {
	d, err := s.c.DashboardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s Source) DeviceTelemetrySeries(ctx context.Context, deviceID string, q apiclient.SeriesQuery) ([]model.SeriesPoint, error) {
	return s.c.DeviceTelemetrySeries(ctx, deviceID, q)
}

func (s Source) DeviceLatest(ctx context.Context, deviceID, variable string) (apiclient.LatestValue, error) {
	return s.c.DeviceLatest(ctx, deviceID, variable)
}

// widgetData is the fetched content behind one widget cell.
type widgetData struct {
	points []model.SeriesPoint
	latest apiclient.LatestValue
	err    error
}

// tickMsg drives the one-second countdown.
type tickMsg time.Time

// spinMsg re-renders the loading spinner while the first dashboard loads.
type spinMsg struct{}

// startedMsg reports the controller's initial load.
type startedMsg struct{ err error }

// widgetDataMsg carries fetched widget content. seq identifies the dashboard
// generation the fetch was started for; stale generations are dropped.
type widgetDataMsg struct {
	seq  int
	data map[int64]widgetData
}

// Model is the kiosk player page. All controller access happens on the
// update loop; the only concurrent call is the initial Start, which is
// gated by the started flag.
type Model struct {
	source DataSource
	ctrl   *playlist.Controller
	name   string
	keys   KeyMap

	width  int
	height int

	started  bool
	quitting bool
	err      error

	data      map[int64]widgetData
	fetchSeq  int
	lastFetch time.Time
}

// New builds a player over an already-resolved playlist. Item durations are
// clamped to at least one second so a bad item cannot stall the rotation.
func New(source DataSource, pl model.Playlist) *Model {
	items := make([]model.PlaylistItem, len(pl.Items))
	copy(items, pl.Items)
	for i := range items {
		if items[i].DurationSeconds < 1 {
			items[i].DurationSeconds = 1
		}
	}
	return &Model{
		source: source,
		ctrl:   playlist.NewController(source, items, pl.LoopEnabled),
		name:   pl.Name,
		keys:   DefaultKeyMap(),
		data:   map[int64]widgetData{},
	}
}

// Init starts the countdown clock and loads the first dashboard.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd(), tick(), spin())
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func spin() tea.Cmd {
	return tea.Tick(spinEvery, func(time.Time) tea.Msg { return spinMsg{} })
}

// startCmd loads the first playlist item off the update loop.
func (m *Model) startCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return startedMsg{err: ctrl.Start(ctx)}
	}
}

// controllerCall runs one controller transition with a bounded context.
func (m *Model) controllerCall(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	return fn(ctx)
}

// refreshWidgetData fetches series and latest values for every widget on
// the current dashboard. Results landing after the player moved on carry a
// stale sequence number and are discarded on arrival.
func (m *Model) refreshWidgetData() tea.Cmd {
	m.lastFetch = time.Now()
	dash := m.ctrl.Current()
	if dash == nil || len(dash.Widgets) == 0 {
		return nil
	}
	seq := m.fetchSeq
	source := m.source
	widgets := append([]model.Widget(nil), dash.Widgets...)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		data := make(map[int64]widgetData, len(widgets))
		for _, w := range widgets {
			data[w.ID] = fetchWidget(ctx, source, w)
		}
		return widgetDataMsg{seq: seq, data: data}
	}
}

// fetchWidget pulls what the widget type needs: a series for charts and
// tables, the latest value for single-value cards. Map and control widgets
// have no terminal rendering and fetch nothing.
func fetchWidget(ctx context.Context, source DataSource, w model.Widget) widgetData {
	switch w.Type {
	case model.WidgetLineChart, model.WidgetBarChart, model.WidgetTable:
		minutes := w.TimeRangeMinutes
		if minutes <= 0 {
			minutes = 60
		}
		agg := w.Aggregation
		if agg == model.AggregationNone {
			agg = ""
		}
		now := time.Now()
		points, err := source.DeviceTelemetrySeries(ctx, w.DeviceID, apiclient.SeriesQuery{
			Variable:    w.Variable,
			From:        now.Add(-time.Duration(minutes) * time.Minute),
			To:          now,
			Aggregation: agg,
		})
		return widgetData{points: points, err: err}
	case model.WidgetGauge, model.WidgetMetricCard, model.WidgetIndicator:
		latest, err := source.DeviceLatest(ctx, w.DeviceID, w.Variable)
		return widgetData{latest: latest, err: err}
	default:
		return widgetData{}
	}
}
