package player

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/CodeFleck/sensorvision-sub002/internal/apiclient"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

var (
	axisStyle     = lipgloss.NewStyle().Foreground(colorDim)
	labelStyle    = lipgloss.NewStyle().Foreground(colorDim)
	seriesStyle   = lipgloss.NewStyle().Foreground(colorTeal)
	chartBarStyle = lipgloss.NewStyle().Foreground(colorTeal).Background(colorTeal)
	valueStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	onStyle       = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	offStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorDim)
)

// sortedWidgets orders widgets into reading order, top row first.
func sortedWidgets(ws []model.Widget) []model.Widget {
	out := append([]model.Widget(nil), ws...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PositionY != out[j].PositionY {
			return out[i].PositionY < out[j].PositionY
		}
		return out[i].PositionX < out[j].PositionX
	})
	return out
}

// renderWidgetCell renders one bordered widget box.
func (m *Model) renderWidgetCell(w model.Widget, width, height int) string {
	innerW := width - 2
	innerH := height - 3 // border rows plus the title line
	if innerW < 10 {
		innerW = 10
	}
	if innerH < 3 {
		innerH = 3
	}

	title := titleStyle.Render(truncate(widgetTitle(w), innerW))
	body := m.renderWidgetBody(w, innerW, innerH)
	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	return cellStyle.Width(innerW).Height(innerH + 1).Render(content)
}

func widgetTitle(w model.Widget) string {
	if w.Title != "" {
		return w.Title
	}
	if w.DeviceID != "" && w.Variable != "" {
		return w.DeviceID + " " + w.Variable
	}
	return strings.ToLower(strings.ReplaceAll(w.Type, "_", " "))
}

func (m *Model) renderWidgetBody(w model.Widget, width, height int) string {
	d, ok := m.data[w.ID]
	if !ok {
		return placeCentered(width, height, dimStyle.Render("loading..."))
	}
	if d.err != nil {
		return placeCentered(width, height, dimStyle.Render("data unavailable"))
	}
	switch w.Type {
	case model.WidgetLineChart:
		return renderLineChart(d.points, width, height)
	case model.WidgetBarChart:
		return renderBarChart(d.points, width, height)
	case model.WidgetTable:
		return renderValueTable(w, d.points, width, height)
	case model.WidgetGauge:
		return renderGauge(w, d.latest, width, height)
	case model.WidgetMetricCard:
		return renderMetricCard(w, d.latest, width, height)
	case model.WidgetIndicator:
		return renderIndicator(w, d.latest, width, height)
	default:
		return placeCentered(width, height, dimStyle.Render("not shown on terminal displays"))
	}
}

func renderLineChart(points []model.SeriesPoint, width, height int) string {
	if len(points) == 0 {
		return placeCentered(width, height, dimStyle.Render("no data"))
	}
	chart := timeserieslinechart.New(width, height)
	chart.AxisStyle = axisStyle
	chart.LabelStyle = labelStyle
	chart.XLabelFormatter = timeserieslinechart.HourTimeLabelFormatter()
	chart.SetStyle(seriesStyle)
	for _, p := range points {
		chart.Push(timeserieslinechart.TimePoint{Time: p.Timestamp, Value: p.Value})
	}
	chart.DrawBraille()
	return chart.View()
}

func renderBarChart(points []model.SeriesPoint, width, height int) string {
	if len(points) == 0 {
		return placeCentered(width, height, dimStyle.Render("no data"))
	}

	const barWidth, barGap = 3, 1
	fit := width / (barWidth + barGap)
	if fit < 1 {
		fit = 1
	}
	if len(points) > fit {
		points = points[len(points)-fit:]
	}

	peak := points[0].Value
	for _, p := range points {
		if p.Value > peak {
			peak = p.Value
		}
	}

	bc := barchart.New(width, height-1,
		barchart.WithBarGap(barGap),
		barchart.WithBarWidth(barWidth),
		barchart.WithNoAxis())
	for _, p := range points {
		bc.Push(barchart.BarData{
			Label: p.Timestamp.Local().Format("15:04"),
			Values: []barchart.BarValue{
				{Name: "value", Value: p.Value, Style: chartBarStyle},
			},
		})
	}
	bc.Draw()

	last := points[len(points)-1]
	legend := dimStyle.Render(
		"last " + formatValue(last.Value) + "  peak " + formatValue(peak))
	return lipgloss.JoinVertical(lipgloss.Left, bc.View(), legend)
}

func renderValueTable(w model.Widget, points []model.SeriesPoint, width, height int) string {
	if len(points) == 0 {
		return placeCentered(width, height, dimStyle.Render("no data"))
	}

	rows := height - 4
	if rows < 1 {
		rows = 1
	}
	if len(points) > rows {
		points = points[len(points)-rows:]
	}

	header := w.Variable
	if header == "" {
		header = "value"
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("TIME", strings.ToUpper(header))
	// Newest first.
	for i := len(points) - 1; i >= 0; i-- {
		t.Row(points[i].Timestamp.Local().Format("15:04:05"), formatValue(points[i].Value))
	}
	return t.String()
}

// renderGauge assumes a 0-100 scale; values outside it pin the bar.
func renderGauge(w model.Widget, v apiclient.LatestValue, width, height int) string {
	if v.Timestamp.IsZero() {
		return placeCentered(width, height, dimStyle.Render("no data"))
	}

	frac := v.Value / 100
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	barW := width - 4
	if barW < 10 {
		barW = 10
	}
	filled := int(frac*float64(barW) + 0.5)
	bar := seriesStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", barW-filled))

	value := valueStyle.Render(formatValue(v.Value))
	caption := dimStyle.Render(w.Variable + "  " + v.Timestamp.Local().Format("15:04:05"))
	block := lipgloss.JoinVertical(lipgloss.Center, value, bar, caption)
	return placeCentered(width, height, block)
}

func renderMetricCard(w model.Widget, v apiclient.LatestValue, width, height int) string {
	if v.Timestamp.IsZero() {
		return placeCentered(width, height, dimStyle.Render("no data"))
	}
	value := valueStyle.Render(formatValue(v.Value))
	label := dimStyle.Render(w.Variable)
	asOf := dimStyle.Render("as of " + v.Timestamp.Local().Format("15:04:05"))
	return placeCentered(width, height, lipgloss.JoinVertical(lipgloss.Center, value, label, asOf))
}

// renderIndicator shows on/off from the latest value: nonzero is on.
func renderIndicator(w model.Widget, v apiclient.LatestValue, width, height int) string {
	if v.Timestamp.IsZero() {
		return placeCentered(width, height, dimStyle.Render("no data"))
	}
	dot, label := offStyle.Render("○"), "OFF"
	if v.Value != 0 {
		dot, label = onStyle.Render("●"), "ON"
	}
	line := dot + " " + valueStyle.Render(label)
	return placeCentered(width, height,
		lipgloss.JoinVertical(lipgloss.Center, line, dimStyle.Render(w.Variable)))
}

func placeCentered(width, height int, content string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// formatValue trims telemetry floats for display. Whole numbers drop the
// decimal part entirely.
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e9 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
