package player

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/CodeFleck/sensorvision-sub002/internal/apiclient"
	"github.com/CodeFleck/sensorvision-sub002/internal/playlist"
)

var (
	colorTeal   = lipgloss.Color("#00D0A1")
	colorBar    = lipgloss.Color("#16213A")
	colorText   = lipgloss.Color("7")
	colorDim    = lipgloss.Color("8")
	colorErr    = lipgloss.Color("#FF4444")
	colorOK     = lipgloss.Color("#44FF44")
	colorWarn   = lipgloss.Color("#FFAA00")
	colorBorder = lipgloss.Color("#444444")
)

var (
	barStyle    = lipgloss.NewStyle().Background(colorBar).Foreground(colorText)
	barDimStyle = lipgloss.NewStyle().Background(colorBar).Foreground(colorDim)
	pausedStyle = lipgloss.NewStyle().Background(colorBar).Foreground(colorWarn).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorErr)
	cellStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// brandColors fade "SensorVision" from green into blue, one rune at a time.
var brandColors = []string{"#49E209", "#2ADB4D", "#0DD47B", "#00D0A1", "#00CAC7", "#00ADD8"}

// renderBrand renders the product name with a color fade across its runes.
func renderBrand() string {
	chars := []rune("SensorVision")
	var b strings.Builder
	for i, ch := range chars {
		color := brandColors[i*len(brandColors)/len(chars)]
		b.WriteString(lipgloss.NewStyle().
			Background(colorBar).
			Foreground(lipgloss.Color(color)).
			Bold(true).
			Render(string(ch)))
	}
	return b.String()
}

// View renders the player screen.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 || m.height <= 0 {
		return "Starting player..."
	}
	if m.err != nil {
		return m.renderError()
	}
	if !m.started || m.ctrl.Current() == nil {
		return m.renderLoading()
	}
	if m.ctrl.State() == playlist.StateFinished {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			dimStyle.Render("Playlist finished."))
	}
	if m.width < 60 || m.height < 16 {
		return "Terminal too small. Resize to at least 60x16."
	}

	header := m.renderHeader()
	grid := m.renderGrid(m.width, m.height-2)
	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, grid, footer)
}

// renderLoading renders an animated loading indicator. The frame is picked
// from the current time so it animates on re-render.
func (m *Model) renderLoading() string {
	frame := spinnerFrames[time.Now().UnixMilli()/120%int64(len(spinnerFrames))]
	text := dimStyle.Italic(true).Render(frame + " Loading playlist...")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, text)
}

func (m *Model) renderError() string {
	heading := errStyle.Render("Cannot play this playlist")
	body := lipgloss.NewStyle().Foreground(colorText).Render(errorMessage(m.err))
	hint := dimStyle.Render("press q to exit")
	block := lipgloss.JoinVertical(lipgloss.Center, heading, "", body, "", hint)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, block)
}

// errorMessage translates load failures into kiosk-friendly wording.
func errorMessage(err error) string {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, playlist.ErrEmptyPlaylist):
		return "This playlist has no items to display."
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusGone:
		return "The share link for this playlist has expired."
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		return "A dashboard in this playlist no longer exists."
	default:
		return err.Error()
	}
}

func (m *Model) renderHeader() string {
	dash := m.ctrl.Current()
	left := barStyle.Render(" ") + renderBrand() + barStyle.Render("  "+truncate(m.name, 24))
	pos := fmt.Sprintf("%d/%d", m.ctrl.Index()+1, m.ctrl.Len())
	right := barStyle.Render(truncate(dash.Name, 40)+"  ") + barDimStyle.Render(pos+" ")

	pad := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if pad < 1 {
		right = ""
		pad = max(1, m.width-lipgloss.Width(left))
	}
	return left + barStyle.Render(strings.Repeat(" ", pad)) + right
}

func (m *Model) renderFooter() string {
	var state string
	switch {
	case m.parked():
		state = pausedStyle.Render(" END OF PLAYLIST ")
	case m.ctrl.State() == playlist.StatePaused:
		state = pausedStyle.Render(" PAUSED ")
	default:
		state = barStyle.Render(fmt.Sprintf(" next in %ds ", m.ctrl.Remaining()))
	}

	dots := m.progressDots()
	help := barDimStyle.Render("space pause  ←/→ navigate  q quit ")

	pad := m.width - lipgloss.Width(state) - lipgloss.Width(dots) - lipgloss.Width(help) - 2
	if pad < 2 {
		help = ""
		pad = max(2, m.width-lipgloss.Width(state)-lipgloss.Width(dots)-2)
	}
	half := pad / 2
	return state +
		barStyle.Render(strings.Repeat(" ", half+1)) +
		dots +
		barStyle.Render(strings.Repeat(" ", pad-half+1)) +
		help
}

// parked reports whether a non-looping rotation ran off its end. The
// countdown only ever reads zero in that parked state; user pauses freeze
// it at one or above.
func (m *Model) parked() bool {
	return m.ctrl.State() == playlist.StatePaused && m.ctrl.Remaining() == 0
}

// progressDots marks the playlist position, falling back to numbers when
// the dots would crowd the footer.
func (m *Model) progressDots() string {
	n := m.ctrl.Len()
	if n > 12 {
		return barDimStyle.Render(fmt.Sprintf("%d/%d", m.ctrl.Index()+1, n))
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i == m.ctrl.Index() {
			b.WriteString(barStyle.Foreground(colorTeal).Render("●"))
		} else {
			b.WriteString(barDimStyle.Render("○"))
		}
	}
	return b.String()
}

// renderGrid lays the current dashboard's widgets into a column grid in
// reading order.
func (m *Model) renderGrid(width, height int) string {
	dash := m.ctrl.Current()
	widgets := sortedWidgets(dash.Widgets)
	if len(widgets) == 0 {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			dimStyle.Render("This dashboard has no widgets."))
	}

	cols := 2
	if width < 100 || len(widgets) == 1 {
		cols = 1
	}
	rows := (len(widgets) + cols - 1) / cols

	cellW := (width - (cols - 1)) / cols
	cellH := height / rows
	if cellH < 6 {
		cellH = 6
	}

	var rendered []string
	for r := 0; r < rows; r++ {
		var cells []string
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if i >= len(widgets) {
				break
			}
			if c > 0 {
				cells = append(cells, " ")
			}
			cells = append(cells, m.renderWidgetCell(widgets[i], cellW, cellH))
		}
		rendered = append(rendered, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	grid := lipgloss.JoinVertical(lipgloss.Left, rendered...)
	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top,
		lipgloss.NewStyle().MaxHeight(height).Render(grid))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit < 1 {
		return ""
	}
	return string(r[:limit-1]) + "…"
}
