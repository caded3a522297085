package layout

import (
	"context"
	"sync"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// PositionWriter persists one widget's grid placement. A write whose values
// equal the stored ones must succeed.
type PositionWriter interface {
	UpdateWidgetPosition(ctx context.Context, dashboardID int64, layout model.WidgetLayout) (*model.Widget, error)
}

// Notifier receives save failures for display to the user. The debouncer
// reports each failed write once and does not retry it.
type Notifier interface {
	LayoutSaveFailed(dashboardID, widgetID int64, err error)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(dashboardID, widgetID int64, err error)

func (f NotifierFunc) LayoutSaveFailed(dashboardID, widgetID int64, err error) {
	f(dashboardID, widgetID, err)
}

// Config tunes a Debouncer. Zero values fall back to the defaults.
type Config struct {
	// Window is the quiet period that must elapse after the last layout
	// event before pending placements are written.
	Window time.Duration
	// WriteTimeout bounds each persistence call.
	WriteTimeout time.Duration
	// Notifier, when set, is told about failed writes.
	Notifier Notifier
	// FlushOnStop writes pending placements during Stop instead of
	// dropping them.
	FlushOnStop bool
}

const defaultWriteTimeout = 5 * time.Second

// Debouncer coalesces bursts of widget drag and resize events into one
// persistence call per widget per quiet period. Each dashboard has a single
// shared timer: any event on the dashboard restarts it, and when it expires
// every widget with a pending change is written once, using the placement
// known at fire time. Dashboards are independent of each other.
//
// Writes are optimistic. A failed write is reported through the Notifier and
// not retried; the next layout event for that widget starts a fresh cycle.
type Debouncer struct {
	writer       PositionWriter
	notifier     Notifier
	window       time.Duration
	writeTimeout time.Duration
	flushOnStop  bool

	mu     sync.Mutex
	boards map[int64]*board
	closed bool
	wg     sync.WaitGroup
}

// board is the pending state for one dashboard. known holds the last
// placement seen per widget, pending the placements awaiting a write. gen
// identifies the latest armed timer; a fire callback carrying an older gen
// was superseded and must do nothing.
type board struct {
	gen     uint64
	timer   *time.Timer
	known   map[int64]model.WidgetLayout
	pending map[int64]model.WidgetLayout
}

// NewDebouncer creates a debouncer writing through w.
func NewDebouncer(w PositionWriter, conf ...Config) *Debouncer {
	d := &Debouncer{
		writer:       w,
		window:       model.DefaultDebounceWindow,
		writeTimeout: defaultWriteTimeout,
		boards:       make(map[int64]*board),
	}
	if len(conf) > 0 {
		c := conf[0]
		if c.Window > 0 {
			d.window = c.Window
		}
		if c.WriteTimeout > 0 {
			d.writeTimeout = c.WriteTimeout
		}
		d.notifier = c.Notifier
		d.flushOnStop = c.FlushOnStop
	}
	return d
}

// Observe records one layout snapshot for a dashboard. Every entry that
// differs from the last known placement of its widget becomes pending, and
// the dashboard's quiet-period timer restarts. Entries equal to the last
// known placement are ignored, so a snapshot that changes nothing while
// nothing is pending schedules no write.
func (d *Debouncer) Observe(dashboardID int64, snapshot []model.WidgetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	b := d.boards[dashboardID]
	if b == nil {
		if len(snapshot) == 0 {
			return
		}
		b = &board{
			known:   make(map[int64]model.WidgetLayout),
			pending: make(map[int64]model.WidgetLayout),
		}
		d.boards[dashboardID] = b
	}

	for _, wl := range snapshot {
		if last, ok := b.known[wl.WidgetID]; ok && last == wl {
			continue
		}
		b.known[wl.WidgetID] = wl
		b.pending[wl.WidgetID] = wl
	}

	d.arm(dashboardID, b)
}

// arm restarts the dashboard's timer. Callers hold d.mu.
func (d *Debouncer) arm(dashboardID int64, b *board) {
	if b.timer != nil && b.timer.Stop() {
		// The superseded callback will never run.
		d.wg.Done()
	}
	b.gen++
	gen := b.gen
	d.wg.Add(1)
	b.timer = time.AfterFunc(d.window, func() { d.fire(dashboardID, gen) })
}

// fire runs when a dashboard's quiet period elapses. A stale gen means a
// newer event re-armed the timer after this callback was scheduled.
func (d *Debouncer) fire(dashboardID int64, gen uint64) {
	defer d.wg.Done()

	d.mu.Lock()
	b := d.boards[dashboardID]
	if b == nil || b.gen != gen {
		d.mu.Unlock()
		return
	}
	b.timer = nil
	pending := b.pending
	b.pending = make(map[int64]model.WidgetLayout)
	d.mu.Unlock()

	d.write(dashboardID, pending)
}

// write persists pending placements, one call per widget. Order across
// widgets is unspecified.
func (d *Debouncer) write(dashboardID int64, pending map[int64]model.WidgetLayout) {
	for _, wl := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
		_, err := d.writer.UpdateWidgetPosition(ctx, dashboardID, wl)
		cancel()
		if err != nil {
			saveFailuresTotal.Inc()
			if d.notifier != nil {
				d.notifier.LayoutSaveFailed(dashboardID, wl.WidgetID, err)
			}
			continue
		}
		savesTotal.Inc()
	}
}

// Flush writes a dashboard's pending placements immediately, cancelling its
// timer. Used when the editor navigates away before the quiet period ends.
func (d *Debouncer) Flush(dashboardID int64) {
	d.mu.Lock()
	b := d.boards[dashboardID]
	if b == nil || d.closed {
		d.mu.Unlock()
		return
	}
	if b.timer != nil {
		if b.timer.Stop() {
			d.wg.Done()
		}
		b.timer = nil
	}
	b.gen++
	pending := b.pending
	b.pending = make(map[int64]model.WidgetLayout)
	d.mu.Unlock()

	d.write(dashboardID, pending)
}

// Stop cancels all timers and waits for in-flight writes. With FlushOnStop
// set, pending placements are written before returning; otherwise they are
// dropped. Further calls are no-ops.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	type flush struct {
		dashboardID int64
		pending     map[int64]model.WidgetLayout
	}
	var flushes []flush
	for id, b := range d.boards {
		if b.timer != nil {
			if b.timer.Stop() {
				d.wg.Done()
			}
			b.timer = nil
		}
		b.gen++
		if d.flushOnStop && len(b.pending) > 0 {
			flushes = append(flushes, flush{id, b.pending})
		}
		b.pending = nil
	}
	d.boards = nil
	d.mu.Unlock()

	d.wg.Wait()
	for _, f := range flushes {
		d.write(f.dashboardID, f.pending)
	}
}
