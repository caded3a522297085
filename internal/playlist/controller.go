package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// ErrEmptyPlaylist is reported when a playlist has no items to display.
var ErrEmptyPlaylist = errors.New("playlist: no items to display")

// State is the controller's position in its lifecycle.
type State int

const (
	StateLoading State = iota
	StateDisplaying
	StatePaused
	StateError
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateDisplaying:
		return "displaying"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// DashboardFetcher loads the dashboard a playlist item points at.
type DashboardFetcher interface {
	DashboardByID(ctx context.Context, id int64) (*model.Dashboard, error)
}

// Controller cycles through a playlist's dashboards, showing each for its
// configured duration. The host owns the clock: it calls Tick once per
// second, and the controller advances when the current item's countdown
// reaches zero, wrapping to the start when the playlist loops and parking
// on the last item otherwise.
//
// A Controller is not safe for concurrent use. The host event loop must
// serialize calls.
type Controller struct {
	fetcher DashboardFetcher
	items   []model.PlaylistItem
	loop    bool

	state     State
	index     int
	remaining int
	current   *model.Dashboard
	err       error
}

// NewController creates a controller over items in their given order.
func NewController(fetcher DashboardFetcher, items []model.PlaylistItem, loop bool) *Controller {
	return &Controller{
		fetcher: fetcher,
		items:   items,
		loop:    loop,
		state:   StateLoading,
	}
}

// Start loads the first item's dashboard and begins the countdown. An empty
// playlist is its own error, distinct from a failed load.
func (c *Controller) Start(ctx context.Context) error {
	if c.state != StateLoading {
		return nil
	}
	if len(c.items) == 0 {
		c.state = StateError
		c.err = ErrEmptyPlaylist
		return c.err
	}
	return c.goTo(ctx, 0)
}

// Tick advances the countdown by one second. Ticks arriving while the
// controller is not displaying do nothing, so the host may keep its timer
// running across pauses.
func (c *Controller) Tick(ctx context.Context) error {
	if c.state != StateDisplaying {
		return nil
	}
	c.remaining--
	if c.remaining > 0 {
		return nil
	}

	next := c.index + 1
	switch {
	case next < len(c.items):
		return c.goTo(ctx, next)
	case c.loop:
		return c.goTo(ctx, 0)
	default:
		// End of a non-looping playlist: park on the last item.
		c.state = StatePaused
		c.remaining = 0
		return nil
	}
}

// Next moves to the following item, wrapping to the first when looping and
// parking on the last otherwise. The countdown resets to the target item's
// duration. A paused controller stays paused.
func (c *Controller) Next(ctx context.Context) error {
	if c.state != StateDisplaying && c.state != StatePaused {
		return nil
	}
	next := c.index + 1
	if next >= len(c.items) {
		if c.loop {
			next = 0
		} else {
			next = len(c.items) - 1
		}
	}
	return c.goTo(ctx, next)
}

// Previous moves to the preceding item, wrapping to the last when looping
// and parking on the first otherwise. The countdown resets to the target
// item's duration. A paused controller stays paused.
func (c *Controller) Previous(ctx context.Context) error {
	if c.state != StateDisplaying && c.state != StatePaused {
		return nil
	}
	prev := c.index - 1
	if prev < 0 {
		if c.loop {
			prev = len(c.items) - 1
		} else {
			prev = 0
		}
	}
	return c.goTo(ctx, prev)
}

// Pause freezes the countdown in place.
func (c *Controller) Pause() {
	if c.state == StateDisplaying {
		c.state = StatePaused
	}
}

// Resume continues the countdown from exactly where Pause froze it.
func (c *Controller) Resume() {
	if c.state == StatePaused {
		c.state = StateDisplaying
	}
}

// Stop ends the session. A finished controller ignores every other call.
func (c *Controller) Stop() {
	c.state = StateFinished
}

// goTo displays the item at index. The countdown resets to the item's
// duration; the paused flag survives navigation.
func (c *Controller) goTo(ctx context.Context, index int) error {
	item := c.items[index]
	dash, err := c.fetcher.DashboardByID(ctx, item.DashboardID)
	if err != nil {
		c.state = StateError
		c.err = fmt.Errorf("playlist: load dashboard %d: %w", item.DashboardID, err)
		return c.err
	}
	c.index = index
	c.remaining = item.DurationSeconds
	c.current = dash
	if c.state != StatePaused {
		c.state = StateDisplaying
	}
	return nil
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State { return c.state }

// Index returns the position of the item being displayed.
func (c *Controller) Index() int { return c.index }

// Remaining returns the seconds left before the next automatic advance.
func (c *Controller) Remaining() int { return c.remaining }

// Current returns the dashboard being displayed, nil before the first load.
func (c *Controller) Current() *model.Dashboard { return c.current }

// Item returns the playlist item being displayed.
func (c *Controller) Item() model.PlaylistItem {
	if len(c.items) == 0 {
		return model.PlaylistItem{}
	}
	return c.items[c.index]
}

// Len returns the number of items in the playlist.
func (c *Controller) Len() int { return len(c.items) }

// Err returns the error that moved the controller into StateError.
func (c *Controller) Err() error { return c.err }
