package playlist

import (
	"context"
	"errors"
	"testing"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

type fakeFetcher struct {
	calls []int64
	fail  map[int64]error
}

func (f *fakeFetcher) DashboardByID(ctx context.Context, id int64) (*model.Dashboard, error) {
	f.calls = append(f.calls, id)
	if err := f.fail[id]; err != nil {
		return nil, err
	}
	return &model.Dashboard{ID: id}, nil
}

func testItems() []model.PlaylistItem {
	return []model.PlaylistItem{
		{DashboardID: 101, DurationSeconds: 5},
		{DashboardID: 102, DurationSeconds: 3},
	}
}

func tick(t *testing.T, c *Controller, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
}

func TestControllerStart(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), true)

	if c.State() != StateLoading {
		t.Fatalf("initial state = %v, want loading", c.State())
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != StateDisplaying || c.Index() != 0 || c.Remaining() != 5 {
		t.Errorf("after start: %v index %d remaining %d, want displaying 0 5",
			c.State(), c.Index(), c.Remaining())
	}
	if c.Current() == nil || c.Current().ID != 101 {
		t.Errorf("current = %+v, want dashboard 101", c.Current())
	}
}

func TestControllerStartEmpty(t *testing.T) {
	c := NewController(&fakeFetcher{}, nil, true)

	err := c.Start(context.Background())
	if !errors.Is(err, ErrEmptyPlaylist) {
		t.Fatalf("Start on empty playlist: err = %v, want ErrEmptyPlaylist", err)
	}
	if c.State() != StateError {
		t.Errorf("state = %v, want error", c.State())
	}
}

func TestControllerStartFetchFailure(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeFetcher{fail: map[int64]error{101: boom}}
	c := NewController(f, testItems(), true)

	err := c.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start: err = %v, want wrapped fetch failure", err)
	}
	if c.State() != StateError || !errors.Is(c.Err(), boom) {
		t.Errorf("state = %v err = %v, want error state carrying the failure", c.State(), c.Err())
	}
}

func TestControllerAutoAdvanceLoops(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), true)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tick(t, c, 4)
	if c.Index() != 0 || c.Remaining() != 1 {
		t.Fatalf("after 4 ticks: index %d remaining %d, want 0 1", c.Index(), c.Remaining())
	}

	// The fifth second exhausts item A and advances to B.
	tick(t, c, 1)
	if c.Index() != 1 || c.Remaining() != 3 || c.Current().ID != 102 {
		t.Fatalf("after 5 ticks: index %d remaining %d current %v, want item B",
			c.Index(), c.Remaining(), c.Current())
	}

	// Three more exhaust B and wrap back to A.
	tick(t, c, 3)
	if c.Index() != 0 || c.Remaining() != 5 || c.Current().ID != 101 {
		t.Fatalf("after wrap: index %d remaining %d, want item A with full countdown",
			c.Index(), c.Remaining())
	}

	want := []int64{101, 102, 101}
	if len(f.calls) != len(want) {
		t.Fatalf("fetch calls = %v, want %v", f.calls, want)
	}
	for i, id := range want {
		if f.calls[i] != id {
			t.Errorf("fetch call %d = %d, want %d", i, f.calls[i], id)
		}
	}
}

func TestControllerEndOfListParks(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), false)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tick(t, c, 5)
	if c.Index() != 1 {
		t.Fatalf("after item A: index = %d, want 1", c.Index())
	}
	tick(t, c, 3)
	if c.State() != StatePaused || c.Index() != 1 || c.Remaining() != 0 {
		t.Fatalf("at end: %v index %d remaining %d, want paused on last item",
			c.State(), c.Index(), c.Remaining())
	}

	// Further ticks change nothing.
	tick(t, c, 5)
	if c.State() != StatePaused || c.Index() != 1 {
		t.Errorf("after extra ticks: %v index %d, want still parked", c.State(), c.Index())
	}
}

func TestControllerManualNavigation(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), false)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tick(t, c, 2)

	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if c.Index() != 1 || c.Remaining() != 3 || c.State() != StateDisplaying {
		t.Errorf("after next: index %d remaining %d, want item B with full countdown",
			c.Index(), c.Remaining())
	}

	if err := c.Previous(context.Background()); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if c.Index() != 0 || c.Remaining() != 5 {
		t.Errorf("after previous: index %d remaining %d, want item A with full countdown",
			c.Index(), c.Remaining())
	}

	// Previous at the start of a non-looping playlist stays on item A.
	if err := c.Previous(context.Background()); err != nil {
		t.Fatalf("Previous at start: %v", err)
	}
	if c.Index() != 0 || c.Remaining() != 5 {
		t.Errorf("previous at start: index %d remaining %d, want clamped at item A",
			c.Index(), c.Remaining())
	}
}

func TestControllerNextClampsAtEnd(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), false)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next at end: %v", err)
	}
	if c.Index() != 1 || c.Remaining() != 3 {
		t.Errorf("next at end: index %d remaining %d, want clamped at item B", c.Index(), c.Remaining())
	}
}

func TestControllerNavigationWrapsWhenLooping(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), true)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Previous(context.Background()); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if c.Index() != 1 {
		t.Errorf("previous from first: index = %d, want wrap to last", c.Index())
	}
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if c.Index() != 0 {
		t.Errorf("next from last: index = %d, want wrap to first", c.Index())
	}
}

func TestControllerPauseFreezesCountdown(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), true)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tick(t, c, 3)
	if c.Remaining() != 2 {
		t.Fatalf("remaining before pause = %d, want 2", c.Remaining())
	}
	c.Pause()
	if c.State() != StatePaused {
		t.Fatalf("state after pause = %v, want paused", c.State())
	}

	// The host timer keeps ticking; a paused controller ignores it.
	tick(t, c, 4)
	if c.Remaining() != 2 {
		t.Errorf("remaining while paused = %d, want frozen at 2", c.Remaining())
	}

	c.Resume()
	if c.State() != StateDisplaying || c.Remaining() != 2 {
		t.Fatalf("after resume: %v remaining %d, want displaying from exactly 2",
			c.State(), c.Remaining())
	}
	tick(t, c, 2)
	if c.Index() != 1 {
		t.Errorf("index after countdown = %d, want advanced to 1", c.Index())
	}
}

func TestControllerNavigateWhilePaused(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), true)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Pause()

	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if c.State() != StatePaused || c.Index() != 1 || c.Remaining() != 3 {
		t.Errorf("next while paused: %v index %d remaining %d, want paused on item B",
			c.State(), c.Index(), c.Remaining())
	}
}

func TestControllerAdvanceFetchFailure(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeFetcher{fail: map[int64]error{102: boom}}
	c := NewController(f, []model.PlaylistItem{
		{DashboardID: 101, DurationSeconds: 1},
		{DashboardID: 102, DurationSeconds: 2},
	}, false)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := c.Tick(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Tick into failing item: err = %v, want wrapped failure", err)
	}
	if c.State() != StateError {
		t.Fatalf("state = %v, want error", c.State())
	}

	// The session is over; nothing moves anymore.
	tick(t, c, 3)
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next after error: %v", err)
	}
	if c.State() != StateError {
		t.Errorf("state after extra calls = %v, want still error", c.State())
	}
}

func TestControllerStop(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, testItems(), true)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.Stop()
	if c.State() != StateFinished {
		t.Fatalf("state after stop = %v, want finished", c.State())
	}

	tick(t, c, 3)
	c.Pause()
	c.Resume()
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next after stop: %v", err)
	}
	if c.State() != StateFinished || c.Index() != 0 {
		t.Errorf("after stop: %v index %d, want finished and unmoved", c.State(), c.Index())
	}
}
