package player

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/CodeFleck/sensorvision-sub002/internal/playlist"
)

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.started = true
		return m, m.refreshWidgetData()

	case spinMsg:
		if m.started || m.err != nil || m.quitting {
			return m, nil
		}
		return m, spin()

	case tickMsg:
		if m.err != nil || m.quitting {
			return m, nil
		}
		if !m.started {
			return m, tick()
		}
		prev := m.ctrl.Current()
		if err := m.controllerCall(m.ctrl.Tick); err != nil {
			m.err = err
			return m, nil
		}
		cmds := []tea.Cmd{tick()}
		switch {
		case m.ctrl.Current() != prev:
			m.fetchSeq++
			cmds = append(cmds, m.refreshWidgetData())
		case time.Since(m.lastFetch) >= refreshEvery:
			cmds = append(cmds, m.refreshWidgetData())
		}
		return m, tea.Batch(cmds...)

	case widgetDataMsg:
		if msg.seq == m.fetchSeq {
			m.data = msg.data
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		if m.started {
			m.ctrl.Stop()
		}
		m.quitting = true
		return m, tea.Quit
	}

	if !m.started || m.err != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Pause):
		if m.ctrl.State() == playlist.StatePaused {
			m.ctrl.Resume()
		} else {
			m.ctrl.Pause()
		}
	case key.Matches(msg, m.keys.Next):
		return m.navigate(m.ctrl.Next)
	case key.Matches(msg, m.keys.Previous):
		return m.navigate(m.ctrl.Previous)
	}
	return m, nil
}

// navigate runs one manual controller transition and refreshes widget data
// when it landed on a different dashboard.
func (m *Model) navigate(fn func(context.Context) error) (tea.Model, tea.Cmd) {
	prev := m.ctrl.Current()
	if err := m.controllerCall(fn); err != nil {
		m.err = err
		return m, nil
	}
	if m.ctrl.Current() != prev {
		m.fetchSeq++
		return m, m.refreshWidgetData()
	}
	return m, nil
}
