package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/cardpop/internal/model"
)

// Update handles messages.
func (m *DeskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case popupOpenedMsg:
		m.popups = append(m.popups, &popupView{
			popup:   msg.popup,
			visible: msg.popup.opts.Visible,
		})
		msg.popup.markReady()

	case popupContentMsg:
		if _, pv := m.findPopup(msg.seq); pv != nil {
			pv.card = msg.card
			pv.hasCard = true
		}

	case popupVisibilityMsg:
		if _, pv := m.findPopup(msg.seq); pv != nil {
			pv.visible = msg.visible
		}

	case popupClosedMsg:
		m.removePopup(msg.seq)

	case ThemeMsg:
		m.theme = msg.Theme
		m.styles = NewStyles(msg.Theme)

	case StatusMsg:
		m.status = msg.Status

	case statusTickMsg:
		return m, tea.Batch(m.pollStatus(), m.scheduleStatusTick())

	case commandResultMsg:
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.cmd, msg.err)
		} else {
			m.lastErr = ""
		}
		return m, m.pollStatus()

	case themeErrMsg:
		m.lastErr = msg.err.Error()
	}

	return m, nil
}

type themeErrMsg struct{ err error }

func (m *DeskModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys

	switch {
	case key.Matches(msg, k.ForceQuit):
		return m, tea.Quit

	case key.Matches(msg, k.Quit):
		return m, tea.Sequence(m.sendCommand(model.CommandStop), tea.Quit)

	case key.Matches(msg, k.Pause):
		return m, m.sendCommand(model.CommandPause)

	case key.Matches(msg, k.Resume):
		return m, m.sendCommand(model.CommandResume)

	case key.Matches(msg, k.Stop):
		return m, m.sendCommand(model.CommandStop)

	case key.Matches(msg, k.Dismiss):
		m.dismissTop()
		return m, nil

	case key.Matches(msg, k.Theme):
		return m, m.nextTheme()

	case key.Matches(msg, k.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	}

	return m, nil
}

// dismissTop closes the top popup the way a user closing its window would.
func (m *DeskModel) dismissTop() {
	pv := m.topPopup()
	if pv == nil {
		return
	}
	m.removePopup(pv.popup.seq)
	pv.popup.markClosed()
}

// nextTheme switches to the theme after the current one.
func (m *DeskModel) nextTheme() tea.Cmd {
	if m.themes == nil {
		return nil
	}
	src := m.themes
	current := m.theme.ID
	return func() tea.Msg {
		themes := src.Themes()
		if len(themes) == 0 {
			return nil
		}
		next := themes[0]
		for i, t := range themes {
			if t.ID == current {
				next = themes[(i+1)%len(themes)]
				break
			}
		}
		if err := src.SetTheme(next.ID); err != nil {
			return themeErrMsg{err: err}
		}
		return ThemeMsg{Theme: next}
	}
}
