package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/prefs"
	"github.com/tinytelemetry/cardpop/internal/surface"
)

// DefaultStatusInterval is how often the desk polls runner status.
const DefaultStatusInterval = time.Second

// ThemeSource lists themes and switches the active one.
type ThemeSource interface {
	Themes() []prefs.Theme
	SetTheme(id string) error
}

// popupView is the update loop's view of an open popup.
type popupView struct {
	popup   *popup
	visible bool
	card    surface.CardContent
	hasCard bool
}

// DeskModel is the Bubble Tea model hosting card popups and runner controls.
type DeskModel struct {
	controller model.RunnerController
	themes     ThemeSource

	keys   KeyMap
	help   help.Model
	theme  prefs.Theme
	styles Styles

	width  int
	height int

	popups   []*popupView
	status   model.RunnerStatus
	lastErr  string
	showHelp bool

	statusInterval time.Duration
	now            func() time.Time
}

// Option customizes a DeskModel.
type Option func(*DeskModel)

// WithThemeSource enables theme cycling.
func WithThemeSource(src ThemeSource) Option {
	return func(m *DeskModel) { m.themes = src }
}

// WithStatusInterval overrides the status poll interval.
func WithStatusInterval(d time.Duration) Option {
	return func(m *DeskModel) { m.statusInterval = d }
}

// NewDeskModel creates the desk model.
func NewDeskModel(controller model.RunnerController, theme prefs.Theme, opts ...Option) *DeskModel {
	m := &DeskModel{
		controller:     controller,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		theme:          theme,
		styles:         NewStyles(theme),
		statusInterval: DefaultStatusInterval,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ThemeMsg switches the desk to a new theme.
type ThemeMsg struct {
	Theme prefs.Theme
}

// StatusMsg carries a fresh runner status.
type StatusMsg struct {
	Status model.RunnerStatus
}

// statusTickMsg triggers a status poll.
type statusTickMsg time.Time

// commandResultMsg reports the outcome of a runner command.
type commandResultMsg struct {
	cmd model.RunnerCommand
	err error
}

// Init starts status polling.
func (m *DeskModel) Init() tea.Cmd {
	return tea.Batch(m.pollStatus(), m.scheduleStatusTick())
}

func (m *DeskModel) scheduleStatusTick() tea.Cmd {
	return tea.Tick(m.statusInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func (m *DeskModel) pollStatus() tea.Cmd {
	if m.controller == nil {
		return nil
	}
	ctl := m.controller
	return func() tea.Msg {
		return StatusMsg{Status: ctl.Status()}
	}
}

func (m *DeskModel) sendCommand(cmd model.RunnerCommand) tea.Cmd {
	if m.controller == nil {
		return nil
	}
	ctl := m.controller
	return func() tea.Msg {
		return commandResultMsg{cmd: cmd, err: ctl.Send(cmd)}
	}
}

// topPopup returns the most recently opened visible popup.
func (m *DeskModel) topPopup() *popupView {
	for i := len(m.popups) - 1; i >= 0; i-- {
		if m.popups[i].visible {
			return m.popups[i]
		}
	}
	return nil
}

func (m *DeskModel) findPopup(seq uint64) (int, *popupView) {
	for i, pv := range m.popups {
		if pv.popup.seq == seq {
			return i, pv
		}
	}
	return -1, nil
}

func (m *DeskModel) removePopup(seq uint64) {
	if i, _ := m.findPopup(seq); i >= 0 {
		m.popups = append(m.popups[:i], m.popups[i+1:]...)
	}
}
