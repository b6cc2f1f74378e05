package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/prefs"
	"github.com/tinytelemetry/cardpop/internal/runner"
	"github.com/tinytelemetry/cardpop/internal/surface"
)

// loopSender feeds messages straight into the model, standing in for a
// running program.
type loopSender struct {
	mu sync.Mutex
	m  *DeskModel
}

func (s *loopSender) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Update(msg)
}

func (s *loopSender) view() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.View()
}

type recordingController struct {
	mu     sync.Mutex
	sent   []model.RunnerCommand
	status model.RunnerStatus
	err    error
}

func (c *recordingController) Send(cmd model.RunnerCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd)
	return c.err
}

func (c *recordingController) Status() model.RunnerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func newTestDesk(t *testing.T, ctl model.RunnerController) (*Desk, *loopSender) {
	t.Helper()
	m := NewDeskModel(ctl, prefs.BuiltinThemes()[0])
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	sender := &loopSender{m: m}
	desk := NewDesk()
	desk.Attach(sender)
	return desk, sender
}

func TestDeskOpenBecomesReady(t *testing.T) {
	desk, sender := newTestDesk(t, nil)

	s, err := desk.Open(context.Background(), "card-popup", surface.CardPopupOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	select {
	case <-s.Ready():
	default:
		t.Fatal("surface not ready after the program took it in")
	}
	if len(sender.m.popups) != 1 {
		t.Fatalf("popups = %d, want 1", len(sender.m.popups))
	}

	if err := s.Emit(model.TopicCardContent, surface.CardContent{Content: "Capital of Peru?", Current: 2, Total: 5}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	view := sender.view()
	for _, want := range []string{"Flashcard", "2/5", "Capital of Peru?"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDeskCloseRemovesPopup(t *testing.T) {
	desk, sender := newTestDesk(t, nil)
	s, _ := desk.Open(context.Background(), "card-popup", surface.CardPopupOptions())
	_ = s.Emit(model.TopicCardContent, surface.CardContent{Content: "gone soon", Current: 1, Total: 1})

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(sender.m.popups) != 0 {
		t.Fatal("closed popup still on the desk")
	}
	if strings.Contains(sender.view(), "gone soon") {
		t.Fatal("closed popup still rendered")
	}
	if err := s.Emit(model.TopicCardContent, surface.CardContent{}); !errors.Is(err, surface.ErrClosed) {
		t.Fatalf("Emit after Close = %v, want ErrClosed", err)
	}
}

func TestDeskHideShow(t *testing.T) {
	desk, sender := newTestDesk(t, nil)
	s, _ := desk.Open(context.Background(), "card-popup", surface.CardPopupOptions())
	_ = s.Emit(model.TopicCardContent, surface.CardContent{Content: "peekaboo", Current: 1, Total: 1})

	_ = s.Hide()
	if strings.Contains(sender.view(), "peekaboo") {
		t.Fatal("hidden popup rendered")
	}
	_ = s.Show()
	if !strings.Contains(sender.view(), "peekaboo") {
		t.Fatal("shown popup not rendered")
	}
}

func TestDismissKeyClosesSurface(t *testing.T) {
	desk, sender := newTestDesk(t, nil)
	s, _ := desk.Open(context.Background(), "card-popup", surface.CardPopupOptions())

	sender.Send(tea.KeyMsg{Type: tea.KeyEsc})
	select {
	case <-s.Closed():
	default:
		t.Fatal("dismiss did not signal Closed")
	}
	if len(sender.m.popups) != 0 {
		t.Fatal("dismissed popup still on the desk")
	}
}

func TestOpenWithoutProgram(t *testing.T) {
	desk := NewDesk()
	if _, err := desk.Open(context.Background(), "card-popup", surface.CardPopupOptions()); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("Open = %v, want ErrNotAttached", err)
	}
	select {
	case <-desk.Attached():
		t.Fatal("Attached closed before Attach")
	default:
	}

	desk.Attach(&loopSender{m: NewDeskModel(&recordingController{}, prefs.BuiltinThemes()[0])})
	select {
	case <-desk.Attached():
	default:
		t.Fatal("Attached not closed after Attach")
	}
	desk.Attach(nil)
	if _, err := desk.Open(context.Background(), "card-popup", surface.CardPopupOptions()); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("Open after detach = %v, want ErrNotAttached", err)
	}
}

func TestControlKeysSendCommands(t *testing.T) {
	ctl := &recordingController{}
	m := NewDeskModel(ctl, prefs.BuiltinThemes()[0])

	keys := map[rune]model.RunnerCommand{
		'p': model.CommandPause,
		'r': model.CommandResume,
		's': model.CommandStop,
	}
	for r, want := range keys {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		if cmd == nil {
			t.Fatalf("key %q produced no command", r)
		}
		msg := cmd()
		res, ok := msg.(commandResultMsg)
		if !ok || res.cmd != want {
			t.Fatalf("key %q -> %#v, want %s", r, msg, want)
		}
	}
	if len(ctl.sent) != 3 {
		t.Fatalf("controller got %v", ctl.sent)
	}
}

func TestCommandErrorShown(t *testing.T) {
	ctl := &recordingController{err: errors.New("no runner")}
	m := NewDeskModel(ctl, prefs.BuiltinThemes()[0])
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m.Update(cmd())
	if !strings.Contains(m.View(), "no runner") {
		t.Fatalf("error not rendered:\n%s", m.View())
	}
}

func TestStatusRendered(t *testing.T) {
	m := NewDeskModel(nil, prefs.BuiltinThemes()[0])
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m.Update(StatusMsg{Status: model.RunnerStatus{
		Active:   true,
		DeckName: "Capitals",
		State:    model.StatePaused,
		Position: 3,
		Total:    10,
		Interval: time.Minute,
	}})
	view := m.View()
	for _, want := range []string{"Capitals", "paused", "next 3/10", "Paused. Press r to resume."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewBeforeSize(t *testing.T) {
	m := NewDeskModel(nil, prefs.BuiltinThemes()[0])
	if got := m.View(); got != "Initializing desk..." {
		t.Fatalf("View() = %q", got)
	}
}

type fakeThemes struct {
	themes []prefs.Theme
	set    string
}

func (f *fakeThemes) Themes() []prefs.Theme { return f.themes }

func (f *fakeThemes) SetTheme(id string) error {
	f.set = id
	return nil
}

func TestThemeKeyCycles(t *testing.T) {
	builtins := prefs.BuiltinThemes()
	src := &fakeThemes{themes: builtins}
	m := NewDeskModel(nil, builtins[len(builtins)-1], WithThemeSource(src))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	if cmd == nil {
		t.Fatal("theme key produced no command")
	}
	m.Update(cmd())
	if src.set != builtins[0].ID || m.theme.ID != builtins[0].ID {
		t.Fatalf("theme after wrap = %q (set %q), want %q", m.theme.ID, src.set, builtins[0].ID)
	}
}

func TestDeskHostsDeckRunner(t *testing.T) {
	desk, sender := newTestDesk(t, nil)
	deck := model.Deck{ID: "d1", Name: "Capitals", Cards: []model.Card{
		{ID: "c1", Content: "France?"},
		{ID: "c2", Content: "Spain?"},
	}}
	r, err := runner.New(deck, model.RunSettings{Interval: 1, IntervalUnit: model.UnitHours}, runner.Options{Windower: desk})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if view := sender.view(); !strings.Contains(view, "France?") || !strings.Contains(view, "1/2") {
		t.Fatalf("first card not on the desk:\n%s", view)
	}

	r.Stop()
	if len(sender.m.popups) != 0 {
		t.Fatal("stopped runner left a popup on the desk")
	}
}
