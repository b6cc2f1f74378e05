package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Console presents cards as colored blocks on a writer. Its surfaces are
// ready as soon as they open.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole writes surfaces to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, now: time.Now}
}

// Open returns a surface that prints to the console.
func (c *Console) Open(ctx context.Context, id string, opts Options) (Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &consoleSurface{
		console: c,
		id:      id,
		title:   opts.Title,
		visible: opts.Visible,
		ready:   make(chan struct{}),
		closed:  make(chan struct{}),
	}
	close(s.ready)
	return s, nil
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, s)
}

type consoleSurface struct {
	console *Console
	id      string
	title   string

	mu      sync.Mutex
	visible bool
	last    string

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *consoleSurface) Ready() <-chan struct{}  { return s.ready }
func (s *consoleSurface) Closed() <-chan struct{} { return s.closed }

func (s *consoleSurface) Emit(topic string, payload any) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	var text string
	switch p := payload.(type) {
	case CardContent:
		text = renderCard(s.title, p, s.console.now())
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("surface: encode %s: %w", topic, err)
		}
		text = fmt.Sprintf("%s %s\n", color.New(color.FgCyan).Sprint(topic), data)
	}

	s.mu.Lock()
	s.last = text
	visible := s.visible
	s.mu.Unlock()
	if visible {
		s.console.write(text)
	}
	return nil
}

func (s *consoleSurface) Show() error {
	s.mu.Lock()
	wasHidden := !s.visible
	s.visible = true
	last := s.last
	s.mu.Unlock()
	if wasHidden && last != "" {
		s.console.write(last)
	}
	return nil
}

func (s *consoleSurface) Hide() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
	return nil
}

func (s *consoleSurface) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func renderCard(title string, card CardContent, at time.Time) string {
	var b strings.Builder
	header := color.New(color.FgHiMagenta, color.Bold).Sprint(title)
	position := color.New(color.FgYellow).Sprintf("%d/%d", card.Current, card.Total)
	fmt.Fprintf(&b, "%s %s", header, position)
	if card.Deck != "" {
		fmt.Fprintf(&b, " %s", color.New(color.FgCyan).Sprint(card.Deck))
	}
	fmt.Fprintf(&b, " %s\n", color.New(color.Faint).Sprint(at.Format("15:04:05")))
	for _, line := range strings.Split(card.Content, "\n") {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return b.String()
}
