package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/surface"
)

// ErrNotAttached is returned by Open before a program is attached.
var ErrNotAttached = errors.New("tui: desk not attached to a program")

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Desk is a surface.Windower whose surfaces are popups drawn by the desk
// program. A surface becomes ready once the program has taken it in.
type Desk struct {
	mu     sync.Mutex
	sender Sender
	nextID uint64

	attached     chan struct{}
	attachedOnce sync.Once
}

// NewDesk returns a desk with no program attached.
func NewDesk() *Desk {
	return &Desk{attached: make(chan struct{})}
}

// Attach connects the desk to a program. Attach(nil) detaches it.
func (d *Desk) Attach(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sender = s
	if s != nil {
		d.attachedOnce.Do(func() { close(d.attached) })
	}
}

// Attached is closed the first time a program is attached.
func (d *Desk) Attached() <-chan struct{} { return d.attached }

// Open creates a popup surface and hands it to the program.
func (d *Desk) Open(ctx context.Context, id string, opts surface.Options) (surface.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	sender := d.sender
	d.nextID++
	seq := d.nextID
	d.mu.Unlock()
	if sender == nil {
		return nil, ErrNotAttached
	}

	s := &popup{
		seq:    seq,
		id:     id,
		opts:   opts,
		sender: sender,
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}
	sender.Send(popupOpenedMsg{popup: s})
	return s, nil
}

// popup is one desk surface.
type popup struct {
	seq    uint64
	id     string
	opts   surface.Options
	sender Sender

	ready     chan struct{}
	readyOnce sync.Once
	closed    chan struct{}
	closeOnce sync.Once
}

func (p *popup) Ready() <-chan struct{}  { return p.ready }
func (p *popup) Closed() <-chan struct{} { return p.closed }

func (p *popup) Emit(topic string, payload any) error {
	if p.isClosed() {
		return surface.ErrClosed
	}
	if topic != model.TopicCardContent {
		return fmt.Errorf("tui: unsupported topic %q", topic)
	}
	card, ok := payload.(surface.CardContent)
	if !ok {
		return fmt.Errorf("tui: unsupported %s payload %T", topic, payload)
	}
	p.sender.Send(popupContentMsg{seq: p.seq, card: card})
	return nil
}

func (p *popup) Show() error {
	if p.isClosed() {
		return surface.ErrClosed
	}
	p.sender.Send(popupVisibilityMsg{seq: p.seq, visible: true})
	return nil
}

func (p *popup) Hide() error {
	if p.isClosed() {
		return surface.ErrClosed
	}
	p.sender.Send(popupVisibilityMsg{seq: p.seq, visible: false})
	return nil
}

// Close removes the popup from the desk. Safe to call more than once.
func (p *popup) Close() error {
	first := p.markClosed()
	if first {
		p.sender.Send(popupClosedMsg{seq: p.seq})
	}
	return nil
}

func (p *popup) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// markClosed closes the Closed channel and reports whether this call did it.
func (p *popup) markClosed() bool {
	first := false
	p.closeOnce.Do(func() {
		close(p.closed)
		first = true
	})
	return first
}

func (p *popup) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

type popupOpenedMsg struct{ popup *popup }

type popupContentMsg struct {
	seq  uint64
	card surface.CardContent
}

type popupVisibilityMsg struct {
	seq     uint64
	visible bool
}

type popupClosedMsg struct{ seq uint64 }
