package runner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinytelemetry/cardpop/internal/surface"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	timers  map[int]*fakeTimer
	waiters []fakeWaiter
}

type fakeTimer struct {
	clock *fakeClock
	id    int
	at    time.Time
	fn    func()
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		timers: make(map[int]*fakeTimer),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{clock: c, id: c.nextID, at: c.now.Add(d), fn: f}
	c.timers[t.id] = t
	return t
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, fakeWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, ok := t.clock.timers[t.id]
	delete(t.clock.timers, t.id)
	return ok
}

func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) pendingWaiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Advance moves time forward by d, firing due timers in deadline order.
// Callbacks run synchronously on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.fireWaitersLocked()
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].id < due[j].id
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		delete(c.timers, next.id)
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.fireWaitersLocked()
		c.mu.Unlock()

		next.fn()
	}
}

func (c *fakeClock) fireWaitersLocked() {
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		kept = append(kept, w)
	}
	c.waiters = kept
}

type shownCard struct {
	surface.CardContent
	At time.Time
}

type fakeWindower struct {
	clock *fakeClock

	// holdReady leaves new surfaces not ready.
	holdReady bool

	// failOpens makes the next n Open calls fail.
	failOpens atomic.Int32

	// gate, when set, blocks Open until closed.
	gate chan struct{}

	// opening counts Open calls, including ones still blocked on gate.
	opening atomic.Int32

	mu       sync.Mutex
	surfaces []*fakeSurface
	shown    []shownCard
	optsSeen []surface.Options
}

func (w *fakeWindower) Open(ctx context.Context, id string, opts surface.Options) (surface.Surface, error) {
	if id != PopupID {
		return nil, errors.New("unexpected surface id " + id)
	}
	w.opening.Add(1)
	if w.failOpens.Load() > 0 {
		w.failOpens.Add(-1)
		return nil, errors.New("display unavailable")
	}
	if w.gate != nil {
		<-w.gate
	}
	s := &fakeSurface{
		w:      w,
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}
	if !w.holdReady {
		close(s.ready)
	}
	w.mu.Lock()
	w.surfaces = append(w.surfaces, s)
	w.optsSeen = append(w.optsSeen, opts)
	w.mu.Unlock()
	return s, nil
}

func (w *fakeWindower) opened() []*fakeSurface {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*fakeSurface(nil), w.surfaces...)
}

func (w *fakeWindower) shownCards() []shownCard {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]shownCard(nil), w.shown...)
}

func (w *fakeWindower) contents() []string {
	var out []string
	for _, s := range w.shownCards() {
		out = append(out, s.Content)
	}
	return out
}

type fakeSurface struct {
	w      *fakeWindower
	ready  chan struct{}
	closed chan struct{}

	closeCalls atomic.Int32
	closeOnce  sync.Once
}

func (s *fakeSurface) Ready() <-chan struct{}  { return s.ready }
func (s *fakeSurface) Closed() <-chan struct{} { return s.closed }
func (s *fakeSurface) Show() error             { return nil }
func (s *fakeSurface) Hide() error             { return nil }

func (s *fakeSurface) Emit(topic string, payload any) error {
	select {
	case <-s.closed:
		return surface.ErrClosed
	default:
	}
	card, ok := payload.(surface.CardContent)
	if !ok {
		return errors.New("unexpected payload")
	}
	s.w.mu.Lock()
	s.w.shown = append(s.w.shown, shownCard{CardContent: card, At: s.w.clock.Now()})
	s.w.mu.Unlock()
	return nil
}

func (s *fakeSurface) Close() error {
	s.closeCalls.Add(1)
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
