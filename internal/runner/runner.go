package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/surface"
)

// PopupID is the surface id a runner opens its card popup under.
const PopupID = "card-popup"

var (
	// ErrEmptyDeck is returned by Start when there is nothing to present.
	ErrEmptyDeck = errors.New("runner: deck has no cards")
	// ErrNoWindower is returned by New without a surface provider.
	ErrNoWindower = errors.New("runner: no windower")
)

// Presentation describes one card successfully delivered to a surface.
type Presentation struct {
	DeckID   string
	CardID   string
	Position int
	Total    int
	At       time.Time
}

// Options wires a DeckRunner to its collaborators.
type Options struct {
	Windower surface.Windower
	Clock    Clock
	Rand     Rand

	// ReadyTimeout bounds the wait for a surface's ready signal.
	ReadyTimeout time.Duration

	// Recorder, when set, is called after every successful presentation.
	Recorder func(Presentation)

	// OnStopped is called exactly once when the runner stops, so the owner
	// can retire whatever control surface drove it.
	OnStopped func()
}

// DeckRunner cycles through a deck's cards on a fixed delay, presenting each
// in a popup surface. A runner is single use: idle, running, paused, stopped.
type DeckRunner struct {
	deckID   string
	deckName string
	total    int
	delay    time.Duration
	opts     Options

	// present serializes presentations.
	present sync.Mutex

	mu      sync.Mutex
	state   model.RunnerState
	cards   []model.Card
	index   int
	shown   int
	active  surface.Surface
	timer   Timer
	seq     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	unwatch func() bool

	stopOnce sync.Once
}

// New builds an idle runner over a copy of deck's cards, shuffled when
// settings ask for it. deck itself is never modified.
func New(deck model.Deck, settings model.RunSettings, opts Options) (*DeckRunner, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	if opts.Windower == nil {
		return nil, ErrNoWindower
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = model.DefaultReadyTimeout
	}

	cards := deck.Clone().Cards
	if settings.Shuffle {
		cards = ShuffleCards(cards, opts.Rand)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DeckRunner{
		deckID:   deck.ID,
		deckName: deck.Name,
		total:    len(cards),
		delay:    settings.Delay(),
		opts:     opts,
		state:    model.StateIdle,
		cards:    cards,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Cards returns the working card order.
func (r *DeckRunner) Cards() []model.Card {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Card, len(r.cards))
	copy(out, r.cards)
	return out
}

// Start presents the first card and arms the schedule. Cancelling ctx stops
// the runner. Start on a runner that is not idle is a no-op.
func (r *DeckRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != model.StateIdle {
		r.mu.Unlock()
		return nil
	}
	if len(r.cards) == 0 {
		r.mu.Unlock()
		log.Printf("runner: deck %q has no cards, not starting", r.deckName)
		return ErrEmptyDeck
	}
	r.state = model.StateRunning
	r.unwatch = context.AfterFunc(ctx, r.Stop)
	r.cancelTimerLocked()
	seq := r.seq
	r.mu.Unlock()

	log.Printf("runner: starting deck %q (%d cards, every %s)", r.deckName, r.total, r.delay)
	r.presentAndArm(seq)
	return nil
}

// Pause cancels the pending presentation. The current card stays up.
func (r *DeckRunner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != model.StateRunning {
		return
	}
	r.state = model.StatePaused
	r.cancelTimerLocked()
}

// Resume presents the next card immediately and re-arms the schedule.
func (r *DeckRunner) Resume() {
	if seq, ok := r.resume(); ok {
		r.presentAndArm(seq)
	}
}

// ResumeAsync switches back to running before returning and presents the
// next card on its own goroutine, so the caller does not wait out a slow
// surface.
func (r *DeckRunner) ResumeAsync() {
	if seq, ok := r.resume(); ok {
		go r.presentAndArm(seq)
	}
}

func (r *DeckRunner) resume() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != model.StatePaused {
		return 0, false
	}
	r.state = model.StateRunning
	r.cancelTimerLocked()
	return r.seq, true
}

// Stop cancels the schedule, closes the active surface and releases the
// cards. Only the first call has any effect.
func (r *DeckRunner) Stop() {
	r.mu.Lock()
	if r.state == model.StateStopped {
		r.mu.Unlock()
		return
	}
	r.state = model.StateStopped
	r.cancelTimerLocked()
	active := r.active
	r.active = nil
	r.cards = nil
	unwatch := r.unwatch
	r.unwatch = nil
	r.mu.Unlock()

	r.cancel()
	if unwatch != nil {
		unwatch()
	}
	if active != nil {
		if err := active.Close(); err != nil {
			log.Printf("runner: close surface: %v", err)
		}
	}
	r.stopOnce.Do(func() {
		log.Printf("runner: stopped deck %q", r.deckName)
		if r.opts.OnStopped != nil {
			r.opts.OnStopped()
		}
	})
}

// Status returns a snapshot of the runner.
func (r *DeckRunner) Status() model.RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := model.RunnerStatus{
		Active:   r.state == model.StateRunning || r.state == model.StatePaused,
		DeckID:   r.deckID,
		DeckName: r.deckName,
		State:    r.state,
		Total:    r.total,
		Interval: r.delay,
		Shown:    r.shown,
	}
	if st.Active {
		st.Position = r.index + 1
	}
	return st
}

// State returns the lifecycle state.
func (r *DeckRunner) State() model.RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// presentAndArm shows the next card and, if nothing cancelled seq in the
// meantime, arms the timer for the following one.
func (r *DeckRunner) presentAndArm(seq uint64) {
	r.showNext()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != model.StateRunning || r.seq != seq {
		return
	}
	r.armLocked()
}

func (r *DeckRunner) armLocked() {
	r.cancelTimerLocked()
	seq := r.seq
	r.timer = r.opts.Clock.AfterFunc(r.delay, func() { r.tick(seq) })
}

// cancelTimerLocked clears the timer slot and invalidates any callback
// already in flight.
func (r *DeckRunner) cancelTimerLocked() {
	r.seq++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *DeckRunner) tick(seq uint64) {
	r.mu.Lock()
	if r.seq != seq || r.state != model.StateRunning {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	r.presentAndArm(seq)
}

// showNext replaces the active surface with the card at the current index.
// A failed presentation is logged and still advances the index.
func (r *DeckRunner) showNext() {
	r.present.Lock()
	defer r.present.Unlock()

	r.mu.Lock()
	if r.state != model.StateRunning {
		r.mu.Unlock()
		return
	}
	card := r.cards[r.index]
	position := r.index + 1
	r.index = (r.index + 1) % len(r.cards)
	prev := r.active
	r.active = nil
	ctx := r.ctx
	r.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			log.Printf("runner: close previous surface: %v", err)
		}
	}

	sf, err := r.open(ctx, card, position)

	r.mu.Lock()
	if r.state == model.StateStopped {
		r.mu.Unlock()
		if sf != nil {
			_ = sf.Close()
		}
		return
	}
	if err != nil {
		r.mu.Unlock()
		log.Printf("runner: present card %d/%d of %q: %v", position, r.total, r.deckName, err)
		return
	}
	r.active = sf
	r.shown++
	r.mu.Unlock()

	if r.opts.Recorder != nil {
		r.opts.Recorder(Presentation{
			DeckID:   r.deckID,
			CardID:   card.ID,
			Position: position,
			Total:    r.total,
			At:       r.opts.Clock.Now(),
		})
	}
}

// open opens the popup, waits for it to become ready and delivers the card.
// On error the surface, if any, has already been closed.
func (r *DeckRunner) open(ctx context.Context, card model.Card, position int) (surface.Surface, error) {
	sf, err := r.opts.Windower.Open(ctx, PopupID, surface.CardPopupOptions())
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	select {
	case <-sf.Ready():
	case <-sf.Closed():
		return nil, errors.New("surface closed before ready")
	case <-r.opts.Clock.After(r.opts.ReadyTimeout):
		_ = sf.Close()
		return nil, fmt.Errorf("surface not ready after %s", r.opts.ReadyTimeout)
	case <-ctx.Done():
		_ = sf.Close()
		return nil, ctx.Err()
	}

	payload := surface.CardContent{
		Content: card.Content,
		Current: position,
		Total:   r.total,
		Deck:    r.deckName,
	}
	if err := sf.Emit(model.TopicCardContent, payload); err != nil {
		_ = sf.Close()
		return nil, fmt.Errorf("emit: %w", err)
	}
	return sf, nil
}
