package runner

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinytelemetry/cardpop/internal/model"
)

func testDeck(contents ...string) model.Deck {
	deck := model.Deck{ID: "deck-1", Name: "Quiz"}
	for i, c := range contents {
		deck.Cards = append(deck.Cards, model.Card{ID: string(rune('a' + i)), Content: c})
	}
	return deck
}

func everySecond() model.RunSettings {
	return model.RunSettings{Interval: 1, IntervalUnit: model.UnitSeconds}
}

func newTestRunner(t *testing.T, deck model.Deck, settings model.RunSettings, mutate ...func(*Options)) (*DeckRunner, *fakeClock, *fakeWindower) {
	t.Helper()
	clock := newFakeClock()
	win := &fakeWindower{clock: clock}
	opts := Options{Windower: win, Clock: clock}
	for _, fn := range mutate {
		fn(&opts)
	}
	r, err := New(deck, settings, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Stop)
	return r, clock, win
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCyclicScheduleOneSecondApart(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck("Q1", "Q2", "Q3"), everySecond())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := win.contents(); !equalStrings(got, []string{"Q1"}) {
		t.Fatalf("after start shown %v, want [Q1]", got)
	}

	clock.Advance(999 * time.Millisecond)
	if got := len(win.contents()); got != 1 {
		t.Fatalf("presented %d cards before the first delay elapsed", got)
	}
	clock.Advance(time.Millisecond)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
	}

	want := []string{"Q1", "Q2", "Q3", "Q1", "Q2"}
	if got := win.contents(); !equalStrings(got, want) {
		t.Fatalf("shown %v, want %v", got, want)
	}

	shown := win.shownCards()
	for i, s := range shown {
		if s.Current != i%3+1 || s.Total != 3 {
			t.Errorf("presentation %d = %d/%d, want %d/3", i, s.Current, s.Total, i%3+1)
		}
		if i > 0 {
			if gap := s.At.Sub(shown[i-1].At); gap != time.Second {
				t.Errorf("gap before presentation %d = %s, want 1s", i, gap)
			}
		}
	}
	if n := clock.pendingTimers(); n != 1 {
		t.Fatalf("pending timers = %d, want exactly 1", n)
	}
}

func TestEachPresentationReplacesPreviousSurface(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck("Q1", "Q2"), everySecond())
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)

	surfaces := win.opened()
	if len(surfaces) != 3 {
		t.Fatalf("opened %d surfaces, want 3", len(surfaces))
	}
	for i, s := range surfaces[:2] {
		if n := s.closeCalls.Load(); n != 1 {
			t.Errorf("surface %d closed %d times, want 1", i, n)
		}
	}
	if n := surfaces[2].closeCalls.Load(); n != 0 {
		t.Fatalf("active surface closed %d times", n)
	}

	opts := win.optsSeen[0]
	if opts.Title != "Flashcard" || opts.Width != 400 || opts.Height != 300 ||
		!opts.AlwaysOnTop || opts.Decorations || !opts.Focus || !opts.Center {
		t.Fatalf("popup options = %+v", opts)
	}
}

func TestStartEmptyDeck(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck(), everySecond())

	if err := r.Start(context.Background()); !errors.Is(err, ErrEmptyDeck) {
		t.Fatalf("Start = %v, want ErrEmptyDeck", err)
	}
	if len(win.opened()) != 0 {
		t.Fatal("empty deck opened a surface")
	}
	if clock.pendingTimers() != 0 {
		t.Fatal("empty deck armed a timer")
	}
	if r.State() != model.StateIdle {
		t.Fatalf("state = %s, want idle", r.State())
	}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	win := &fakeWindower{clock: newFakeClock()}
	tests := []model.RunSettings{
		{Interval: 0, IntervalUnit: model.UnitSeconds},
		{Interval: -1, IntervalUnit: model.UnitMinutes},
		{Interval: 1, IntervalUnit: "days"},
		{Interval: 0.0001, IntervalUnit: model.UnitSeconds},
		{Interval: 3e6, IntervalUnit: model.UnitHours},
	}
	for _, s := range tests {
		if _, err := New(testDeck("Q1"), s, Options{Windower: win}); !errors.Is(err, model.ErrInvalidSettings) {
			t.Errorf("New(%+v) = %v, want ErrInvalidSettings", s, err)
		}
	}
	if _, err := New(testDeck("Q1"), everySecond(), Options{}); !errors.Is(err, ErrNoWindower) {
		t.Errorf("New without windower = %v", err)
	}
}

func TestPauseHaltsPresentations(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck("Q1", "Q2", "Q3"), everySecond())
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.Pause()
	r.Pause()
	clock.Advance(time.Minute)

	if got := len(win.contents()); got != 1 {
		t.Fatalf("presented %d cards while paused, want 1", got)
	}
	if clock.pendingTimers() != 0 {
		t.Fatal("timer still armed while paused")
	}
	st := r.Status()
	if st.State != model.StatePaused || !st.Active || st.Position != 2 {
		t.Fatalf("status = %+v", st)
	}
}

func TestResumePresentsImmediately(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck("Q1", "Q2", "Q3"), everySecond())
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.Advance(500 * time.Millisecond)
	r.Pause()
	clock.Advance(10 * time.Second)

	r.Resume()
	if got := win.contents(); !equalStrings(got, []string{"Q1", "Q2"}) {
		t.Fatalf("after resume shown %v, want [Q1 Q2]", got)
	}
	r.Resume()
	if got := len(win.contents()); got != 2 {
		t.Fatalf("second Resume presented again: %d", got)
	}

	clock.Advance(999 * time.Millisecond)
	if got := len(win.contents()); got != 2 {
		t.Fatalf("presented before a full interval after resume: %d", got)
	}
	clock.Advance(time.Millisecond)
	if got := win.contents(); !equalStrings(got, []string{"Q1", "Q2", "Q3"}) {
		t.Fatalf("shown %v, want [Q1 Q2 Q3]", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	var stopped atomic.Int32
	r, clock, win := newTestRunner(t, testDeck("Q1", "Q2"), everySecond(), func(o *Options) {
		o.OnStopped = func() { stopped.Add(1) }
	})
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.Stop()
	r.Stop()

	surfaces := win.opened()
	if len(surfaces) != 1 {
		t.Fatalf("opened %d surfaces", len(surfaces))
	}
	if n := surfaces[0].closeCalls.Load(); n != 1 {
		t.Fatalf("surface closed %d times, want 1", n)
	}
	if n := stopped.Load(); n != 1 {
		t.Fatalf("OnStopped called %d times, want 1", n)
	}

	r.Pause()
	r.Resume()
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start after Stop = %v, want nil", err)
	}
	clock.Advance(time.Minute)
	if got := len(win.contents()); got != 1 {
		t.Fatalf("presented %d cards after stop", got)
	}
	if st := r.Status(); st.Active || st.State != model.StateStopped {
		t.Fatalf("status = %+v", st)
	}
}

func TestStopDuringReadyWaitClosesSurface(t *testing.T) {
	var stopped atomic.Int32
	r, _, win := newTestRunner(t, testDeck("Q1"), everySecond(), func(o *Options) {
		o.OnStopped = func() { stopped.Add(1) }
	})
	win.holdReady = true

	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()
	waitFor(t, "surface open", func() bool { return len(win.opened()) == 1 })

	r.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	if n := win.opened()[0].closeCalls.Load(); n != 1 {
		t.Fatalf("late surface closed %d times, want 1", n)
	}
	if len(win.contents()) != 0 {
		t.Fatal("card delivered to a stopped runner's surface")
	}
	if stopped.Load() != 1 {
		t.Fatal("OnStopped not called once")
	}
}

func TestSurfaceOpenedAfterStopIsClosed(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck("Q1"), everySecond())
	win.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()
	waitFor(t, "open in flight", func() bool { return win.opening.Load() == 1 })

	r.Stop()
	close(win.gate)
	<-done

	surfaces := win.opened()
	if len(surfaces) != 1 {
		t.Fatalf("opened %d surfaces", len(surfaces))
	}
	if n := surfaces[0].closeCalls.Load(); n != 1 {
		t.Fatalf("late surface closed %d times, want 1", n)
	}
	if clock.pendingTimers() != 0 {
		t.Fatal("stopped runner armed a timer")
	}
}

func TestReadyTimeoutSkipsCard(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck("Q1", "Q2"), everySecond(), func(o *Options) {
		o.ReadyTimeout = 5 * time.Second
	})
	win.holdReady = true

	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()
	waitFor(t, "ready wait", func() bool { return clock.pendingWaiters() == 1 })

	clock.Advance(5 * time.Second)
	if err := <-done; err != nil {
		t.Fatalf("Start = %v", err)
	}
	if n := win.opened()[0].closeCalls.Load(); n != 1 {
		t.Fatalf("timed-out surface closed %d times", n)
	}
	if r.State() != model.StateRunning {
		t.Fatalf("state = %s, want running", r.State())
	}
	if clock.pendingTimers() != 1 {
		t.Fatal("schedule not re-armed after a failed presentation")
	}
}

func TestOpenFailureContinuesSchedule(t *testing.T) {
	r, clock, win := newTestRunner(t, testDeck("Q1", "Q2", "Q3"), everySecond())
	win.failOpens.Store(1)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start = %v", err)
	}
	if len(win.contents()) != 0 {
		t.Fatal("failed open still delivered a card")
	}

	clock.Advance(time.Second)
	shown := win.shownCards()
	if len(shown) != 1 || shown[0].Content != "Q2" || shown[0].Current != 2 {
		t.Fatalf("after failure shown %+v, want Q2 at 2/3", shown)
	}
	if st := r.Status(); st.Shown != 1 {
		t.Fatalf("shown count = %d, want 1", st.Shown)
	}
}

func TestRecorderSeesEveryPresentation(t *testing.T) {
	var got []Presentation
	r, clock, _ := newTestRunner(t, testDeck("Q1", "Q2"), everySecond(), func(o *Options) {
		o.Recorder = func(p Presentation) { got = append(got, p) }
	})
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)

	if len(got) != 2 {
		t.Fatalf("recorded %d presentations, want 2", len(got))
	}
	if got[0].DeckID != "deck-1" || got[0].CardID != "a" || got[1].CardID != "b" {
		t.Fatalf("recorded %+v", got)
	}
	if !got[1].At.Equal(got[0].At.Add(time.Second)) {
		t.Fatalf("record times %s, %s", got[0].At, got[1].At)
	}
}

func TestContextCancelStopsRunner(t *testing.T) {
	r, _, win := newTestRunner(t, testDeck("Q1"), everySecond())
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	waitFor(t, "runner stop", func() bool { return r.State() == model.StateStopped })
	if n := win.opened()[0].closeCalls.Load(); n != 1 {
		t.Fatalf("surface closed %d times", n)
	}
}

func TestShuffleIsPermutationAndKeepsSource(t *testing.T) {
	deck := testDeck("a", "b", "c", "d", "e", "f", "g", "h")
	original := deck.Clone()

	for seed := uint64(0); seed < 20; seed++ {
		rnd := rand.New(rand.NewPCG(seed, seed+1))
		r, _, _ := newTestRunner(t, deck, model.RunSettings{Interval: 1, IntervalUnit: model.UnitMinutes, Shuffle: true}, func(o *Options) {
			o.Rand = rnd
		})

		var ids []string
		for _, c := range r.Cards() {
			ids = append(ids, c.ID)
		}
		sort.Strings(ids)
		var want []string
		for _, c := range original.Cards {
			want = append(want, c.ID)
		}
		if !equalStrings(ids, want) {
			t.Fatalf("seed %d: working set %v is not a permutation of %v", seed, ids, want)
		}
	}
	for i := range deck.Cards {
		if deck.Cards[i].ID != original.Cards[i].ID {
			t.Fatalf("source deck order changed at %d", i)
		}
	}
}

type fixedRand []int

func (f *fixedRand) IntN(n int) int {
	v := (*f)[0]
	*f = (*f)[1:]
	return v % n
}

func TestShuffleCardsFisherYates(t *testing.T) {
	cards := testDeck("1", "2", "3", "4").Cards
	// i=3 swaps with 0, i=2 with 2, i=1 with 0.
	rnd := fixedRand{0, 2, 0}
	got := ShuffleCards(cards, &rnd)

	var order []string
	for _, c := range got {
		order = append(order, c.Content)
	}
	want := []string{"2", "4", "3", "1"}
	if !equalStrings(order, want) {
		t.Fatalf("ShuffleCards = %v, want %v", order, want)
	}
	if cards[0].Content != "1" {
		t.Fatal("ShuffleCards mutated its input")
	}
}
