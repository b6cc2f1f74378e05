package syncstore

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/cardpop/internal/broadcast"
	"github.com/tinytelemetry/cardpop/internal/model"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestSubscribeDeliversImmediately(t *testing.T) {
	s := New("local", 7, nil)

	var got []int
	unsub := s.Subscribe(func(v int) { got = append(got, v) })
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("initial delivery = %v, want [7]", got)
	}

	s.Set(8)
	s.Update(func(v int) int { return v + 1 })
	if len(got) != 3 || got[1] != 8 || got[2] != 9 {
		t.Fatalf("deliveries = %v, want [7 8 9]", got)
	}

	unsub()
	unsub()
	s.Set(10)
	if len(got) != 3 {
		t.Fatalf("delivered after unsubscribe: %v", got)
	}
	if s.Get() != 10 {
		t.Fatalf("Get() = %d, want 10", s.Get())
	}
}

func TestSetNotifiesBeforeReturning(t *testing.T) {
	s := New("sync", "a", nil)
	seen := ""
	s.Subscribe(func(v string) { seen = v })
	s.Set("b")
	if seen != "b" {
		t.Fatalf("subscriber saw %q after Set returned, want b", seen)
	}
}

func TestInstancesConverge(t *testing.T) {
	bus := broadcast.NewBus()
	defer bus.Close()

	a := New("decks", []string{}, bus)
	b := New("decks", []string{}, bus)
	defer a.Close()
	defer b.Close()

	var mu sync.Mutex
	var bSeen [][]string
	b.Subscribe(func(v []string) {
		mu.Lock()
		bSeen = append(bSeen, v)
		mu.Unlock()
	})

	a.Set([]string{"x", "y"})

	waitFor(t, func() bool {
		got := b.Get()
		return len(got) == 2 && got[0] == "x" && got[1] == "y"
	})
	mu.Lock()
	n := len(bSeen)
	mu.Unlock()
	if n != 2 {
		t.Fatalf("b notified %d times, want 2 (initial + remote)", n)
	}
}

func TestRemoteApplyDoesNotRebroadcast(t *testing.T) {
	bus := broadcast.NewBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	unlisten := bus.Listen(model.StoreTopic("prefs"), func(broadcast.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer unlisten()

	a := New("prefs", 0, bus)
	b := New("prefs", 0, bus)
	defer a.Close()
	defer b.Close()

	a.Set(1)
	waitFor(t, func() bool { return b.Get() == 1 })

	// Allow any echo to arrive before counting.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("saw %d broadcasts, want exactly 1", count)
	}
	if a.Get() != 1 {
		t.Fatalf("a changed by its own broadcast: %d", a.Get())
	}
}

func TestDifferentIDsAreIsolated(t *testing.T) {
	bus := broadcast.NewBus()
	defer bus.Close()

	a := New("one", 0, bus)
	b := New("two", 0, bus)
	defer a.Close()
	defer b.Close()

	a.Set(5)
	time.Sleep(50 * time.Millisecond)
	if b.Get() != 0 {
		t.Fatalf("store two picked up store one's write: %d", b.Get())
	}
}

type failingBus struct{}

func (failingBus) Emit(string, any) error                  { return broadcast.ErrClosed }
func (failingBus) Listen(string, broadcast.Handler) func() { return func() {} }

func TestBroadcastFailureDoesNotFailSet(t *testing.T) {
	s := New("x", 0, failingBus{})
	s.Set(3)
	if s.Get() != 3 {
		t.Fatalf("Get() = %d, want 3", s.Get())
	}
}

type recordingBus struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (b *recordingBus) Emit(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.events = append(b.events, broadcast.Event{Topic: topic, Payload: data})
	b.mu.Unlock()
	return nil
}

func (b *recordingBus) Listen(string, broadcast.Handler) func() { return func() {} }

func TestStaleRemoteWriteIsIgnored(t *testing.T) {
	rec := &recordingBus{}
	a := New("n", 0, rec)
	a.Set(1)
	a.Set(2)
	if len(rec.events) != 2 {
		t.Fatalf("recorded %d broadcasts, want 2", len(rec.events))
	}

	b := New("n", 0, nil)
	b.applyRemote(rec.events[1])
	b.applyRemote(rec.events[0])
	if b.Get() != 2 {
		t.Fatalf("b = %d after out-of-order delivery, want 2", b.Get())
	}
}

func TestRacingSetsConverge(t *testing.T) {
	bus := broadcast.NewBus()
	defer bus.Close()

	a := New("n", 0, bus)
	b := New("n", 0, bus)
	defer a.Close()
	defer b.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	a.Subscribe(func(v int) {
		if v == 1 {
			close(entered)
			<-release
		}
	})

	done := make(chan struct{})
	go func() {
		a.Set(1)
		close(done)
	}()
	<-entered
	a.Set(2)
	close(release)
	<-done

	waitFor(t, func() bool { return b.Get() == 2 })
	// Let the delayed broadcast of 1 land.
	time.Sleep(50 * time.Millisecond)
	if a.Get() != 2 || b.Get() != 2 {
		t.Fatalf("diverged: a=%d b=%d", a.Get(), b.Get())
	}
}
