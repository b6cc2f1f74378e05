package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestEmitDeliversInOrderPerListener(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got []int
	bus.Listen("numbers", func(ev Event) {
		var n int
		if err := ev.Decode(&n); err != nil {
			t.Errorf("Decode: %v", err)
			return
		}
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		if err := bus.Emit("numbers", i); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 10
	})
	mu.Lock()
	defer mu.Unlock()
	for i, n := range got {
		if n != i {
			t.Fatalf("got %v, want 0..9 in order", got)
		}
	}
}

func TestEmitOnlyReachesTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	hit := make(chan string, 2)
	bus.Listen("a", func(ev Event) { hit <- ev.Topic })
	bus.Listen("b", func(ev Event) { hit <- ev.Topic })

	if err := bus.Emit("a", "x"); err != nil {
		t.Fatal(err)
	}
	select {
	case topic := <-hit:
		if topic != "a" {
			t.Fatalf("delivered to %q", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
	select {
	case topic := <-hit:
		t.Fatalf("unexpected delivery to %q", topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnlistenIsIdempotent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	unlisten := bus.Listen("t", func(Event) {})
	if n := bus.ListenerCount("t"); n != 1 {
		t.Fatalf("ListenerCount = %d, want 1", n)
	}
	unlisten()
	unlisten()
	if n := bus.ListenerCount("t"); n != 0 {
		t.Fatalf("ListenerCount = %d, want 0", n)
	}
}

func TestEmitNeverBlocksOnSlowListener(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	release := make(chan struct{})
	bus.Listen("slow", func(Event) { <-release })
	defer close(release)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			_ = bus.Emit("slow", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow listener")
	}
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	got := make(chan int, 2)
	bus.Listen("p", func(ev Event) {
		var n int
		_ = ev.Decode(&n)
		if n == 0 {
			panic("boom")
		}
		got <- n
	})
	_ = bus.Emit("p", 0)
	_ = bus.Emit("p", 1)

	select {
	case n := <-got:
		if n != 1 {
			t.Fatalf("got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery stopped after panic")
	}
}

func TestEmitAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()
	if err := bus.Emit("x", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Emit after Close = %v, want ErrClosed", err)
	}
}
