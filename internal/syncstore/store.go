package syncstore

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/tinytelemetry/cardpop/internal/broadcast"
	"github.com/tinytelemetry/cardpop/internal/model"
)

// Broadcaster is the bus contract a Store replicates over.
type Broadcaster interface {
	Emit(topic string, payload any) error
	Listen(topic string, handler broadcast.Handler) func()
}

// envelope is the wire form of one replicated write.
type envelope[T any] struct {
	Origin  string `json:"origin"`
	Version uint64 `json:"version"`
	Value   T      `json:"value"`
}

// Store holds one value of type T and notifies subscribers on change.
// Instances sharing an id converge through store-update:<id> broadcasts,
// last write wins. Values handed to subscribers must be treated as
// read-only; write a new value with Set instead of mutating in place.
type Store[T any] struct {
	id     string
	origin string
	bus    Broadcaster

	mu      sync.Mutex
	value   T
	version uint64
	subs    map[uint64]func(T)
	nextSub uint64

	// applied is the newest version installed from each remote origin.
	// Broadcasts from one origin can reach the bus out of version order when
	// writes race; anything at or below applied[origin] is stale.
	applied map[string]uint64

	unlisten  func()
	closeOnce sync.Once
}

// New creates a store. A nil bus gives a purely local store.
func New[T any](id string, initial T, bus Broadcaster) *Store[T] {
	s := &Store[T]{
		id:      id,
		origin:  uuid.NewString(),
		bus:     bus,
		value:   initial,
		subs:    make(map[uint64]func(T)),
		applied: make(map[string]uint64),
	}
	if bus != nil {
		s.unlisten = bus.Listen(model.StoreTopic(id), s.applyRemote)
	}
	return s
}

// ID returns the logical store id.
func (s *Store[T]) ID() string { return s.id }

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value, notifies local subscribers before returning, and
// then broadcasts the value to other instances.
func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	s.version++
	version := s.version
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, v)
	s.publish(v, version)
}

// Load replaces the value and notifies local subscribers without
// broadcasting. It hydrates an instance from storage that every instance
// already shares, so other instances must not treat it as a write.
func (s *Store[T]) Load(v T) {
	s.mu.Lock()
	s.value = v
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, v)
}

// Update applies fn to the current value and stores the result. fn runs
// under the store lock and must not call back into the store.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	v := fn(s.value)
	s.value = v
	s.version++
	version := s.version
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, v)
	s.publish(v, version)
}

// Subscribe registers fn and calls it immediately with the current value.
// The returned func unsubscribes and may be called more than once.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	current := s.value
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Close detaches the store from the bus. Local Get/Set keep working.
func (s *Store[T]) Close() {
	s.closeOnce.Do(func() {
		if s.unlisten != nil {
			s.unlisten()
		}
	})
}

func (s *Store[T]) publish(v T, version uint64) {
	if s.bus == nil {
		return
	}
	env := envelope[T]{Origin: s.origin, Version: version, Value: v}
	if err := s.bus.Emit(model.StoreTopic(s.id), env); err != nil {
		log.Printf("syncstore: broadcast %s failed: %v", s.id, err)
	}
}

// applyRemote installs a value written by another instance unless a newer
// write from the same instance was already applied. It never re-broadcasts.
func (s *Store[T]) applyRemote(ev broadcast.Event) {
	var env envelope[T]
	if err := ev.Decode(&env); err != nil {
		log.Printf("syncstore: %s: %v", s.id, err)
		return
	}
	if env.Origin == s.origin {
		return
	}

	s.mu.Lock()
	if env.Version <= s.applied[env.Origin] {
		s.mu.Unlock()
		return
	}
	s.applied[env.Origin] = env.Version
	s.value = env.Value
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, env.Value)
}

func (s *Store[T]) snapshotSubs() []func(T) {
	out := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify[T any](subs []func(T), v T) {
	for _, fn := range subs {
		fn(v)
	}
}
