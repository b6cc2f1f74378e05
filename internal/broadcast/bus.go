package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
)

// DefaultQueueSize is the per-listener event buffer.
const DefaultQueueSize = 256

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("broadcast: bus closed")

// Event is one named payload delivered to listeners. Payload is the JSON
// encoding of the emitted value, so listeners never share memory with the
// emitter.
type Event struct {
	Topic   string
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("broadcast: decode %s: %w", e.Topic, err)
	}
	return nil
}

// Handler receives events for one topic.
type Handler func(Event)

// Bus is a process-local named-topic event bus. Emit never blocks: each
// listener owns a buffered queue drained by its own goroutine, so delivery is
// ordered per listener and unordered across listeners. A full queue drops
// the event.
type Bus struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	nextID    uint64
	listeners map[string]map[uint64]*listener
	queueSize int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type listener struct {
	topic    string
	handler  Handler
	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
}

// NewBus creates a bus. queueSize <= 0 uses DefaultQueueSize.
func NewBus(queueSize ...int) *Bus {
	size := DefaultQueueSize
	if len(queueSize) > 0 && queueSize[0] > 0 {
		size = queueSize[0]
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[string]map[uint64]*listener),
		queueSize: size,
	}
}

// Emit publishes payload on topic to every current listener.
func (b *Bus) Emit(topic string, payload any) error {
	if b.ctx.Err() != nil {
		return ErrClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broadcast: marshal %s: %w", topic, err)
	}
	ev := Event{Topic: topic, Payload: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.listeners[topic] {
		select {
		case l.events <- ev:
		default:
			log.Printf("broadcast: dropped %s event, listener queue full", topic)
		}
	}
	return nil
}

// Listen registers handler for topic. The returned func unregisters it and
// is safe to call more than once.
func (b *Bus) Listen(topic string, handler Handler) func() {
	l := &listener{
		topic:   topic,
		handler: handler,
		events:  make(chan Event, b.queueSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.listeners[topic] == nil {
		b.listeners[topic] = make(map[uint64]*listener)
	}
	b.listeners[topic][id] = l
	b.mu.Unlock()

	b.wg.Add(1)
	go b.deliver(l)

	return func() {
		b.mu.Lock()
		if byID := b.listeners[topic]; byID != nil {
			delete(byID, id)
			if len(byID) == 0 {
				delete(b.listeners, topic)
			}
		}
		b.mu.Unlock()
		l.stop()
	}
}

// ListenerCount reports how many listeners are registered for topic.
func (b *Bus) ListenerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}

// Close stops all delivery goroutines. Pending events are discarded.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
	})
}

func (b *Bus) deliver(l *listener) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-l.done:
			return
		case ev := <-l.events:
			b.dispatch(l, ev)
		}
	}
}

func (b *Bus) dispatch(l *listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("broadcast: %s handler panicked: %v", ev.Topic, r)
		}
	}()
	l.handler(ev)
}

func (l *listener) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
