package deckstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/syncstore"
)

const (
	// StoreID names the replicated decks value.
	StoreID = "decks"

	defaultFileMode = 0644
	defaultDirMode  = 0755
)

var (
	// ErrNotFound is returned by Get for an unknown deck id.
	ErrNotFound = errors.New("deckstore: deck not found")
	// ErrNoFilePath is returned by SaveToFile for a deck without an associated text file.
	ErrNoFilePath = errors.New("deckstore: no file path associated with deck")
)

// Collection is the durable, ordered set of decks backed by one JSON file.
// Every mutation rewrites the whole file. The in-memory value is a synced
// store, so other collections on the same bus converge on it.
//
// The file is not locked: two processes writing it concurrently race and the
// last completed write wins.
type Collection struct {
	path  string
	bus   syncstore.Broadcaster
	decks *syncstore.Store[[]model.Deck]

	// mu serializes read-modify-write cycles within this instance.
	mu sync.Mutex

	ready   chan struct{}
	loadErr error

	now   func() time.Time
	newID func() string
}

// Option customizes a Collection.
type Option func(*Collection)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// Open creates a collection for path and starts loading it in the
// background. Callers wait with WaitForReady. bus may be nil.
func Open(path string, bus syncstore.Broadcaster, opts ...Option) *Collection {
	c := &Collection{
		path:  path,
		bus:   bus,
		decks: syncstore.New[[]model.Deck](StoreID, []model.Deck{}, bus),
		ready: make(chan struct{}),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.load()
	return c
}

// WaitForReady blocks until the initial load has finished. It never
// re-triggers the load and is safe to call concurrently.
func (c *Collection) WaitForReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close detaches the collection from the bus.
func (c *Collection) Close() {
	c.decks.Close()
}

// Path returns the backing file path.
func (c *Collection) Path() string { return c.path }

// List returns a snapshot of all decks in insertion order.
func (c *Collection) List() []model.Deck {
	<-c.ready
	return cloneDecks(c.decks.Get())
}

// Get returns a copy of the deck with id.
func (c *Collection) Get(id string) (model.Deck, error) {
	<-c.ready
	for _, d := range c.decks.Get() {
		if d.ID == id {
			return d.Clone(), nil
		}
	}
	return model.Deck{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Find resolves a deck by id, falling back to a case-insensitive name match.
func (c *Collection) Find(ref string) (model.Deck, error) {
	if d, err := c.Get(ref); err == nil {
		return d, nil
	}
	for _, d := range c.decks.Get() {
		if strings.EqualFold(d.Name, ref) {
			return d.Clone(), nil
		}
	}
	return model.Deck{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Subscribe registers fn for deck list changes, delivering the current list
// immediately.
func (c *Collection) Subscribe(fn func([]model.Deck)) func() {
	return c.decks.Subscribe(fn)
}

// Create adds an empty deck and persists it.
func (c *Collection) Create(name string) (model.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultDeckName
	}
	now := c.now()
	deck := model.Deck{
		ID:             c.newID(),
		Name:           name,
		Cards:          []model.Card{},
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	if err := c.insert(deck); err != nil {
		return model.Deck{}, err
	}
	return deck.Clone(), nil
}

// NewCard builds a card with a fresh id and creation time. Line breaks in
// content are folded into spaces.
func (c *Collection) NewCard(content string) model.Card {
	return model.Card{
		ID:        c.newID(),
		Content:   SingleLine(content),
		CreatedAt: c.now(),
	}
}

// Update replaces the deck with the same id. An unknown id is logged and
// ignored; the caller is expected to refresh from List.
func (c *Collection) Update(deck model.Deck) error {
	if err := deck.Validate(); err != nil {
		return fmt.Errorf("deckstore: %w", err)
	}
	return c.mutate(deck.ID, func(decks []model.Deck) ([]model.Deck, bool) {
		idx := indexOf(decks, deck.ID)
		if idx < 0 {
			log.Printf("deckstore: update: deck %s not found", deck.ID)
			return nil, false
		}
		updated := deck.Clone()
		updated.LastModifiedAt = c.now()
		next := cloneDecks(decks)
		next[idx] = updated
		return next, true
	})
}

// Delete removes the deck with id. Deleting an unknown id is a no-op.
func (c *Collection) Delete(id string) error {
	return c.mutate(id, func(decks []model.Deck) ([]model.Deck, bool) {
		idx := indexOf(decks, id)
		if idx < 0 {
			return nil, false
		}
		next := make([]model.Deck, 0, len(decks)-1)
		next = append(next, decks[:idx]...)
		next = append(next, decks[idx+1:]...)
		return cloneDecks(next), true
	})
}

// ShownMark records that a card was presented at a point in time.
type ShownMark struct {
	DeckID string
	CardID string
	At     time.Time
}

// MarkShown sets lastShown on the referenced cards in a single write.
// Unknown decks or cards are skipped; an older mark never overwrites a newer one.
func (c *Collection) MarkShown(marks []ShownMark) error {
	if len(marks) == 0 {
		return nil
	}
	return c.mutate("", func(decks []model.Deck) ([]model.Deck, bool) {
		next := cloneDecks(decks)
		changed := false
		for _, m := range marks {
			di := indexOf(next, m.DeckID)
			if di < 0 {
				continue
			}
			ci := next[di].CardIndex(m.CardID)
			if ci < 0 {
				continue
			}
			card := &next[di].Cards[ci]
			if card.LastShownAt != nil && !m.At.After(*card.LastShownAt) {
				continue
			}
			at := m.At.UTC()
			card.LastShownAt = &at
			changed = true
		}
		return next, changed
	})
}

// SnapshotTo copies the current decks file to dstPath.
func (c *Collection) SnapshotTo(dstPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("deckstore: snapshot read: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), defaultDirMode); err != nil {
		return fmt.Errorf("deckstore: snapshot mkdir: %w", err)
	}
	return writeFileAtomic(dstPath, data)
}

func (c *Collection) insert(deck model.Deck) error {
	return c.mutate(deck.ID, func(decks []model.Deck) ([]model.Deck, bool) {
		next := cloneDecks(decks)
		return append(next, deck.Clone()), true
	})
}

// mutate runs fn on the current decks and, when it reports a change,
// persists the result before publishing it. A failed write leaves the
// in-memory value untouched.
func (c *Collection) mutate(deckID string, fn func([]model.Deck) ([]model.Deck, bool)) error {
	<-c.ready
	if c.loadErr != nil {
		return c.loadErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next, changed := fn(c.decks.Get())
	if !changed {
		return nil
	}
	if err := c.persist(next); err != nil {
		return err
	}
	c.decks.Set(next)
	c.announce(deckID)
	return nil
}

func (c *Collection) announce(deckID string) {
	if c.bus == nil {
		return
	}
	payload := map[string]string{"deckId": deckID}
	if err := c.bus.Emit(model.TopicDeckUpdated, payload); err != nil {
		log.Printf("deckstore: announce %s: %v", model.TopicDeckUpdated, err)
	}
}

func (c *Collection) load() {
	defer close(c.ready)

	if err := os.MkdirAll(filepath.Dir(c.path), defaultDirMode); err != nil {
		c.loadErr = fmt.Errorf("deckstore: mkdir: %w", err)
		return
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("deckstore: no decks file at %s, starting empty", c.path)
		if err := c.persist([]model.Deck{}); err != nil {
			c.loadErr = err
		}
		return
	}
	if err != nil {
		c.loadErr = fmt.Errorf("deckstore: read: %w", err)
		return
	}

	decks := []model.Deck{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &decks); err != nil {
			c.loadErr = fmt.Errorf("deckstore: decode %s: %w", c.path, err)
			return
		}
	}
	for i := range decks {
		if decks[i].Cards == nil {
			decks[i].Cards = []model.Card{}
		}
	}
	c.decks.Load(decks)
}

func (c *Collection) persist(decks []model.Deck) error {
	data, err := json.Marshal(decks)
	if err != nil {
		return fmt.Errorf("deckstore: encode: %w", err)
	}
	return writeFileAtomic(c.path, data)
}

// writeFileAtomic writes data to a temp file next to path, syncs it and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("deckstore: open tmp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("deckstore: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("deckstore: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("deckstore: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("deckstore: rename: %w", err)
	}
	return nil
}

func indexOf(decks []model.Deck, id string) int {
	for i, d := range decks {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func cloneDecks(decks []model.Deck) []model.Deck {
	out := make([]model.Deck, len(decks))
	for i, d := range decks {
		out[i] = d.Clone()
	}
	return out
}
