package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/syncstore"
)

// StoreID names the replicated preferences value.
const StoreID = "preferences"

// ErrUnknownTheme is returned by SetTheme for an id no theme carries.
var ErrUnknownTheme = errors.New("prefs: unknown theme")

// Preferences is the persisted preferences document.
type Preferences struct {
	Theme        string  `json:"theme"`
	CustomThemes []Theme `json:"customThemes"`
}

// Defaults returns the preferences used when no file exists.
func Defaults() Preferences {
	return Preferences{Theme: model.DefaultTheme, CustomThemes: []Theme{}}
}

// ThemeChanged is the theme-changed payload.
type ThemeChanged struct {
	ThemeID string `json:"themeId"`
}

// Store owns preferences.json.
type Store struct {
	path  string
	bus   syncstore.Broadcaster
	prefs *syncstore.Store[Preferences]

	mu    sync.Mutex
	extra []Theme

	// write serializes read-persist-set cycles.
	write sync.Mutex
}

// Open loads path. A missing or unreadable file falls back to defaults,
// which are written back.
func Open(path string, bus syncstore.Broadcaster) (*Store, error) {
	s := &Store{
		path:  path,
		bus:   bus,
		prefs: syncstore.New[Preferences](StoreID, Defaults(), bus),
	}

	p, err := readPreferences(path)
	if err != nil {
		log.Printf("prefs: %v, using defaults", err)
		p = Defaults()
		if err := s.persist(p); err != nil {
			s.prefs.Close()
			return nil, err
		}
	}
	s.prefs.Load(p)
	return s, nil
}

// Close detaches the store from the bus.
func (s *Store) Close() { s.prefs.Close() }

// Get returns the current preferences.
func (s *Store) Get() Preferences { return s.prefs.Get() }

// AddThemes makes extra themes available without persisting them.
func (s *Store) AddThemes(themes []Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = append(s.extra, themes...)
}

// Themes lists built-in, persisted custom and extra themes, in that order.
func (s *Store) Themes() []Theme {
	s.mu.Lock()
	extra := append([]Theme(nil), s.extra...)
	s.mu.Unlock()

	out := BuiltinThemes()
	out = append(out, s.prefs.Get().CustomThemes...)
	return append(out, extra...)
}

// Theme resolves id, falling back to the first built-in theme.
func (s *Store) Theme(id string) Theme {
	if t, ok := s.lookup(id); ok {
		return t
	}
	return builtinThemes[0]
}

// Current returns the active theme.
func (s *Store) Current() Theme {
	return s.Theme(s.prefs.Get().Theme)
}

// SetTheme persists id as the active theme, replicates it and announces
// theme-changed.
func (s *Store) SetTheme(id string) error {
	if _, ok := s.lookup(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTheme, id)
	}

	s.write.Lock()
	p := s.prefs.Get()
	p.Theme = id
	if err := s.persist(p); err != nil {
		s.write.Unlock()
		return err
	}
	s.prefs.Set(p)
	s.write.Unlock()

	if s.bus != nil {
		if err := s.bus.Emit(model.TopicThemeChanged, ThemeChanged{ThemeID: id}); err != nil {
			log.Printf("prefs: announce theme: %v", err)
		}
	}
	return nil
}

// Subscribe calls fn with the active theme now and on every change.
func (s *Store) Subscribe(fn func(Theme)) func() {
	return s.prefs.Subscribe(func(p Preferences) {
		fn(s.Theme(p.Theme))
	})
}

func (s *Store) lookup(id string) (Theme, bool) {
	for _, t := range s.Themes() {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

func readPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preferences{}, fmt.Errorf("read %s: %w", path, err)
	}
	p := Defaults()
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if p.CustomThemes == nil {
		p.CustomThemes = []Theme{}
	}
	return p, nil
}

func (s *Store) persist(p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("prefs: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("prefs: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("prefs: rename: %w", err)
	}
	return nil
}
