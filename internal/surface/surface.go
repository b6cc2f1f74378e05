package surface

import (
	"context"
	"errors"
)

// ErrClosed is returned when emitting to a closed surface.
var ErrClosed = errors.New("surface: closed")

// Options describes how a surface is opened.
type Options struct {
	Title       string
	Width       int
	Height      int
	Center      bool
	AlwaysOnTop bool
	Decorations bool
	Focus       bool
	Visible     bool
	SkipTaskbar bool
}

// Windower opens floating presentation surfaces.
type Windower interface {
	Open(ctx context.Context, id string, opts Options) (Surface, error)
}

// Surface is one opened presentation surface.
type Surface interface {
	// Ready is closed once the surface can receive payloads.
	Ready() <-chan struct{}
	// Emit delivers a named payload to the surface.
	Emit(topic string, payload any) error
	Show() error
	Hide() error
	// Close is idempotent.
	Close() error
	// Closed is closed when the surface goes away, by Close or by the user.
	Closed() <-chan struct{}
}

// CardContent is the card-content payload.
type CardContent struct {
	Content string `json:"content"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Deck    string `json:"deck,omitempty"`
}

// CardPopupOptions are the options a deck runner opens its card surface with.
func CardPopupOptions() Options {
	return Options{
		Title:       "Flashcard",
		Width:       400,
		Height:      300,
		Center:      true,
		AlwaysOnTop: true,
		Decorations: false,
		Focus:       true,
		Visible:     true,
		SkipTaskbar: true,
	}
}
