package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RunnerCommand is an out-of-band command for the current deck runner.
type RunnerCommand string

const (
	CommandPause  RunnerCommand = "pause"
	CommandResume RunnerCommand = "resume"
	CommandStop   RunnerCommand = "stop"
)

// ParseRunnerCommand accepts pause, resume or stop.
func ParseRunnerCommand(s string) (RunnerCommand, error) {
	switch c := RunnerCommand(strings.ToLower(strings.TrimSpace(s))); c {
	case CommandPause, CommandResume, CommandStop:
		return c, nil
	}
	return "", fmt.Errorf("unknown runner command %q", s)
}

// RunnerState is the lifecycle state of a deck runner.
type RunnerState string

const (
	StateIdle    RunnerState = "idle"
	StateRunning RunnerState = "running"
	StatePaused  RunnerState = "paused"
	StateStopped RunnerState = "stopped"
)

// RunnerStatus is a point-in-time snapshot of a runner.
type RunnerStatus struct {
	Active   bool          `json:"active"`
	DeckID   string        `json:"deckId,omitempty"`
	DeckName string        `json:"deckName,omitempty"`
	State    RunnerState   `json:"state,omitempty"`
	Position int           `json:"position,omitempty"` // 1-based position of the next card
	Total    int           `json:"total,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`
	Shown    int           `json:"shown,omitempty"`
}

// RunnerController drives whichever runner is current. It is the contract
// shared by the socket RPC and HTTP control surfaces.
type RunnerController interface {
	Send(cmd RunnerCommand) error
	Status() RunnerStatus
}

// DeckReader is the read side of the deck collection.
type DeckReader interface {
	WaitForReady(ctx context.Context) error
	List() []Deck
	Get(id string) (Deck, error)
}

// DeckWriter is the mutating side of the deck collection.
type DeckWriter interface {
	Create(name string) (Deck, error)
	Delete(id string) error
}

// DeckAPI is the deck contract exposed by the HTTP API.
type DeckAPI interface {
	DeckReader
	DeckWriter
}
