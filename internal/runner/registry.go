package runner

import (
	"sync"

	"github.com/tinytelemetry/cardpop/internal/model"
)

// Runner is what the registry and control channel drive.
type Runner interface {
	Pause()
	Resume()
	Stop()
	Status() model.RunnerStatus
}

// Registry holds the single current runner of a process.
type Registry struct {
	mu      sync.Mutex
	current Runner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Swap installs r as current and stops the runner it replaces. The previous
// runner is stopped outside the lock, after r is already visible.
func (g *Registry) Swap(r Runner) Runner {
	g.mu.Lock()
	prev := g.current
	g.current = r
	g.mu.Unlock()

	if prev != nil && prev != r {
		prev.Stop()
	}
	return prev
}

// Current returns the current runner, or nil.
func (g *Registry) Current() Runner {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Release clears the slot if r is still current. It reports whether it did.
func (g *Registry) Release(r Runner) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != r {
		return false
	}
	g.current = nil
	return true
}

// StopCurrent stops and clears the current runner, if any.
func (g *Registry) StopCurrent() {
	g.mu.Lock()
	cur := g.current
	g.current = nil
	g.mu.Unlock()
	if cur != nil {
		cur.Stop()
	}
}
