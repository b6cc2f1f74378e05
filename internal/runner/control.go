package runner

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/tinytelemetry/cardpop/internal/broadcast"
	"github.com/tinytelemetry/cardpop/internal/model"
)

// Bus is the broadcast contract the control channel uses.
type Bus interface {
	Emit(topic string, payload any) error
	Listen(topic string, handler broadcast.Handler) func()
}

// ControlChannel delivers deck-runner-command events to whichever runner is
// current in the registry. Commands with no current runner are dropped.
type ControlChannel struct {
	bus      Bus
	registry *Registry

	mu       sync.Mutex
	unlisten func()
}

// NewControlChannel wires a control channel. Call Start to begin listening.
func NewControlChannel(bus Bus, registry *Registry) *ControlChannel {
	return &ControlChannel{bus: bus, registry: registry}
}

// Start subscribes to deck-runner-command. Calling it twice is a no-op.
func (c *ControlChannel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unlisten != nil {
		return
	}
	c.unlisten = c.bus.Listen(model.TopicRunnerCommand, c.handle)
}

// Stop unsubscribes.
func (c *ControlChannel) Stop() {
	c.mu.Lock()
	unlisten := c.unlisten
	c.unlisten = nil
	c.mu.Unlock()
	if unlisten != nil {
		unlisten()
	}
}

// Send broadcasts cmd for delivery to the current runner.
func (c *ControlChannel) Send(cmd model.RunnerCommand) error {
	if _, err := model.ParseRunnerCommand(string(cmd)); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	return c.bus.Emit(model.TopicRunnerCommand, cmd)
}

// Status reports the current runner, or an inactive status without one.
func (c *ControlChannel) Status() model.RunnerStatus {
	cur := c.registry.Current()
	if cur == nil {
		return model.RunnerStatus{}
	}
	return cur.Status()
}

// asyncResumer is implemented by runners that can resume without waiting
// for the next presentation.
type asyncResumer interface {
	ResumeAsync()
}

// Dispatch applies cmd to the current runner directly. It reports false if
// there was no runner to receive it.
func (c *ControlChannel) Dispatch(cmd model.RunnerCommand) bool {
	return c.dispatch(cmd, false)
}

func (c *ControlChannel) dispatch(cmd model.RunnerCommand, fromBus bool) bool {
	cur := c.registry.Current()
	if cur == nil {
		return false
	}
	switch cmd {
	case model.CommandPause:
		cur.Pause()
	case model.CommandResume:
		// Commands arrive in order on one listener goroutine; a resume that
		// waited for its popup would hold up a stop sent right behind it.
		if ar, ok := cur.(asyncResumer); ok && fromBus {
			ar.ResumeAsync()
		} else {
			cur.Resume()
		}
	case model.CommandStop:
		cur.Stop()
		c.registry.Release(cur)
	default:
		log.Printf("runner: unknown command %q", cmd)
		return false
	}
	return true
}

func (c *ControlChannel) handle(ev broadcast.Event) {
	var raw string
	if err := json.Unmarshal(ev.Payload, &raw); err != nil {
		log.Printf("runner: bad %s payload: %v", ev.Topic, err)
		return
	}
	cmd, err := model.ParseRunnerCommand(raw)
	if err != nil {
		log.Printf("runner: %v", err)
		return
	}
	c.dispatch(cmd, true)
}
