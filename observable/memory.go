package observable

import (
	"context"
	"fmt"

	"github.com/acn-rai/rai-memory/component"
)

// ComponentName is the registered name of the observable memory component.
const ComponentName = "ObservableMemory"

// Memory is the ObservableMemory component: the shared component contract
// around a behavior tracker.
type Memory struct {
	component.Base
	behavior *Behavior
}

var _ component.Component = (*Memory)(nil)

// NewMemory creates the component. A nil tracker gets a fresh one.
func NewMemory(behavior *Behavior) *Memory {
	if behavior == nil {
		behavior = NewBehavior()
	}
	return &Memory{
		Base:     component.NewBase(ComponentName),
		behavior: behavior,
	}
}

// Behavior returns the underlying tracker.
func (m *Memory) Behavior() *Behavior {
	return m.behavior
}

// Health reports the number of recorded markers and decisions.
func (m *Memory) Health(ctx context.Context) component.Health {
	m.behavior.mu.RLock()
	markers, decisions := len(m.behavior.history), len(m.behavior.decisions)
	m.behavior.mu.RUnlock()

	return component.Health{
		Name:    ComponentName,
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d markers, %d decisions", markers, decisions),
	}
}
