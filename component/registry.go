package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
)

// stopTimeout bounds each component's Stop call.
const stopTimeout = 10 * time.Second

type entry struct {
	component Component
	started   bool
}

// Registry manages components with deterministic ordering.
// Components are started in registration order and stopped in reverse order.
type Registry struct {
	entries []*entry
	lookup  map[string]*entry
	mu      sync.RWMutex
	log     *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		lookup: make(map[string]*entry),
		log:    logger.WithComponent("registry"),
	}
}

// Register adds a component. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.lookup[name]; exists {
		return errors.AlreadyExists("component", name)
	}

	e := &entry{component: c}
	r.entries = append(r.entries, e)
	r.lookup[name] = e

	r.log.Debug("component registered", logger.Fields(logger.FieldComponent, name))
	return nil
}

// InitializeAll calls Initialize on every component in registration order and
// returns the per-component results.
func (r *Registry) InitializeAll(ctx context.Context) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]bool, len(r.entries))
	for _, e := range r.entries {
		name := e.component.Name()
		ok, err := e.component.Initialize(ctx)
		if err != nil {
			return results, fmt.Errorf("initialize %s: %w", name, err)
		}
		results[name] = ok
	}
	return results, nil
}

// StartAll starts every Lifecycle component in registration order, stopping
// at the first failure.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("starting components", logger.Fields(logger.FieldCount, len(r.entries)))
	for _, e := range r.entries {
		name := e.component.Name()
		lc, ok := e.component.(Lifecycle)
		if !ok {
			e.started = true
			continue
		}

		if err := lc.Start(ctx); err != nil {
			r.log.Error("component start failed", logger.ErrorFields("start", err))
			return fmt.Errorf("start %s: %w", name, err)
		}
		e.started = true
		r.log.Debug("component started", logger.Fields(logger.FieldComponent, name))
	}
	return nil
}

// StopAll stops started components in reverse registration order. Every
// component is attempted; failures are joined into one error.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failures []error
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !e.started {
			continue
		}
		e.started = false

		lc, ok := e.component.(Lifecycle)
		if !ok {
			continue
		}

		name := e.component.Name()
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		err := lc.Stop(stopCtx)
		if err != nil && stderrors.Is(stopCtx.Err(), context.DeadlineExceeded) {
			err = errors.Timeout(name + " stop").WithCause(err)
		}
		cancel()
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			r.log.Error("component stop failed", logger.ErrorFields("stop", err))
			continue
		}
		r.log.Debug("component stopped", logger.Fields(logger.FieldComponent, name))
	}

	if len(failures) > 0 {
		return fmt.Errorf("shutdown errors: %w", stderrors.Join(failures...))
	}
	return nil
}

// StatusAll returns Status for every component in registration order.
func (r *Registry) StatusAll() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.component.Status())
	}
	return out
}

// HealthAll returns live health for every component. Components without a
// health check report healthy.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(r.entries))
	for _, e := range r.entries {
		if hc, ok := e.component.(HealthChecker); ok {
			out = append(out, hc.Health(ctx))
			continue
		}
		out = append(out, Health{Name: e.component.Name(), Status: StatusHealthy})
	}
	return out
}

// Get returns a registered component by name, or nil.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.lookup[name]; ok {
		return e.component
	}
	return nil
}

// All returns all components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Component, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.component)
	}
	return out
}
