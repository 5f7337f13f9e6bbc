package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/protocols"
)

// MultiAgentName is the registered name of the multi-agent coordinator.
const MultiAgentName = "MultiAgentRai"

// MultiAgent asks several agents sharing one graph the same question and
// lets the graph learn from all their answers.
type MultiAgent struct {
	component.Base

	graph protocols.GraphMemory
	log   *logger.Logger

	mu     sync.RWMutex
	agents []*Agent
	names  map[string]struct{}
}

var _ component.Component = (*MultiAgent)(nil)

// NewMultiAgent creates a coordinator over graph.
func NewMultiAgent(graph protocols.GraphMemory) *MultiAgent {
	return &MultiAgent{
		Base:  component.NewBase(MultiAgentName),
		graph: graph,
		log:   logger.WithComponent(MultiAgentName),
		names: make(map[string]struct{}),
	}
}

// Add registers an agent. Agent names must be unique.
func (m *MultiAgent) Add(a *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.names[a.Name()]; exists {
		return errors.AlreadyExists("agent", a.Name())
	}
	m.names[a.Name()] = struct{}{}
	m.agents = append(m.agents, a)
	return nil
}

// Agents returns the agent names in the order they were added.
func (m *MultiAgent) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.agents))
	for i, a := range m.agents {
		names[i] = a.Name()
	}
	return names
}

// BroadcastResult holds every agent's answer and the learning cycle that followed.
type BroadcastResult struct {
	Responses []*Response `json:"responses"` // in agent order; nil where the agent failed
	Cycle     int         `json:"cycle"`
}

// Broadcast asks every agent concurrently, then runs one learning cycle.
// Agent failures are joined into the returned error; answers from the other
// agents are still returned.
func (m *MultiAgent) Broadcast(ctx context.Context, ownerID, message string) (*BroadcastResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.InvalidInput("message", "message must not be empty")
	}

	m.mu.RLock()
	agents := append([]*Agent(nil), m.agents...)
	m.mu.RUnlock()

	result := &BroadcastResult{Responses: make([]*Response, len(agents))}
	errs := make([]error, len(agents))

	var wg sync.WaitGroup
	for i, a := range agents {
		wg.Add(1)
		go func(i int, a *Agent) {
			defer wg.Done()
			resp, err := a.Respond(ctx, ownerID, message)
			if err != nil {
				errs[i] = fmt.Errorf("agent %s: %w", a.Name(), err)
				return
			}
			result.Responses[i] = resp
		}(i, a)
	}
	wg.Wait()

	result.Cycle = m.graph.RunLearningCycle(ctx)

	err := stderrors.Join(errs...)
	if err != nil {
		m.log.Warn("broadcast had failures", logger.ErrorFields("broadcast", err))
	}
	m.log.Info("broadcast", logger.Fields("agents", len(agents), "cycle", result.Cycle))
	return result, err
}
