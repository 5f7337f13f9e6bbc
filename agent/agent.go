// Package agent implements BasicRAIAgent, an agent that remembers its
// exchanges in the memory graph and records its own behavior, and
// MultiAgentRai, which lets several agents answer over one shared graph.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/connectors/vectorstore"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/memory"
	"github.com/acn-rai/rai-memory/observable"
	"github.com/acn-rai/rai-memory/protocols"
)

// ComponentName is the default registered name of an agent.
const ComponentName = "BasicRAIAgent"

// maxLabel bounds node labels derived from messages.
const maxLabel = 80

// Response is an agent's answer to one message.
type Response struct {
	Agent          string                      `json:"agent"`
	DecisionID     string                      `json:"decision_id"`
	Text           string                      `json:"text"`
	ObservationID  string                      `json:"observation_id"`
	DecisionNodeID string                      `json:"decision_node_id"`
	Recalled       []vectorstore.Hit           `json:"recalled,omitempty"`
	Markers        []observable.BehaviorMarker `json:"markers,omitempty"`
}

// Content returns the answer text.
func (r *Response) Content() string { return r.Text }

var _ observable.ContentProvider = (*Response)(nil)

// Agent is the BasicRAIAgent component.
type Agent struct {
	component.Base

	graph       protocols.GraphMemory
	behavior    protocols.BehaviorTracker
	index       protocols.VectorIndex
	responder   Responder
	recallLimit int
	name        string
	log         *logger.Logger
}

var _ component.Component = (*Agent)(nil)

// Option configures an Agent.
type Option func(*Agent)

// WithName overrides the component name, e.g. to tell agents apart.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

// WithResponder sets how answers are produced. The default echoes.
func WithResponder(r Responder) Option {
	return func(a *Agent) { a.responder = r }
}

// WithIndex enables recall of related memories before answering.
func WithIndex(idx protocols.VectorIndex, limit int) Option {
	return func(a *Agent) {
		a.index = idx
		a.recallLimit = limit
	}
}

// New creates an agent writing to graph and recording to behavior.
func New(graph protocols.GraphMemory, behavior protocols.BehaviorTracker, opts ...Option) *Agent {
	a := &Agent{
		graph:     graph,
		behavior:  behavior,
		responder: EchoResponder{},
		name:      ComponentName,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Base = component.NewBase(a.name)
	a.log = logger.WithComponent(a.name)
	return a
}

// Respond answers message for ownerID and remembers the exchange as an
// observation node linked to a decision node.
func (a *Agent) Respond(ctx context.Context, ownerID, message string) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.InvalidInput("message", "message must not be empty")
	}

	start := time.Now()
	dc := a.behavior.CaptureContext(ctx, message)
	resp := &Response{Agent: a.name, DecisionID: dc.DecisionID}
	log := a.log.WithFields(logger.Fields(logger.FieldOwnerID, ownerID, "decision_id", dc.DecisionID))

	recalled := a.recall(ctx, dc.DecisionID, ownerID, message, resp)

	text, err := a.responder.Respond(ctx, Request{OwnerID: ownerID, Message: message, Recalled: recalled})
	if err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}
	resp.Text = text
	_ = a.behavior.AddStep(dc.DecisionID, "respond")

	resp.Markers = a.behavior.ExtractMarkers(resp)
	a.behavior.Record(ctx, resp.Markers)

	confidence := 0.5
	if len(resp.Markers) > 0 {
		confidence = resp.Markers[0].Confidence
	}
	_ = a.behavior.SetConfidence(dc.DecisionID, "response", confidence)

	if err := a.remember(ctx, ownerID, message, resp, confidence); err != nil {
		return nil, err
	}
	_ = a.behavior.AddStep(dc.DecisionID, "remember")

	fields := logger.DurationFields("respond", time.Since(start))
	fields[logger.FieldNodeID] = resp.DecisionNodeID
	fields["recalled"] = len(resp.Recalled)
	log.Info("responded", fields)
	return resp, nil
}

// recall searches the index and returns the formatted hits. Recall failures
// are logged and answered without memories.
func (a *Agent) recall(ctx context.Context, decisionID, ownerID, message string, resp *Response) string {
	if a.index == nil || a.recallLimit <= 0 {
		return ""
	}

	hits, err := a.index.Search(ctx, ownerID, message, a.recallLimit)
	if err != nil {
		a.log.Warn("recall failed", logger.ErrorFields("recall", err))
		return ""
	}
	resp.Recalled = hits

	_ = a.behavior.AddStep(decisionID, fmt.Sprintf("recall: %d memories", len(hits)))
	if len(hits) > 0 {
		_ = a.behavior.SetConfidence(decisionID, "recall", float64(hits[0].Similarity))
	}
	return vectorstore.FormatHits(hits, ownerID, message)
}

// remember stores the exchange. Recalled nodes reinforce the decision,
// weighted by their similarity.
func (a *Agent) remember(ctx context.Context, ownerID, message string, resp *Response, confidence float64) error {
	obsID, err := a.graph.CreateNode(ctx, memory.NodeObservation, label(message), map[string]interface{}{
		"owner_id": ownerID,
		"message":  message,
	})
	if err != nil {
		return fmt.Errorf("store observation: %w", err)
	}

	decID, err := a.graph.CreateNode(ctx, memory.NodeDecision, label(resp.Text), map[string]interface{}{
		"agent":       a.name,
		"decision_id": resp.DecisionID,
		"response":    resp.Text,
	})
	if err != nil {
		return fmt.Errorf("store decision: %w", err)
	}

	if _, err := a.graph.CreateRelationship(ctx, obsID, decID, memory.RelExtends,
		memory.WithConfidence(confidence), memory.WithLabel("answered by")); err != nil {
		return fmt.Errorf("link decision: %w", err)
	}

	for _, hit := range resp.Recalled {
		if hit.NodeID == obsID || hit.NodeID == decID {
			continue
		}
		if _, err := a.graph.CreateRelationship(ctx, hit.NodeID, decID, memory.RelReinforces,
			memory.WithWeight(float64(hit.Similarity))); err != nil {
			a.log.Debug("recalled node not in graph", logger.Fields(logger.FieldNodeID, hit.NodeID))
		}
	}

	resp.ObservationID = obsID
	resp.DecisionNodeID = decID
	return nil
}

func label(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLabel {
		return s
	}
	return string(r[:maxLabel-3]) + "..."
}
