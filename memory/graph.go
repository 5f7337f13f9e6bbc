package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
)

// Learning cycle limits.
const (
	MaxLearningConfidence  = 0.95
	LearningConfidenceStep = 0.05
	MaxRelationshipWeight  = 0.9
	RelationshipWeightStep = 0.02
)

// EventType names a graph change delivered to subscribers.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventEvolve EventType = "evolve"
)

// Event is delivered to subscribers. Node is a copy.
type Event struct {
	Type  EventType  `json:"event"`
	Node  MemoryNode `json:"node"`
	Cycle int        `json:"cycle"`
}

// Subscriber receives graph events. Returned errors are logged and dropped.
type Subscriber func(ctx context.Context, ev Event) error

type subscription struct {
	id int
	fn Subscriber
}

// Graph is the in-memory agent memory graph. It is safe for concurrent use;
// subscribers run synchronously on the caller's goroutine, outside the lock.
type Graph struct {
	mu            sync.RWMutex
	nodes         map[string]*MemoryNode
	order         []string
	relationships map[string]*MemoryRelationship
	relOrder      []string
	cycles        int

	subMu  sync.RWMutex
	subs   []subscription
	nextID int

	now func() time.Time
	log *logger.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GraphOption {
	return func(g *Graph) { g.now = now }
}

// WithLogger overrides the graph logger.
func WithLogger(l *logger.Logger) GraphOption {
	return func(g *Graph) { g.log = l }
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		nodes:         make(map[string]*MemoryNode),
		relationships: make(map[string]*MemoryRelationship),
		now:           time.Now,
		log:           logger.WithComponent("memory-graph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateNode adds a node and returns its ID.
func (g *Graph) CreateNode(ctx context.Context, nodeType, label string, content interface{}, opts ...NodeOption) (string, error) {
	if nodeType == "" {
		return "", errors.InvalidInput("type", "node type is required")
	}

	now := g.now()
	node := &MemoryNode{
		ID:        uuid.New().String(),
		Type:      nodeType,
		Label:     label,
		Content:   content,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(node)
	}
	if len(node.Metadata) == 0 {
		node.Metadata = DefaultMetadata()
	}

	g.mu.Lock()
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	snapshot := node.clone()
	cycle := g.cycles
	g.mu.Unlock()

	g.notify(ctx, Event{Type: EventCreate, Node: snapshot, Cycle: cycle})
	return node.ID, nil
}

// UpdateNode applies a partial update to an existing node.
func (g *Graph) UpdateNode(ctx context.Context, id string, upd NodeUpdate) error {
	g.mu.Lock()
	node, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return errors.NotFound("memory node", id)
	}

	if upd.Type != nil {
		node.Type = *upd.Type
	}
	if upd.Label != nil {
		node.Label = *upd.Label
	}
	if upd.Status != nil {
		node.Status = *upd.Status
	}
	if upd.Content != nil {
		node.Content = upd.Content
	}
	if len(upd.Metadata) > 0 {
		if node.Metadata == nil {
			node.Metadata = make(map[string]interface{}, len(upd.Metadata))
		}
		for k, v := range upd.Metadata {
			node.Metadata[k] = v
		}
	}
	node.UpdatedAt = g.now()
	snapshot := node.clone()
	cycle := g.cycles
	g.mu.Unlock()

	g.notify(ctx, Event{Type: EventUpdate, Node: snapshot, Cycle: cycle})
	return nil
}

// CreateRelationship links two existing nodes and returns the relationship ID.
func (g *Graph) CreateRelationship(ctx context.Context, sourceID, targetID, relType string, opts ...RelationshipOption) (string, error) {
	if relType == "" {
		return "", errors.InvalidInput("type", "relationship type is required")
	}

	rel := &MemoryRelationship{
		ID:         uuid.New().String(),
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       relType,
		Weight:     defaultWeight,
		Confidence: defaultConfidence,
		Metadata:   map[string]interface{}{},
		CreatedAt:  g.now(),
	}
	for _, opt := range opts {
		opt(rel)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[sourceID]; !ok {
		return "", errors.NotFound("memory node", sourceID)
	}
	if _, ok := g.nodes[targetID]; !ok {
		return "", errors.NotFound("memory node", targetID)
	}

	g.relationships[rel.ID] = rel
	g.relOrder = append(g.relOrder, rel.ID)
	return rel.ID, nil
}

// Node returns a copy of the node with the given ID.
func (g *Graph) Node(id string) (MemoryNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return MemoryNode{}, false
	}
	return node.clone(), true
}

// Nodes returns copies of all nodes in creation order.
func (g *Graph) Nodes() []MemoryNode {
	return g.filterNodes(func(*MemoryNode) bool { return true })
}

// NodesByType returns copies of all nodes of a type in creation order.
func (g *Graph) NodesByType(nodeType string) []MemoryNode {
	return g.filterNodes(func(n *MemoryNode) bool { return n.Type == nodeType })
}

func (g *Graph) filterNodes(keep func(*MemoryNode) bool) []MemoryNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]MemoryNode, 0, len(g.order))
	for _, id := range g.order {
		if n := g.nodes[id]; keep(n) {
			out = append(out, n.clone())
		}
	}
	return out
}

// Relationships returns copies of all relationships in creation order.
func (g *Graph) Relationships() []MemoryRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]MemoryRelationship, 0, len(g.relOrder))
	for _, id := range g.relOrder {
		out = append(out, g.relationships[id].clone())
	}
	return out
}

// RelationshipsOf returns relationships where the node is source or target,
// strongest first.
func (g *Graph) RelationshipsOf(nodeID string) []MemoryRelationship {
	g.mu.RLock()
	var out []MemoryRelationship
	for _, id := range g.relOrder {
		r := g.relationships[id]
		if r.SourceID == nodeID || r.TargetID == nodeID {
			out = append(out, r.clone())
		}
	}
	g.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// CycleCount returns the number of learning cycles run so far.
func (g *Graph) CycleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cycles
}

// RunLearningCycle evolves learning nodes, strengthens relationships and
// emits an evolve event for every node.
func (g *Graph) RunLearningCycle(ctx context.Context) int {
	g.mu.Lock()
	g.cycles++
	cycle := g.cycles

	g.evolveKnowledge(cycle)
	g.refineRelationships()
	g.consensus()

	events := make([]Event, 0, len(g.order))
	for _, id := range g.order {
		events = append(events, Event{Type: EventEvolve, Node: g.nodes[id].clone(), Cycle: cycle})
	}
	g.mu.Unlock()

	g.log.Debug("learning cycle complete", logger.Fields("cycle", cycle, logger.FieldCount, len(events)))
	for _, ev := range events {
		g.notify(ctx, ev)
	}
	return cycle
}

// evolveKnowledge raises confidence of learning nodes up to the cap.
func (g *Graph) evolveKnowledge(cycle int) {
	for _, id := range g.order {
		node := g.nodes[id]
		if node.Type != NodeLearning {
			continue
		}
		if node.Metadata == nil {
			node.Metadata = make(map[string]interface{})
		}
		confidence, _ := floatValue(node.Metadata[MetaConfidence])
		if confidence >= MaxLearningConfidence {
			continue
		}
		node.Metadata[MetaConfidence] = roundScore(math.Min(MaxLearningConfidence, confidence+LearningConfidenceStep))
		node.Metadata[MetaEvolutionStage] = intValue(node.Metadata[MetaEvolutionStage]) + 1
		node.Metadata[MetaLastEvolutionCycle] = cycle
	}
}

// refineRelationships strengthens every relationship up to the cap.
func (g *Graph) refineRelationships() {
	for _, r := range g.relationships {
		if r.Weight < MaxRelationshipWeight {
			r.Weight = roundScore(math.Min(MaxRelationshipWeight, r.Weight+RelationshipWeightStep))
		}
	}
}

// consensus would merge near-duplicate high-confidence concepts. Nothing is
// merged yet; the hook keeps the cycle's phase order explicit.
func (g *Graph) consensus() {}

// Import loads previously persisted nodes and relationships without emitting
// events. Relationships whose endpoints are unknown are skipped and counted.
func (g *Graph) Import(nodes []MemoryNode, rels []MemoryRelationship) (skipped int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range nodes {
		n := n.clone()
		if _, exists := g.nodes[n.ID]; !exists {
			g.order = append(g.order, n.ID)
		}
		g.nodes[n.ID] = &n
	}
	for _, r := range rels {
		r := r.clone()
		if g.nodes[r.SourceID] == nil || g.nodes[r.TargetID] == nil {
			skipped++
			continue
		}
		if _, exists := g.relationships[r.ID]; !exists {
			g.relOrder = append(g.relOrder, r.ID)
		}
		g.relationships[r.ID] = &r
	}
	return skipped
}

// Subscribe registers fn for graph events and returns a function that removes it.
func (g *Graph) Subscribe(fn Subscriber) (unsubscribe func()) {
	g.subMu.Lock()
	g.nextID++
	id := g.nextID
	g.subs = append(g.subs, subscription{id: id, fn: fn})
	g.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.subMu.Lock()
			defer g.subMu.Unlock()
			for i, s := range g.subs {
				if s.id == id {
					g.subs = append(g.subs[:i], g.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (g *Graph) notify(ctx context.Context, ev Event) {
	g.subMu.RLock()
	subs := make([]subscription, len(g.subs))
	copy(subs, g.subs)
	g.subMu.RUnlock()

	for _, s := range subs {
		if err := g.deliver(ctx, s.fn, ev); err != nil {
			g.log.Warn("subscriber failed", logger.Fields(
				logger.FieldEvent, string(ev.Type),
				logger.FieldNodeID, ev.Node.ID,
				logger.FieldError, err.Error(),
			))
		}
	}
}

func (g *Graph) deliver(ctx context.Context, fn Subscriber, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return fn(ctx, ev)
}

// roundScore trims float noise from repeated increments.
func roundScore(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
