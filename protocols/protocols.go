// Package protocols defines the interfaces the RAI components talk through,
// and the IRAIInterfaces component that names them.
package protocols

import (
	"context"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/connectors/vectorstore"
	"github.com/acn-rai/rai-memory/memory"
	"github.com/acn-rai/rai-memory/observable"
)

// ComponentName is the registered name of the protocols component.
const ComponentName = "IRAIInterfaces"

// GraphMemory is a mutable, evolving memory graph.
type GraphMemory interface {
	CreateNode(ctx context.Context, nodeType, label string, content interface{}, opts ...memory.NodeOption) (string, error)
	UpdateNode(ctx context.Context, id string, upd memory.NodeUpdate) error
	CreateRelationship(ctx context.Context, sourceID, targetID, relType string, opts ...memory.RelationshipOption) (string, error)
	Node(id string) (memory.MemoryNode, bool)
	NodesByType(nodeType string) []memory.MemoryNode
	RelationshipsOf(nodeID string) []memory.MemoryRelationship
	RunLearningCycle(ctx context.Context) int
	Subscribe(fn memory.Subscriber) (unsubscribe func())
}

// BehaviorTracker captures decisions and records behavior markers.
type BehaviorTracker interface {
	CaptureContext(ctx context.Context, messages interface{}) observable.DecisionContext
	AddStep(decisionID, step string) error
	SetConfidence(decisionID, key string, score float64) error
	ExtractMarkers(response interface{}) []observable.BehaviorMarker
	Record(ctx context.Context, markers []observable.BehaviorMarker)
}

// VectorIndex finds nodes by similarity.
type VectorIndex interface {
	Index(ctx context.Context, ownerID string, node memory.MemoryNode) error
	Search(ctx context.Context, ownerID, query string, limit int) ([]vectorstore.Hit, error)
	Recall(ctx context.Context, ownerID, query string, limit int) (string, error)
	Remove(ctx context.Context, ownerID, nodeID string) error
}

// GraphPersister stores a memory graph durably.
type GraphPersister interface {
	SaveNode(ctx context.Context, node memory.MemoryNode) error
	SaveRelationship(ctx context.Context, rel memory.MemoryRelationship) error
	LoadNodes(ctx context.Context, nodeType string) ([]memory.MemoryNode, error)
	Load(ctx context.Context, graph *memory.Graph) error
	Sync(ctx context.Context, graph *memory.Graph) error
}

// Names lists the protocol interfaces in this package.
var Names = []string{"GraphMemory", "BehaviorTracker", "VectorIndex", "GraphPersister"}

// Interfaces is the IRAIInterfaces component.
type Interfaces struct {
	component.Base
}

var _ component.Component = (*Interfaces)(nil)

// New creates the IRAIInterfaces component.
func New() *Interfaces {
	return &Interfaces{Base: component.NewBase(ComponentName)}
}

// Protocols returns the protocol interface names.
func (i *Interfaces) Protocols() []string {
	return append([]string(nil), Names...)
}
