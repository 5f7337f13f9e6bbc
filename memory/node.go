package memory

import (
	"fmt"
	"time"
)

// Node types.
const (
	NodeLearning    = "learning"
	NodeNewData     = "newData"
	NodeUpdate      = "update"
	NodeAction      = "action"
	NodeObservation = "observation"
	NodeDecision    = "decision"
)

// Node statuses.
const (
	StatusActive   = "active"
	StatusEvolving = "evolving"
	StatusStable   = "stable"
	StatusPending  = "pending"
)

// Relationship types.
const (
	RelTranslates  = "translates"
	RelReinforces  = "reinforces"
	RelAdapts      = "adapts"
	RelExtends     = "extends"
	RelContradicts = "contradicts"
)

// RelationshipTypes lists the known relationship types.
var RelationshipTypes = []string{RelTranslates, RelReinforces, RelAdapts, RelExtends, RelContradicts}

// Metadata keys maintained by learning cycles.
const (
	MetaConfidence         = "confidence"
	MetaContextualScore    = "contextual_score"
	MetaEvolutionStage     = "evolution_stage"
	MetaIterations         = "iterations"
	MetaCreationCycle      = "creation_cycle"
	MetaLastEvolutionCycle = "last_evolution_cycle"
)

const (
	defaultConfidence = 0.5
	defaultWeight     = 0.5
)

// MemoryNode is a node in the memory graph.
type MemoryNode struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Label     string                 `json:"label"`
	Content   interface{}            `json:"content"`
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Confidence returns the node's confidence metadata, or 0 when absent.
func (n MemoryNode) Confidence() float64 {
	f, _ := floatValue(n.Metadata[MetaConfidence])
	return f
}

// Text returns the label and content as one string for embedding.
func (n MemoryNode) Text() string {
	if n.Content == nil {
		return n.Label
	}
	return fmt.Sprintf("%s\n%v", n.Label, n.Content)
}

func (n MemoryNode) clone() MemoryNode {
	n.Metadata = cloneMap(n.Metadata)
	return n
}

// MemoryRelationship is a directed, weighted edge between two nodes.
type MemoryRelationship struct {
	ID         string                 `json:"id"`
	SourceID   string                 `json:"source_id"`
	TargetID   string                 `json:"target_id"`
	Type       string                 `json:"type"`
	Weight     float64                `json:"weight"`
	Confidence float64                `json:"confidence"`
	Label      string                 `json:"label"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

func (r MemoryRelationship) clone() MemoryRelationship {
	r.Metadata = cloneMap(r.Metadata)
	return r
}

// DefaultMetadata returns the metadata a node gets when created without any.
func DefaultMetadata() map[string]interface{} {
	return map[string]interface{}{
		MetaConfidence:         defaultConfidence,
		MetaContextualScore:    defaultConfidence,
		MetaEvolutionStage:     0,
		MetaIterations:         0,
		MetaCreationCycle:      0,
		MetaLastEvolutionCycle: 0,
	}
}

// NodeOption customizes CreateNode.
type NodeOption func(*MemoryNode)

// WithStatus sets the initial node status.
func WithStatus(status string) NodeOption {
	return func(n *MemoryNode) { n.Status = status }
}

// WithMetadata replaces the default metadata.
func WithMetadata(md map[string]interface{}) NodeOption {
	return func(n *MemoryNode) { n.Metadata = cloneMap(md) }
}

// RelationshipOption customizes CreateRelationship.
type RelationshipOption func(*MemoryRelationship)

// WithWeight sets the relationship weight.
func WithWeight(w float64) RelationshipOption {
	return func(r *MemoryRelationship) { r.Weight = w }
}

// WithConfidence sets the relationship confidence.
func WithConfidence(c float64) RelationshipOption {
	return func(r *MemoryRelationship) { r.Confidence = c }
}

// WithLabel sets the relationship label.
func WithLabel(label string) RelationshipOption {
	return func(r *MemoryRelationship) { r.Label = label }
}

// WithRelationshipMetadata attaches metadata to the relationship.
func WithRelationshipMetadata(md map[string]interface{}) RelationshipOption {
	return func(r *MemoryRelationship) { r.Metadata = cloneMap(md) }
}

// NodeUpdate describes a partial update. Nil fields are left unchanged;
// Metadata keys are merged into the existing metadata.
type NodeUpdate struct {
	Type     *string
	Label    *string
	Status   *string
	Content  interface{}
	Metadata map[string]interface{}
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}
