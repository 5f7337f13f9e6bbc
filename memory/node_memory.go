package memory

import (
	"fmt"
	"strings"
	"time"
)

// NodeMemory stores a snapshot of a graph node for vector search.
// This is the Memory implementation the vector bridge indexes.
type NodeMemory struct {
	ownerID   string
	embedding []float32
	node      MemoryNode
}

// NewNodeMemory wraps a node snapshot owned by ownerID.
func NewNodeMemory(ownerID string, node MemoryNode) *NodeMemory {
	return &NodeMemory{
		ownerID: ownerID,
		node:    node.clone(),
	}
}

// NewNodeMemoryFromStorage rebuilds a NodeMemory from stored data.
// This is used by Store implementations when deserializing.
func NewNodeMemoryFromStorage(ownerID string, node MemoryNode, embedding []float32) *NodeMemory {
	return &NodeMemory{
		ownerID:   ownerID,
		embedding: embedding,
		node:      node,
	}
}

func (m *NodeMemory) ID() string { return m.node.ID }

func (m *NodeMemory) OwnerID() string { return m.ownerID }

func (m *NodeMemory) Type() string { return m.node.Type }

// Content returns the node's label, content and status.
func (m *NodeMemory) Content() interface{} {
	return map[string]interface{}{
		"label":   m.node.Label,
		"content": m.node.Content,
		"status":  m.node.Status,
	}
}

func (m *NodeMemory) Metadata() map[string]interface{} { return m.node.Metadata }

func (m *NodeMemory) CreatedAt() time.Time { return m.node.CreatedAt }

func (m *NodeMemory) Embedding() []float32 { return m.embedding }

func (m *NodeMemory) SetEmbedding(emb []float32) { m.embedding = emb }

// Node returns the wrapped node snapshot.
func (m *NodeMemory) Node() MemoryNode { return m.node }

// Format renders the node for prompt injection:
//
//	[decision] Answered greeting (confidence 0.55)
//	  Content: "hello there"
func (m *NodeMemory) Format(ctx FormatContext) string {
	parts := []string{fmt.Sprintf("[%s] %s (confidence %.2f)", m.node.Type, m.node.Label, m.node.Confidence())}

	if m.node.Content != nil {
		limit := ctx.MaxLength / 2
		if limit <= 0 {
			limit = 200
		}
		parts = append(parts, fmt.Sprintf("  Content: %q", truncate(fmt.Sprint(m.node.Content), limit)))
	}
	return strings.Join(parts, "\n")
}

// FormatForEmbedding returns the text that represents this memory in vector space.
func (m *NodeMemory) FormatForEmbedding() string {
	return m.node.Text()
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}
