package memory

import (
	"context"
	"time"
)

// Memory is a storable unit of memory with an embedding.
//
// NodeMemory is the implementation used for graph nodes. Stores accept any
// Memory so callers can add their own kinds.
type Memory interface {
	// Identity & Ownership
	ID() string
	OwnerID() string // empty = global memory, visible to all owners
	Type() string    // node type, e.g. "learning", "decision"

	// Content & Metadata
	Content() interface{}
	Metadata() map[string]interface{}

	CreatedAt() time.Time

	Format(ctx FormatContext) string // Formats this memory for prompt injection
	Embedding() []float32
	SetEmbedding([]float32)
}

// FormatContext bounds how a memory renders itself into a prompt.
type FormatContext struct {
	OwnerID   string
	Query     string
	MaxLength int // Max characters for this memory's output
}

// Match is a memory returned by a similarity query.
type Match struct {
	Memory     Memory
	Similarity float32
}

// Store is the vector storage backend interface.
type Store interface {
	// Store saves a memory with its embedding. Storing an existing ID replaces it.
	// Memory must have embedding set before calling Store.
	Store(ctx context.Context, mem Memory) error

	// Query retrieves memories by vector similarity, highest first.
	Query(ctx context.Context, ownerID string, embedding []float32, limit int) ([]Match, error)

	// Get retrieves a specific memory by ID and owner.
	Get(ctx context.Context, ownerID string, memoryID string) (Memory, error)

	// Delete removes a memory permanently.
	Delete(ctx context.Context, ownerID string, memoryID string) error

	// Count returns the number of memories held for an owner.
	Count(ownerID string) int

	Close() error
}

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}
