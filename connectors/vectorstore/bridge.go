// Package vectorstore bridges memory graph nodes into a vector store so agents
// can recall related memories by similarity.
package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/memory"
)

// ComponentName is the registered name of the bridge.
const ComponentName = "VectorStoreBridge"

// recallBudget is the character budget shared by all recalled memories.
const recallBudget = 2000

// Hit is a node found by similarity search.
type Hit struct {
	NodeID     string            `json:"node_id"`
	Label      string            `json:"label"`
	Type       string            `json:"type"`
	Similarity float32           `json:"similarity"`
	Node       memory.MemoryNode `json:"-"`
	mem        memory.Memory
}

// Bridge is the VectorStoreBridge component.
type Bridge struct {
	component.Base

	store         memory.Store
	embedder      memory.Embedder
	minSimilarity float32
	log           *logger.Logger
}

var (
	_ component.Component     = (*Bridge)(nil)
	_ component.Lifecycle     = (*Bridge)(nil)
	_ component.HealthChecker = (*Bridge)(nil)
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithMinSimilarity drops search hits below min.
func WithMinSimilarity(min float64) Option {
	return func(b *Bridge) { b.minSimilarity = float32(min) }
}

// New creates a bridge over store, embedding text with embedder.
func New(store memory.Store, embedder memory.Embedder, opts ...Option) *Bridge {
	b := &Bridge{
		Base:     component.NewBase(ComponentName),
		store:    store,
		embedder: embedder,
		log:      logger.WithComponent(ComponentName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start is a no-op; the store is ready once constructed.
func (b *Bridge) Start(ctx context.Context) error { return nil }

// Stop closes the store and, when it holds one, the embedder cache.
func (b *Bridge) Stop(ctx context.Context) error {
	if c, ok := b.embedder.(interface{ Close() }); ok {
		c.Close()
	}
	if err := b.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Health reports the embedding dimensionality in use.
func (b *Bridge) Health(ctx context.Context) component.Health {
	return component.Health{
		Name:    ComponentName,
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d dimensions", b.embedder.Dimensions()),
	}
}

// Index embeds a node and stores it under ownerID, replacing any earlier copy.
func (b *Bridge) Index(ctx context.Context, ownerID string, node memory.MemoryNode) error {
	mem := memory.NewNodeMemory(ownerID, node)
	text := mem.FormatForEmbedding()
	if strings.TrimSpace(text) == "" {
		return errors.InvalidInput("node", "nothing to embed")
	}

	embedding, err := b.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed node: %w", err)
	}
	mem.SetEmbedding(embedding)

	if err := b.store.Store(ctx, mem); err != nil {
		return fmt.Errorf("store node: %w", err)
	}
	return nil
}

// Search returns up to limit nodes similar to query, most similar first.
// Global nodes (empty owner) are searched along with ownerID's own.
func (b *Bridge) Search(ctx context.Context, ownerID, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	embedding, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	owners := []string{ownerID}
	if ownerID != "" {
		owners = append(owners, "")
	}

	var hits []Hit
	for _, owner := range owners {
		matches, err := b.store.Query(ctx, owner, embedding, limit)
		if err != nil {
			return nil, fmt.Errorf("query store: %w", err)
		}
		for _, m := range matches {
			if m.Similarity < b.minSimilarity {
				continue
			}
			hit := Hit{NodeID: m.Memory.ID(), Type: m.Memory.Type(), Similarity: m.Similarity, mem: m.Memory}
			if nm, ok := m.Memory.(*memory.NodeMemory); ok {
				hit.Node = nm.Node()
				hit.Label = hit.Node.Label
			}
			hits = append(hits, hit)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	b.log.Debug("search", logger.Fields(logger.FieldOwnerID, ownerID, logger.FieldCount, len(hits)))
	return hits, nil
}

// Recall searches and formats the hits for prompt injection. It returns ""
// when nothing relevant is found.
func (b *Bridge) Recall(ctx context.Context, ownerID, query string, limit int) (string, error) {
	hits, err := b.Search(ctx, ownerID, query, limit)
	if err != nil {
		return "", err
	}
	return FormatHits(hits, ownerID, query), nil
}

// FormatHits renders hits as a numbered block for a system prompt, sharing a
// fixed character budget between them.
func FormatHits(hits []Hit, ownerID, query string) string {
	if len(hits) == 0 {
		return ""
	}

	maxLength := recallBudget / len(hits)
	if maxLength < 100 {
		maxLength = 100
	}

	parts := []string{"=== RELEVANT MEMORIES ===\n"}
	for i, hit := range hits {
		mem := hit.mem
		if mem == nil {
			mem = memory.NewNodeMemory(ownerID, hit.Node)
		}
		formatted := mem.Format(memory.FormatContext{
			OwnerID:   ownerID,
			Query:     query,
			MaxLength: maxLength,
		})
		parts = append(parts, fmt.Sprintf("%d. %s\n", i+1, formatted))
	}
	return strings.Join(parts, "\n")
}

// Remove deletes a node from ownerID's index.
func (b *Bridge) Remove(ctx context.Context, ownerID, nodeID string) error {
	if err := b.store.Delete(ctx, ownerID, nodeID); err != nil {
		return fmt.Errorf("remove node %s: %w", nodeID, err)
	}
	return nil
}

// Attach indexes every node graph creates or updates under ownerID.
func (b *Bridge) Attach(graph *memory.Graph, ownerID string) (detach func()) {
	return graph.Subscribe(func(ctx context.Context, ev memory.Event) error {
		switch ev.Type {
		case memory.EventCreate, memory.EventUpdate:
			return b.Index(ctx, ownerID, ev.Node)
		}
		return nil
	})
}
