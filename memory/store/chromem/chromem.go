package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/memory"
)

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection // Per-owner collections
	mu          sync.RWMutex
	log         *logger.Logger
}

var _ memory.Store = (*ChromemStore)(nil)

// New creates a new in-memory chromem store.
func New() (*ChromemStore, error) {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		log:         logger.WithComponent("chromem"),
	}, nil
}

// collectionName maps an owner to its collection; the empty owner is global.
func collectionName(ownerID string) string {
	if ownerID == "" {
		return "global"
	}
	return "owner_" + ownerID
}

// collection returns the owner's collection, creating it when create is set.
func (s *ChromemStore) collection(ownerID string, create bool) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[ownerID]
	s.mu.RUnlock()

	if exists || !create {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[ownerID]; exists {
		return col, nil
	}

	col, err := s.db.CreateCollection(
		collectionName(ownerID),
		nil, // no collection metadata
		nil, // embeddings are always supplied by the caller
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[ownerID] = col
	return col, nil
}

// Store saves a memory with its embedding, replacing any memory with the same ID.
func (s *ChromemStore) Store(ctx context.Context, mem memory.Memory) error {
	if len(mem.Embedding()) == 0 {
		return errors.InvalidInput("embedding", "memory has no embedding")
	}

	col, err := s.collection(mem.OwnerID(), true)
	if err != nil {
		return err
	}

	doc, err := toDocument(mem)
	if err != nil {
		return fmt.Errorf("serialize memory: %w", err)
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.log.Debug("stored memory", logger.Fields(
		logger.FieldNodeID, mem.ID(), logger.FieldOwnerID, mem.OwnerID(), "type", mem.Type()))
	return nil
}

// Query retrieves memories by vector similarity.
func (s *ChromemStore) Query(ctx context.Context, ownerID string, embedding []float32, limit int) ([]memory.Match, error) {
	if limit <= 0 {
		return nil, nil
	}

	col, err := s.collection(ownerID, false)
	if err != nil || col == nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size
	if n := col.Count(); n < limit {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]memory.Match, 0, len(results))
	for i, result := range results {
		mem, err := fromDocument(ownerID, result.Content, result.Embedding)
		if err != nil {
			s.log.Warn("skipping unreadable result", logger.Fields("index", i, logger.FieldError, err.Error()))
			continue
		}
		matches = append(matches, memory.Match{Memory: mem, Similarity: result.Similarity})
	}
	return matches, nil
}

// Get retrieves a specific memory by ID and owner.
func (s *ChromemStore) Get(ctx context.Context, ownerID string, memoryID string) (memory.Memory, error) {
	col, err := s.collection(ownerID, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, errors.NotFound("memory", memoryID)
	}

	doc, err := col.GetByID(ctx, memoryID)
	if err != nil {
		return nil, errors.NotFound("memory", memoryID).WithCause(err)
	}
	if doc.ID == "" {
		return nil, errors.NotFound("memory", memoryID)
	}
	return fromDocument(ownerID, doc.Content, doc.Embedding)
}

// Delete removes a memory. Deleting an unknown memory is not an error.
func (s *ChromemStore) Delete(ctx context.Context, ownerID string, memoryID string) error {
	col, err := s.collection(ownerID, false)
	if err != nil || col == nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, memoryID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Count returns the number of memories held for ownerID.
func (s *ChromemStore) Count(ownerID string) int {
	col, _ := s.collection(ownerID, false)
	if col == nil {
		return 0
	}
	return col.Count()
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// chromem-go keeps everything in memory, nothing to close
	return nil
}

// toDocument serializes any Memory as a node document.
func toDocument(mem memory.Memory) (chromem.Document, error) {
	var node memory.MemoryNode
	if nm, ok := mem.(*memory.NodeMemory); ok {
		node = nm.Node()
	} else {
		node = memory.MemoryNode{
			ID:        mem.ID(),
			Type:      mem.Type(),
			Content:   mem.Content(),
			Metadata:  mem.Metadata(),
			CreatedAt: mem.CreatedAt(),
		}
	}

	content, err := json.Marshal(node)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("marshal node: %w", err)
	}

	return chromem.Document{
		ID:        mem.ID(),
		Content:   string(content),
		Embedding: mem.Embedding(),
		Metadata: map[string]string{
			"type":       node.Type,
			"owner_id":   mem.OwnerID(),
			"label":      node.Label,
			"created_at": node.CreatedAt.Format(time.RFC3339),
		},
	}, nil
}

// fromDocument rebuilds a NodeMemory from a stored document.
func fromDocument(ownerID, content string, embedding []float32) (*memory.NodeMemory, error) {
	var node memory.MemoryNode
	if err := json.Unmarshal([]byte(content), &node); err != nil {
		return nil, fmt.Errorf("unmarshal node: %w", err)
	}
	return memory.NewNodeMemoryFromStorage(ownerID, node, embedding), nil
}
