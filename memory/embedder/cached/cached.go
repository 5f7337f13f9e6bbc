// Package cached decorates an Embedder with a ristretto cache so repeated
// texts (re-indexed nodes, repeated queries) are embedded once.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/acn-rai/rai-memory/memory"
)

// Embedder caches embeddings of an inner Embedder.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

var _ memory.Embedder = (*Embedder)(nil)

// New wraps inner with a cache holding at most maxBytes of vectors.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	entry := int64(inner.Dimensions() * 4)
	if entry <= 0 {
		entry = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * (maxBytes/entry + 1),
		MaxCost:     maxBytes,
		BufferItems: 64,
		// costs are vector bytes; keep ristretto's per-item overhead out of them
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, computing it on a miss.
// Callers must not modify the returned slice.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are visible.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
