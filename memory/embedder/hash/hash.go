// Package hash provides a deterministic, offline embedder.
//
// Text is lower-cased and split into words; each word seeds a pseudo-random
// unit vector and the text embedding is the normalized sum of its word
// vectors. Texts sharing words therefore land close together, which is
// enough for local recall without a model.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so stores can swap embedders.
const DefaultDimensions = 384

// Embedder generates bag-of-words hash embeddings.
type Embedder struct {
	dimensions int
}

// New creates a hash embedder. Non-positive dimensions use DefaultDimensions.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed returns a unit vector for text. Empty text embeds to the word vector
// of the empty string so every input has a defined direction.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		words = []string{""}
	}

	sum := make([]float32, e.dimensions)
	for _, w := range words {
		addWordVector(sum, w)
	}
	return normalize(sum), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// addWordVector adds the pseudo-random vector seeded by word.
func addWordVector(dst []float32, word string) {
	h := fnv.New64a()
	h.Write([]byte(word))
	seed := h.Sum64()

	for i := range dst {
		// LCG step, mapped to [-1, 1]
		seed = seed*6364136223846793005 + 1442695040888963407
		dst[i] += float32(int64(seed)) / float32(math.MaxInt64)
	}
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
