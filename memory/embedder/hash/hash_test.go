package hash

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedDeterministicUnitVector(t *testing.T) {
	e := New(0)
	if e.Dimensions() != DefaultDimensions {
		t.Fatalf("expected %d dimensions, got %d", DefaultDimensions, e.Dimensions())
	}

	a, err := e.Embed(context.Background(), "send money to Alice")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "send money to Alice")

	if len(a) != DefaultDimensions {
		t.Fatalf("expected %d values, got %d", DefaultDimensions, len(a))
	}
	if math.Abs(cosine(a, a)-1) > 1e-4 {
		t.Errorf("expected unit vector, got norm^2 %v", cosine(a, a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("expected deterministic embeddings")
		}
	}
}

func TestEmbedCaseAndPunctuationInsensitive(t *testing.T) {
	e := New(64)
	a, _ := e.Embed(context.Background(), "Hello, World!")
	b, _ := e.Embed(context.Background(), "hello world")
	if math.Abs(cosine(a, b)-1) > 1e-4 {
		t.Errorf("expected identical direction, got %v", cosine(a, b))
	}
}

func TestSharedWordsAreCloser(t *testing.T) {
	e := New(128)
	ctx := context.Background()
	base, _ := e.Embed(ctx, "neo4j graph memory connector")
	near, _ := e.Embed(ctx, "graph memory")
	far, _ := e.Embed(ctx, "banana smoothie recipe")

	if cosine(base, near) <= cosine(base, far) {
		t.Errorf("expected overlap to be closer: near=%v far=%v", cosine(base, near), cosine(base, far))
	}
}

func TestEmbedEmptyText(t *testing.T) {
	v, err := New(16).Embed(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if math.Abs(cosine(v, v)-1) > 1e-4 {
		t.Error("expected empty text to still embed to a unit vector")
	}
}

func TestEmbedCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(8).Embed(ctx, "x"); err == nil {
		t.Error("expected context error")
	}
}
