package observable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acn-rai/rai-memory/component"
)

func TestMemoryContract(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	assert.Equal(t, component.Status{"status": "initialized", "component": "ObservableMemory"}, m.Status())

	ok, err := m.Initialize(ctx)
	assert.True(t, ok)
	assert.NoError(t, err)

	out, err := m.Process(ctx, 42)
	assert.NoError(t, err)
	assert.Equal(t, 42, out)

	out, err = m.Process(ctx, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestMemoryHealthCounts(t *testing.T) {
	b := NewBehavior()
	m := NewMemory(b)
	b.CaptureContext(context.Background(), "q")
	b.Record(context.Background(), b.ExtractMarkers("answer"))

	h := m.Health(context.Background())
	assert.Equal(t, component.StatusHealthy, h.Status)
	assert.Equal(t, "1 markers, 1 decisions", h.Message)
	assert.Same(t, b, m.Behavior())
}
