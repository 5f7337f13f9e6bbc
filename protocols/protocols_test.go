package protocols_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/connectors/neo4j"
	"github.com/acn-rai/rai-memory/connectors/vectorstore"
	"github.com/acn-rai/rai-memory/memory"
	"github.com/acn-rai/rai-memory/observable"
	"github.com/acn-rai/rai-memory/protocols"
)

var (
	_ protocols.GraphMemory     = (*memory.Graph)(nil)
	_ protocols.BehaviorTracker = (*observable.Behavior)(nil)
	_ protocols.VectorIndex     = (*vectorstore.Bridge)(nil)
	_ protocols.GraphPersister  = (*neo4j.Connector)(nil)
)

func TestContract(t *testing.T) {
	c := protocols.New()
	ctx := context.Background()

	assert.Equal(t, "IRAIInterfaces", c.Name())
	assert.Equal(t, component.Status{"status": "initialized", "component": "IRAIInterfaces"}, c.Status())

	for i := 0; i < 2; i++ {
		ok, err := c.Initialize(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	for _, in := range []any{nil, 42, "text", []int{1, 2}} {
		out, err := c.Process(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}

	assert.Equal(t, component.StatusHealthy, c.Health(ctx).Status)
}

func TestProtocolsReturnsCopy(t *testing.T) {
	c := protocols.New()
	names := c.Protocols()
	require.Len(t, names, 4)
	names[0] = "changed"
	assert.Equal(t, "GraphMemory", c.Protocols()[0])
}
