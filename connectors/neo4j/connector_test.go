package neo4j_test

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/connectors/neo4j"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/memory"
)

type query struct {
	cypher string
	params map[string]any
	write  bool
}

type fakeRunner struct {
	mu        sync.Mutex
	queries   []query
	respond   func(cypher string, params map[string]any) []map[string]any
	verifyErr error
	closed    bool
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query{cypher: cypher, params: params, write: write})
	if f.respond != nil {
		return f.respond(cypher, params), nil
	}
	return []map[string]any{{"id": params["id"]}}, nil
}

func (f *fakeRunner) VerifyConnectivity(context.Context) error { return f.verifyErr }

func (f *fakeRunner) Close(context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeRunner) all() []query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]query(nil), f.queries...)
}

var enabled = config.Neo4jConfig{Enabled: true, URI: "neo4j://test:7687"}

func started(t *testing.T, runner *fakeRunner) *neo4j.Connector {
	t.Helper()
	c := neo4j.New(enabled, neo4j.WithDialer(func(config.Neo4jConfig) (neo4j.Runner, error) {
		return runner, nil
	}))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func TestContract(t *testing.T) {
	c := neo4j.New(config.Neo4jConfig{})

	assert.Equal(t, component.Status{"status": "initialized", "component": "Neo4jConnector"}, c.Status())

	ok, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := c.Process(context.Background(), map[string]any{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": 1}, out)
}

func TestDisabled(t *testing.T) {
	dialed := false
	c := neo4j.New(config.Neo4jConfig{}, neo4j.WithDialer(func(config.Neo4jConfig) (neo4j.Runner, error) {
		dialed = true
		return &fakeRunner{}, nil
	}))
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.False(t, dialed)
	assert.False(t, c.Enabled())

	h := c.Health(ctx)
	assert.Equal(t, component.StatusHealthy, h.Status)
	assert.Equal(t, "disabled", h.Message)

	err := c.SaveNode(ctx, memory.MemoryNode{ID: "n1"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeServiceUnavailable))
}

func TestNotConnected(t *testing.T) {
	c := neo4j.New(enabled)
	ctx := context.Background()

	assert.Equal(t, component.StatusUnhealthy, c.Health(ctx).Status)

	err := c.SaveNode(ctx, memory.MemoryNode{ID: "n1"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeServiceUnavailable))

	_, err = c.LoadNodes(ctx, "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeServiceUnavailable))
}

func TestStartFailures(t *testing.T) {
	ctx := context.Background()

	dialFail := neo4j.New(enabled, neo4j.WithDialer(func(config.Neo4jConfig) (neo4j.Runner, error) {
		return nil, stderrors.New("bad uri")
	}))
	err := dialFail.Start(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionFailed))

	runner := &fakeRunner{verifyErr: stderrors.New("unreachable")}
	verifyFail := neo4j.New(enabled, neo4j.WithDialer(func(config.Neo4jConfig) (neo4j.Runner, error) {
		return runner, nil
	}))
	err = verifyFail.Start(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionFailed))
	assert.True(t, runner.closed)
	assert.Equal(t, component.StatusUnhealthy, verifyFail.Health(ctx).Status)
}

func TestStartStopHealth(t *testing.T) {
	runner := &fakeRunner{}
	c := started(t, runner)
	ctx := context.Background()

	assert.Equal(t, component.StatusHealthy, c.Health(ctx).Status)

	runner.verifyErr = stderrors.New("flaky")
	assert.Equal(t, component.StatusDegraded, c.Health(ctx).Status)

	require.NoError(t, c.Stop(ctx))
	assert.True(t, runner.closed)
	assert.Equal(t, component.StatusUnhealthy, c.Health(ctx).Status)
	require.NoError(t, c.Stop(ctx))
}

func TestSaveNode(t *testing.T) {
	runner := &fakeRunner{}
	c := started(t, runner)

	node := memory.MemoryNode{
		ID:       "n1",
		Type:     memory.NodeLearning,
		Label:    "fact",
		Content:  map[string]any{"text": "hello"},
		Status:   memory.StatusActive,
		Metadata: map[string]any{"confidence": 0.5},
	}
	require.NoError(t, c.SaveNode(context.Background(), node))

	queries := runner.all()
	require.Len(t, queries, 1)
	q := queries[0]
	assert.True(t, q.write)
	assert.Contains(t, q.cypher, "MERGE (n:Memory {id: $id})")
	assert.Equal(t, "n1", q.params["id"])
	assert.Equal(t, memory.NodeLearning, q.params["type"])
	assert.JSONEq(t, `{"text":"hello"}`, q.params["content"].(string))
	assert.JSONEq(t, `{"confidence":0.5}`, q.params["metadata"].(string))
}

func TestSaveRelationship(t *testing.T) {
	runner := &fakeRunner{}
	c := started(t, runner)
	ctx := context.Background()

	rel := memory.MemoryRelationship{ID: "r1", SourceID: "a", TargetID: "b", Type: memory.RelReinforces, Weight: 0.7}
	require.NoError(t, c.SaveRelationship(ctx, rel))

	queries := runner.all()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0].cypher, "[r:REINFORCES {id: $id}]")
	assert.Equal(t, 0.7, queries[0].params["weight"])

	rel.Type = "DROP ALL"
	err := c.SaveRelationship(ctx, rel)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	assert.Len(t, runner.all(), 1)
}

func TestSaveRelationshipMissingEndpoints(t *testing.T) {
	runner := &fakeRunner{respond: func(string, map[string]any) []map[string]any { return nil }}
	c := started(t, runner)

	err := c.SaveRelationship(context.Background(), memory.MemoryRelationship{ID: "r1", SourceID: "a", TargetID: "b", Type: memory.RelExtends})
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestLoadIntoGraph(t *testing.T) {
	runner := &fakeRunner{respond: func(cypher string, params map[string]any) []map[string]any {
		if strings.Contains(cypher, "MATCH (s:Memory)-[r]->(t:Memory)") {
			return []map[string]any{
				{"id": "r1", "source": "n1", "target": "n2", "type": "extends", "weight": 0.6, "confidence": 0.5, "label": "", "created_at": "2025-01-01T00:00:00Z"},
				{"id": "r2", "source": "n1", "target": "gone", "type": "extends", "weight": 0.6, "confidence": 0.5},
			}
		}
		assert.Equal(t, "", params["type"])
		return []map[string]any{
			{"id": "n1", "type": "learning", "label": "first", "content": `"hello"`, "status": "active", "metadata": `{"confidence":0.5}`, "created_at": "2025-01-01T00:00:00Z", "updated_at": "2025-01-01T00:00:00Z"},
			{"id": "n2", "type": "decision", "label": "second", "content": "null", "status": "stable", "metadata": `{}`},
			{"id": "bad", "type": "learning", "label": "broken", "content": "{not json"},
		}
	}}
	c := started(t, runner)
	ctx := context.Background()

	nodes, err := c.LoadNodes(ctx, "")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "hello", nodes[0].Content)
	assert.Equal(t, 0.5, nodes[0].Confidence())
	assert.Equal(t, 2025, nodes[0].CreatedAt.Year())

	graph := memory.NewGraph()
	require.NoError(t, c.Load(ctx, graph))
	assert.Len(t, graph.Nodes(), 2)
	rels := graph.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, "r1", rels[0].ID)
}

func TestSyncAndMirror(t *testing.T) {
	runner := &fakeRunner{}
	c := started(t, runner)
	ctx := context.Background()

	graph := memory.NewGraph()
	a, err := graph.CreateNode(ctx, memory.NodeLearning, "a", nil)
	require.NoError(t, err)
	b, err := graph.CreateNode(ctx, memory.NodeAction, "b", nil)
	require.NoError(t, err)
	_, err = graph.CreateRelationship(ctx, a, b, memory.RelAdapts)
	require.NoError(t, err)

	require.NoError(t, c.Sync(ctx, graph))
	assert.Len(t, runner.all(), 3)

	stop := c.Mirror(graph)
	_, err = graph.CreateNode(ctx, memory.NodeUpdate, "c", nil)
	require.NoError(t, err)
	assert.Len(t, runner.all(), 4)

	stop()
	_, err = graph.CreateNode(ctx, memory.NodeUpdate, "d", nil)
	require.NoError(t, err)
	assert.Len(t, runner.all(), 4)
}

func TestDeleteNode(t *testing.T) {
	runner := &fakeRunner{}
	c := started(t, runner)

	require.NoError(t, c.DeleteNode(context.Background(), "n1"))
	queries := runner.all()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0].cypher, "DETACH DELETE")
}
