package stream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/memory"
	"github.com/acn-rai/rai-memory/observable"
	"github.com/acn-rai/rai-memory/protocols"
	"github.com/acn-rai/rai-memory/stream"
)

type unhealthy struct{ component.Base }

func (u unhealthy) Health(ctx context.Context) component.Health {
	return component.Health{Name: u.Name(), Status: component.StatusUnhealthy, Message: "down"}
}

func dial(t *testing.T, srv *stream.Server, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return srv.Clients() > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func start(t *testing.T, graph *memory.Graph) (*stream.Server, string) {
	t.Helper()
	srv := stream.New(config.StreamConfig{Addr: "127.0.0.1:0"}, graph, nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv, "http://" + srv.Addr().String()
}

func readEvent(t *testing.T, conn *websocket.Conn) memory.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev memory.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEventsBroadcast(t *testing.T) {
	graph := memory.NewGraph()
	srv, url := start(t, graph)

	first := dial(t, srv, url)
	second := dial(t, srv, url)
	require.Eventually(t, func() bool { return srv.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	id, err := graph.CreateNode(context.Background(), memory.NodeLearning, "streams are neat", nil)
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		assert.Equal(t, memory.EventCreate, ev.Type)
		assert.Equal(t, id, ev.Node.ID)
		assert.Equal(t, "streams are neat", ev.Node.Label)
	}
}

func TestHandlerWithoutStartIsSilent(t *testing.T) {
	graph := memory.NewGraph()
	srv := stream.New(config.StreamConfig{Addr: ":0"}, graph, nil)
	defer srv.Stop(context.Background())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, srv, ts.URL)
	_, err := graph.CreateNode(context.Background(), memory.NodeLearning, "not subscribed", nil)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "events flow only after Start")
}

func TestRestartResubscribes(t *testing.T) {
	graph := memory.NewGraph()
	srv := stream.New(config.StreamConfig{Addr: "127.0.0.1:0"}, graph, nil)
	ctx := context.Background()

	require.NoError(t, srv.Start(ctx))
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop(ctx)

	conn := dial(t, srv, "http://"+srv.Addr().String())
	id, err := graph.CreateNode(ctx, memory.NodeLearning, "after restart", nil)
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, memory.EventCreate, ev.Type)
	assert.Equal(t, id, ev.Node.ID)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "each event is delivered once")
}

func TestClientDisconnectUnregisters(t *testing.T) {
	graph := memory.NewGraph()
	srv, url := start(t, graph)

	conn := dial(t, srv, url)
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return srv.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err := graph.CreateNode(context.Background(), memory.NodeLearning, "nobody listening", nil)
	require.NoError(t, err)
}

func TestStatusAndHealth(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, registry.Register(observable.NewMemory(nil)))
	require.NoError(t, registry.Register(protocols.New()))

	srv := stream.New(config.StreamConfig{Addr: ":0"}, memory.NewGraph(), registry)
	defer srv.Stop(context.Background())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	assert.Equal(t, []map[string]string{
		{"status": "initialized", "component": "ObservableMemory"},
		{"status": "initialized", "component": "IRAIInterfaces"},
	}, statuses)

	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	require.NoError(t, registry.Register(unhealthy{component.NewBase("Broken")}))
	degraded, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer degraded.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, degraded.StatusCode)
}

func TestStartStop(t *testing.T) {
	graph := memory.NewGraph()
	srv := stream.New(config.StreamConfig{Addr: "127.0.0.1:0"}, graph, nil)
	require.NoError(t, srv.Start(context.Background()))

	addr := srv.Addr()
	require.NotNil(t, addr)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr.String()+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.Equal(t, 0, srv.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestContract(t *testing.T) {
	srv := stream.New(config.StreamConfig{Addr: ":0"}, memory.NewGraph(), nil)
	defer srv.Stop(context.Background())
	assert.Equal(t, component.Status{"status": "initialized", "component": "EventStream"}, srv.Status())
}
