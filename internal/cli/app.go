package cli

import (
	"context"
	"fmt"

	"github.com/acn-rai/rai-memory/agent"
	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/connectors/neo4j"
	"github.com/acn-rai/rai-memory/connectors/redis"
	"github.com/acn-rai/rai-memory/connectors/vectorstore"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/memory"
	"github.com/acn-rai/rai-memory/memory/embedder/cached"
	"github.com/acn-rai/rai-memory/memory/embedder/hash"
	"github.com/acn-rai/rai-memory/memory/store/chromem"
	"github.com/acn-rai/rai-memory/observable"
	"github.com/acn-rai/rai-memory/protocols"
)

// App holds every component built from one configuration.
type App struct {
	Config   *config.Config
	Registry *component.Registry
	Graph    *memory.Graph
	Behavior *observable.Behavior

	Interfaces *protocols.Interfaces
	Observable *observable.Memory
	Journal    *redis.Journal
	Neo4j      *neo4j.Connector
	Bridge     *vectorstore.Bridge
	Agent      *agent.Agent
	Multi      *agent.MultiAgent

	detach []func()
	log    *logger.Logger
}

// NewApp builds and registers the components. Nothing connects until Start.
func NewApp(cfg *config.Config) (*App, error) {
	log := logger.WithComponent("app")
	graph := memory.NewGraph(memory.WithLogger(logger.WithComponent("graph")))
	behavior := observable.NewBehavior()

	store, err := chromem.New()
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	var embedder memory.Embedder = hash.New(cfg.Vector.Dimensions)
	if cfg.Vector.CacheSize > 0 {
		c, err := cached.New(embedder, cfg.Vector.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		embedder = c
	}
	bridge := vectorstore.New(store, embedder, vectorstore.WithMinSimilarity(cfg.Vector.MinSimilarity))

	basic := agent.New(graph, behavior,
		agent.WithName(cfg.Agent.Name),
		agent.WithResponder(agent.NewResponder(cfg.Agent)),
		agent.WithIndex(bridge, cfg.Agent.RecallLimit),
	)
	multi := agent.NewMultiAgent(graph)
	if err := multi.Add(basic); err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Registry:   component.NewRegistry(),
		Graph:      graph,
		Behavior:   behavior,
		Interfaces: protocols.New(),
		Observable: observable.NewMemory(behavior),
		Journal:    redis.New(cfg.Redis),
		Neo4j:      neo4j.New(cfg.Neo4j),
		Bridge:     bridge,
		Agent:      basic,
		Multi:      multi,
		log:        log,
	}

	for _, c := range []component.Component{
		app.Interfaces,
		app.Observable,
		app.Journal,
		app.Neo4j,
		app.Bridge,
		app.Agent,
		app.Multi,
	} {
		if err := app.Registry.Register(c); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Start initializes and starts every component, restores the graph from
// Neo4j when enabled and attaches the graph listeners.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Registry.InitializeAll(ctx); err != nil {
		return err
	}
	if err := a.Registry.StartAll(ctx); err != nil {
		return err
	}

	if a.Neo4j.Enabled() {
		if err := a.Neo4j.Load(ctx, a.Graph); err != nil {
			return fmt.Errorf("restore graph: %w", err)
		}
		a.detach = append(a.detach, a.Neo4j.Mirror(a.Graph))
	}
	if a.Journal.Enabled() {
		a.detach = append(a.detach, a.Behavior.AddObserver(a.Journal.Observe))
	}
	a.detach = append(a.detach, a.Bridge.Attach(a.Graph, ""))

	// Restored nodes predate the attachment; index them now.
	for _, node := range a.Graph.Nodes() {
		if err := a.Bridge.Index(ctx, "", node); err != nil {
			a.log.Debug("node not indexed", logger.Fields(logger.FieldNodeID, node.ID))
		}
	}
	return nil
}

// Stop persists the graph when Neo4j is enabled, detaches listeners and
// stops every component.
func (a *App) Stop(ctx context.Context) error {
	if a.Neo4j.Enabled() {
		if err := a.Neo4j.Sync(ctx, a.Graph); err != nil {
			a.log.Error("final sync failed", logger.ErrorFields("sync", err))
		}
	}
	for i := len(a.detach) - 1; i >= 0; i-- {
		a.detach[i]()
	}
	a.detach = nil
	return a.Registry.StopAll(ctx)
}
