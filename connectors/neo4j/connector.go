// Package neo4j persists the memory graph to Neo4j.
//
// Nodes are stored as (:Memory {id, type, label, content, status, metadata,
// created_at, updated_at}) with content and metadata JSON-encoded.
// Relationships use the upper-cased relationship type as the Cypher type,
// e.g. (:Memory)-[:REINFORCES {id, weight, confidence, label}]->(:Memory).
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/memory"
)

// ComponentName is the registered name of the connector.
const ComponentName = "Neo4jConnector"

// Connector is the Neo4jConnector component.
type Connector struct {
	component.Base

	cfg  config.Neo4jConfig
	dial Dialer
	log  *logger.Logger

	mu     sync.RWMutex
	runner Runner
}

var (
	_ component.Component     = (*Connector)(nil)
	_ component.Lifecycle     = (*Connector)(nil)
	_ component.HealthChecker = (*Connector)(nil)
)

// Option configures a Connector.
type Option func(*Connector)

// WithDialer replaces the driver dialer.
func WithDialer(d Dialer) Option {
	return func(c *Connector) { c.dial = d }
}

// New creates a connector. No connection is made until Start.
func New(cfg config.Neo4jConfig, opts ...Option) *Connector {
	c := &Connector{
		Base: component.NewBase(ComponentName),
		cfg:  cfg,
		dial: DialDriver,
		log:  logger.WithComponent(ComponentName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the driver and verifies connectivity. A disabled connector
// starts without connecting.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runner != nil {
		return nil
	}
	if !c.cfg.Enabled {
		c.log.Info("disabled")
		return nil
	}

	runner, err := c.dial(c.cfg)
	if err != nil {
		return errors.ConnectionFailed("neo4j").WithCause(err)
	}
	if err := runner.VerifyConnectivity(ctx); err != nil {
		_ = runner.Close(ctx)
		return errors.ConnectionFailed("neo4j").WithCause(err)
	}

	c.runner = runner
	c.log.Info("connected", logger.Fields("uri", c.cfg.URI, "database", c.cfg.Database))
	return nil
}

// Stop closes the driver.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runner == nil {
		return nil
	}
	err := c.runner.Close(ctx)
	c.runner = nil
	if err != nil {
		return fmt.Errorf("close driver: %w", err)
	}
	return nil
}

// Enabled reports whether the connector is configured to connect.
func (c *Connector) Enabled() bool { return c.cfg.Enabled }

// Health reports whether the driver is open and reachable.
func (c *Connector) Health(ctx context.Context) component.Health {
	h := component.Health{Name: ComponentName, Status: component.StatusHealthy}

	c.mu.RLock()
	runner := c.runner
	c.mu.RUnlock()

	if runner == nil && !c.cfg.Enabled {
		h.Message = "disabled"
		return h
	}
	if runner == nil {
		h.Status = component.StatusUnhealthy
		h.Message = "not connected"
		return h
	}
	if err := runner.VerifyConnectivity(ctx); err != nil {
		h.Status = component.StatusDegraded
		h.Message = err.Error()
	}
	return h
}

func (c *Connector) run(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error) {
	c.mu.RLock()
	runner := c.runner
	c.mu.RUnlock()

	if runner == nil {
		return nil, errors.ServiceUnavailable(ComponentName)
	}
	return runner.Run(ctx, cypher, params, write)
}

const saveNodeCypher = `
MERGE (n:Memory {id: $id})
SET n.type = $type,
    n.label = $label,
    n.content = $content,
    n.status = $status,
    n.metadata = $metadata,
    n.created_at = $created_at,
    n.updated_at = $updated_at
RETURN n.id AS id`

// SaveNode creates or replaces a node.
func (c *Connector) SaveNode(ctx context.Context, node memory.MemoryNode) error {
	content, err := json.Marshal(node.Content)
	if err != nil {
		return errors.InvalidInput("content", err.Error())
	}
	metadata, err := json.Marshal(node.Metadata)
	if err != nil {
		return errors.InvalidInput("metadata", err.Error())
	}

	_, err = c.run(ctx, saveNodeCypher, map[string]any{
		"id":         node.ID,
		"type":       node.Type,
		"label":      node.Label,
		"content":    string(content),
		"status":     node.Status,
		"metadata":   string(metadata),
		"created_at": node.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": node.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, true)
	if err != nil {
		return fmt.Errorf("save node %s: %w", node.ID, err)
	}
	return nil
}

// relationshipLabel validates a relationship type and returns its Cypher type.
// Cypher cannot parameterize relationship types, so only known types pass.
func relationshipLabel(relType string) (string, error) {
	for _, known := range memory.RelationshipTypes {
		if relType == known {
			return strings.ToUpper(relType), nil
		}
	}
	return "", errors.InvalidInput("type", fmt.Sprintf("unknown relationship type %q", relType))
}

// SaveRelationship creates or replaces a relationship between stored nodes.
func (c *Connector) SaveRelationship(ctx context.Context, rel memory.MemoryRelationship) error {
	label, err := relationshipLabel(rel.Type)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
MATCH (s:Memory {id: $source}), (t:Memory {id: $target})
MERGE (s)-[r:%s {id: $id}]->(t)
SET r.weight = $weight,
    r.confidence = $confidence,
    r.label = $label,
    r.created_at = $created_at
RETURN r.id AS id`, label)

	rows, err := c.run(ctx, cypher, map[string]any{
		"id":         rel.ID,
		"source":     rel.SourceID,
		"target":     rel.TargetID,
		"weight":     rel.Weight,
		"confidence": rel.Confidence,
		"label":      rel.Label,
		"created_at": rel.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, true)
	if err != nil {
		return fmt.Errorf("save relationship %s: %w", rel.ID, err)
	}
	if len(rows) == 0 {
		return errors.NotFound("memory node", rel.SourceID+" or "+rel.TargetID)
	}
	return nil
}

// DeleteNode removes a node and its relationships.
func (c *Connector) DeleteNode(ctx context.Context, id string) error {
	if _, err := c.run(ctx, `MATCH (n:Memory {id: $id}) DETACH DELETE n`, map[string]any{"id": id}, true); err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	return nil
}

const loadNodesCypher = `
MATCH (n:Memory)
WHERE $type = '' OR n.type = $type
RETURN n.id AS id, n.type AS type, n.label AS label, n.content AS content,
       n.status AS status, n.metadata AS metadata,
       n.created_at AS created_at, n.updated_at AS updated_at
ORDER BY n.created_at`

// LoadNodes reads nodes of a type, or all nodes when nodeType is empty.
func (c *Connector) LoadNodes(ctx context.Context, nodeType string) ([]memory.MemoryNode, error) {
	rows, err := c.run(ctx, loadNodesCypher, map[string]any{"type": nodeType}, false)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	nodes := make([]memory.MemoryNode, 0, len(rows))
	for _, row := range rows {
		node, err := nodeFromRow(row)
		if err != nil {
			c.log.Warn("skipping unreadable node", logger.Fields(logger.FieldNodeID, stringValue(row, "id"), logger.FieldError, err.Error()))
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

const loadRelationshipsCypher = `
MATCH (s:Memory)-[r]->(t:Memory)
RETURN r.id AS id, s.id AS source, t.id AS target, toLower(type(r)) AS type,
       r.weight AS weight, r.confidence AS confidence, r.label AS label,
       r.created_at AS created_at`

// LoadRelationships reads every relationship between memory nodes.
func (c *Connector) LoadRelationships(ctx context.Context) ([]memory.MemoryRelationship, error) {
	rows, err := c.run(ctx, loadRelationshipsCypher, nil, false)
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}

	rels := make([]memory.MemoryRelationship, 0, len(rows))
	for _, row := range rows {
		rels = append(rels, memory.MemoryRelationship{
			ID:         stringValue(row, "id"),
			SourceID:   stringValue(row, "source"),
			TargetID:   stringValue(row, "target"),
			Type:       stringValue(row, "type"),
			Weight:     floatValue(row, "weight"),
			Confidence: floatValue(row, "confidence"),
			Label:      stringValue(row, "label"),
			Metadata:   map[string]interface{}{},
			CreatedAt:  timeValue(row, "created_at"),
		})
	}
	return rels, nil
}

// Load imports every stored node and relationship into graph.
func (c *Connector) Load(ctx context.Context, graph *memory.Graph) error {
	nodes, err := c.LoadNodes(ctx, "")
	if err != nil {
		return err
	}
	rels, err := c.LoadRelationships(ctx)
	if err != nil {
		return err
	}

	skipped := graph.Import(nodes, rels)
	c.log.Info("graph loaded", logger.Fields("nodes", len(nodes), "relationships", len(rels)-skipped))
	return nil
}

// Sync persists every node and relationship of graph.
func (c *Connector) Sync(ctx context.Context, graph *memory.Graph) error {
	for _, node := range graph.Nodes() {
		if err := c.SaveNode(ctx, node); err != nil {
			return err
		}
	}
	for _, rel := range graph.Relationships() {
		if err := c.SaveRelationship(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

// Mirror persists every node the graph creates, updates or evolves.
// Relationships are not evented by the graph; call Sync to persist them.
func (c *Connector) Mirror(graph *memory.Graph) (stop func()) {
	return graph.Subscribe(func(ctx context.Context, ev memory.Event) error {
		return c.SaveNode(ctx, ev.Node)
	})
}

func nodeFromRow(row map[string]any) (memory.MemoryNode, error) {
	node := memory.MemoryNode{
		ID:        stringValue(row, "id"),
		Type:      stringValue(row, "type"),
		Label:     stringValue(row, "label"),
		Status:    stringValue(row, "status"),
		CreatedAt: timeValue(row, "created_at"),
		UpdatedAt: timeValue(row, "updated_at"),
	}
	if raw := stringValue(row, "content"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &node.Content); err != nil {
			return node, fmt.Errorf("decode content: %w", err)
		}
	}
	if raw := stringValue(row, "metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &node.Metadata); err != nil {
			return node, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return node, nil
}

func stringValue(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func floatValue(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func timeValue(row map[string]any, key string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, stringValue(row, key))
	return t
}
