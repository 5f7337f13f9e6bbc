package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/acn-rai/rai-memory/config"
)

// Runner executes Cypher and returns rows as maps keyed by column name.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a Runner for a configuration.
type Dialer func(cfg config.Neo4jConfig) (Runner, error)

// driverRunner runs queries through the official driver, one session per call.
type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

// DialDriver is the default Dialer backed by neo4j-go-driver.
func DialDriver(cfg config.Neo4jConfig) (Runner, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	return &driverRunner{driver: driver, database: cfg.Database}, nil
}

func (r *driverRunner) Run(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error) {
	mode := neo4j.AccessModeRead
	if write {
		mode = neo4j.AccessModeWrite
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for result.Next(ctx) {
		rows = append(rows, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *driverRunner) VerifyConnectivity(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *driverRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
