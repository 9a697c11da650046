// Package store is the graph-store collaborator. It wraps the official
// Neo4j driver behind two narrow read operations: Run for a single Cypher
// query and RunBatch for a list of parameterized sub-queries executed in one
// round trip. The pipeline never writes through this package.
package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Query is one Cypher query with its parameters, ready for batch execution.
type Query struct {
	Text   string
	Params map[string]any
}

// Runner is the interface pipeline components program against; *Client is
// the production implementation.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	RunBatch(ctx context.Context, queries []Query) ([]map[string]any, error)
}

// Config holds the connection settings for the graph database.
type Config struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// Client executes Cypher queries against a Neo4j instance.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// New creates a Client and its underlying driver. The connection is lazy;
// call Verify to force a connectivity check.
func New(cfg Config) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	return &Client{driver: driver, database: cfg.Database}, nil
}

// Verify checks connectivity to the database.
func (c *Client) Verify(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Run executes one Cypher query and returns its records as flat maps keyed
// by projection name, e.g. "p.name", "labels(p)", "problemCount".
func (c *Client) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		c.driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("executing neo4j query: %w", err)
	}

	rows := make([]map[string]any, len(result.Records))
	for i, record := range result.Records {
		rows[i] = record.AsMap()
	}
	return rows, nil
}

// RunBatch executes every query in one round trip via apoc.cypher.run and
// returns the yielded value maps in submission order.
func (c *Client) RunBatch(ctx context.Context, queries []Query) ([]map[string]any, error) {
	batch := make([]map[string]any, len(queries))
	for i, q := range queries {
		params := q.Params
		if params == nil {
			params = map[string]any{}
		}
		batch[i] = map[string]any{"query": q.Text, "params": params}
	}

	const text = `
	UNWIND $queriesWithParams AS qp
	CALL apoc.cypher.run(qp.query, qp.params) YIELD value
	RETURN value
	`
	result, err := neo4j.ExecuteQuery(
		ctx,
		c.driver,
		text,
		map[string]any{"queriesWithParams": batch},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("executing neo4j batch: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		value, ok := record.Get("value")
		if !ok {
			continue
		}
		row, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected batch row type %T", value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close shuts down the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
