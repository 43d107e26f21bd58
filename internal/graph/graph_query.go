package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// TypeResult is a type node reached by a query.
type TypeResult struct {
	Path     string
	Distance int
}

// ProcResult is a proc definition found on some type.
type ProcResult struct {
	Owner    string
	Name     string
	Declared bool
}

// GraphQuerier reads the type graph.
type GraphQuerier struct {
	driver neo4j.DriverWithContext
}

// NewGraphQuerier creates a new graph querier.
func NewGraphQuerier(driver neo4j.DriverWithContext) *GraphQuerier {
	return &GraphQuerier{driver: driver}
}

// Ancestors lists the parent chain of path, nearest first.
func (gq *GraphQuerier) Ancestors(ctx context.Context, environment, path string) ([]TypeResult, error) {
	return gq.types(ctx, `
		MATCH chain = (t:Type {environment: $environment, path: $path})-[:INHERITS*1..]->(a:Type)
		RETURN a.path AS path, length(chain) AS distance
		ORDER BY distance
	`, environment, path, 0)
}

// Descendants lists the subtypes of path up to maxDepth levels below it;
// zero means unbounded.
func (gq *GraphQuerier) Descendants(ctx context.Context, environment, path string, maxDepth int) ([]TypeResult, error) {
	return gq.types(ctx, `
		MATCH chain = (d:Type {environment: $environment})-[:INHERITS*1..]->(t:Type {environment: $environment, path: $path})
		WHERE $depth = 0 OR length(chain) <= $depth
		RETURN d.path AS path, length(chain) AS distance
		ORDER BY distance, path
	`, environment, path, maxDepth)
}

func (gq *GraphQuerier) types(ctx context.Context, query, environment, path string, maxDepth int) ([]TypeResult, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]any{
		"environment": environment,
		"path":        path,
		"depth":       int64(maxDepth),
	})
	if err != nil {
		return nil, fmt.Errorf("query types of %s: %w", path, err)
	}

	var out []TypeResult
	for result.Next(ctx) {
		record := result.Record()
		p, _ := record.Get("path")
		d, _ := record.Get("distance")
		out = append(out, TypeResult{Path: fmt.Sprintf("%v", p), Distance: toInt(d)})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read types of %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("types", len(out)).Msg("Graph query complete")
	return out, nil
}

// Overrides lists every definition of proc on path and its subtypes.
func (gq *GraphQuerier) Overrides(ctx context.Context, environment, path, proc string) ([]ProcResult, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (root:Type {environment: $environment, path: $path})
		MATCH (t:Type {environment: $environment})-[:INHERITS*0..]->(root)
		MATCH (t)-[:DEFINES]->(p:Proc {name: $name})
		RETURN p.owner AS owner, p.name AS name, p.declared AS declared
		ORDER BY owner
	`, map[string]any{"environment": environment, "path": path, "name": proc})
	if err != nil {
		return nil, fmt.Errorf("query overrides of %s: %w", proc, err)
	}

	var out []ProcResult
	for result.Next(ctx) {
		record := result.Record()
		owner, _ := record.Get("owner")
		name, _ := record.Get("name")
		declared, _ := record.Get("declared")
		b, _ := declared.(bool)
		out = append(out, ProcResult{Owner: fmt.Sprintf("%v", owner), Name: fmt.Sprintf("%v", name), Declared: b})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read overrides of %s: %w", proc, err)
	}
	return out, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}
