// Package graph mirrors an environment's type tree into Neo4j so type
// inheritance and proc overrides can be explored with Cypher.
package graph

import (
	"context"
	"fmt"

	"avulto/internal/store"
	"avulto/internal/worker"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// batchSize bounds the rows sent with one UNWIND statement.
const batchSize = 500

// GraphBuilder writes type snapshots to Neo4j.
type GraphBuilder struct {
	driver neo4j.DriverWithContext
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(driver neo4j.DriverWithContext) *GraphBuilder {
	return &GraphBuilder{driver: driver}
}

// EnsureSchema creates constraints on the Neo4j database.
func (gb *GraphBuilder) EnsureSchema(ctx context.Context) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (t:Type) REQUIRE (t.environment, t.path) IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (p:Proc) REQUIRE (p.environment, p.owner, p.name) IS UNIQUE",
	}
	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Graph schema ensured")
	return nil
}

// Replace drops the environment's nodes and writes snap in their place.
func (gb *GraphBuilder) Replace(ctx context.Context, snap store.Snapshot) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	env := map[string]any{"environment": snap.Environment}
	if _, err := session.Run(ctx, `
		MATCH (n {environment: $environment})
		WHERE n:Type OR n:Proc
		DETACH DELETE n
	`, env); err != nil {
		return fmt.Errorf("clear environment %s: %w", snap.Environment, err)
	}

	types := typeRows(snap)
	for _, chunk := range chunks(types) {
		_, err := session.Run(ctx, `
			UNWIND $rows AS row
			MERGE (t:Type {environment: $environment, path: row.path})
			SET t.file = row.file, t.line = row.line, t.depth = row.depth
		`, map[string]any{"environment": snap.Environment, "rows": chunk})
		if err != nil {
			return fmt.Errorf("upsert types: %w", err)
		}
	}
	log.Info().Int("types", len(types)).Msg("Seeded type nodes")

	for _, chunk := range chunks(types) {
		_, err := session.Run(ctx, `
			UNWIND $rows AS row
			WITH row WHERE row.parent <> ''
			MATCH (c:Type {environment: $environment, path: row.path})
			MATCH (p:Type {environment: $environment, path: row.parent})
			MERGE (c)-[:INHERITS]->(p)
		`, map[string]any{"environment": snap.Environment, "rows": chunk})
		if err != nil {
			return fmt.Errorf("link parents: %w", err)
		}
	}

	procs := procRows(snap)
	for _, chunk := range chunks(procs) {
		_, err := session.Run(ctx, `
			UNWIND $rows AS row
			MATCH (t:Type {environment: $environment, path: row.owner})
			MERGE (p:Proc {environment: $environment, owner: row.owner, name: row.name})
			SET p.declared = row.declared, p.verb = row.verb, p.file = row.file, p.line = row.line
			MERGE (t)-[:DEFINES]->(p)
		`, map[string]any{"environment": snap.Environment, "rows": chunk})
		if err != nil {
			log.Warn().Err(err).Str("environment", snap.Environment).Msg("Failed to link procs")
			return fmt.Errorf("upsert procs: %w", err)
		}
	}

	log.Info().
		Str("environment", snap.Environment).
		Int("procs", len(procs)).
		Msg("Seeded type graph")
	return nil
}

// typeRows converts snapshot types into Cypher parameters.
func typeRows(snap store.Snapshot) []map[string]any {
	rows := make([]map[string]any, 0, len(snap.Types))
	for _, t := range snap.Types {
		rows = append(rows, map[string]any{
			"path":   t.Path,
			"parent": t.Parent,
			"file":   t.File,
			"line":   int64(t.Line),
			"depth":  int64(depth(t.Path)),
		})
	}
	return rows
}

// procRows keeps the first definition a type carries for each name, so a
// type has at most one Proc node per name.
func procRows(snap store.Snapshot) []map[string]any {
	seen := make(map[[2]string]bool)
	var rows []map[string]any
	for _, p := range snap.Procs {
		key := [2]string{p.TypePath, p.Name}
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, map[string]any{
			"owner":    p.TypePath,
			"name":     p.Name,
			"declared": p.Declared,
			"verb":     p.Verb,
			"file":     p.File,
			"line":     int64(p.Line),
		})
	}
	return rows
}

func depth(path string) int {
	n := 0
	for _, c := range path {
		if c == '/' {
			n++
		}
	}
	return n
}

func chunks(rows []map[string]any) [][]map[string]any {
	return worker.Batch(rows, batchSize)
}
