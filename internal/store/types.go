// Package store persists parsed DM artifacts in PostgreSQL: the type tree
// of an environment for SQL queries, and per-state colour vectors of
// icons for similarity search with pgvector.
package store

import (
	"context"
	"fmt"
	"strings"

	"avulto/internal/dme"
	"avulto/internal/dmpath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TypeRow is one type of an environment.
type TypeRow struct {
	Path   string
	Parent string
	File   string
	Line   int
}

// VarRow is a variable entry a type declares or overrides.
type VarRow struct {
	TypePath string
	Name     string
	Tag      string
	DeclType string
	// Value is the constant rendered as DM source; empty when the
	// initializer is not constant.
	Value string
	Const bool
}

// ProcRow is a proc definition a type carries.
type ProcRow struct {
	TypePath string
	Name     string
	Verb     bool
	Declared bool
	Params   []string
	File     string
	Line     int
}

// Snapshot is everything stored for one environment.
type Snapshot struct {
	Environment string
	Types       []TypeRow
	Vars        []VarRow
	Procs       []ProcRow
}

// SnapshotOf flattens env into rows. Only entries a type itself carries
// are listed; inherited ones are found through Parent. Built-in types are
// kept so parent links resolve, their built-in vars and procs are not.
func SnapshotOf(name string, env *dme.Environment) Snapshot {
	snap := Snapshot{Environment: name}
	for _, p := range env.Paths() {
		if p.IsRoot() {
			continue
		}
		td, err := env.TypeDecl(p)
		if err != nil {
			continue
		}
		parent := ""
		if pt := td.Parent(); pt != nil && !pt.Path.IsRoot() {
			parent = pt.Path.Rel()
		}
		snap.Types = append(snap.Types, TypeRow{
			Path:   p.Rel(),
			Parent: parent,
			File:   td.Location.File,
			Line:   td.Location.Line,
		})

		for _, vn := range td.VarNames(dme.VarFilter{Declared: true, Modified: true}) {
			decl, err := td.VarDecl(vn)
			if err != nil || decl.Location.IsBuiltin() {
				continue
			}
			row := VarRow{TypePath: p.Rel(), Name: vn, Tag: decl.Tag.String(), Const: decl.Const}
			if !decl.Type.IsRoot() {
				row.DeclType = decl.Type.Rel()
			}
			if decl.Const {
				row.Value = decl.Value.String()
			}
			snap.Vars = append(snap.Vars, row)
		}

		for _, pn := range td.ProcNames(dme.ProcFilter{Declared: true, Modified: true}) {
			for _, pd := range td.ProcDecls(pn) {
				if !pd.Owner.Equal(p) || pd.Location.IsBuiltin() {
					continue
				}
				snap.Procs = append(snap.Procs, ProcRow{
					TypePath: p.Rel(),
					Name:     pn,
					Verb:     pd.Verb,
					Declared: pd.Declared,
					Params:   paramNames(pd.Params),
					File:     pd.Location.File,
					Line:     pd.Location.Line,
				})
			}
		}
	}
	return snap
}

func paramNames(params []dme.Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

// TypeStore keeps type tree snapshots in PostgreSQL.
type TypeStore struct {
	pool *pgxpool.Pool
}

// NewTypeStore creates a store on pool.
func NewTypeStore(pool *pgxpool.Pool) *TypeStore {
	return &TypeStore{pool: pool}
}

// EnsureSchema creates the tables.
func (ts *TypeStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dm_types (
			environment TEXT NOT NULL,
			path        TEXT NOT NULL,
			parent      TEXT NOT NULL,
			file        TEXT NOT NULL,
			line        INT  NOT NULL,
			PRIMARY KEY (environment, path)
		)`,
		`CREATE TABLE IF NOT EXISTS dm_vars (
			environment TEXT NOT NULL,
			type_path   TEXT NOT NULL,
			name        TEXT NOT NULL,
			tag         TEXT NOT NULL,
			decl_type   TEXT NOT NULL,
			value       TEXT,
			PRIMARY KEY (environment, type_path, name)
		)`,
		`CREATE TABLE IF NOT EXISTS dm_procs (
			environment TEXT NOT NULL,
			type_path   TEXT NOT NULL,
			name        TEXT NOT NULL,
			seq         INT  NOT NULL,
			verb        BOOLEAN NOT NULL,
			declared    BOOLEAN NOT NULL,
			params      TEXT[] NOT NULL,
			file        TEXT NOT NULL,
			line        INT  NOT NULL,
			PRIMARY KEY (environment, type_path, name, seq)
		)`,
	}
	for _, s := range stmts {
		if _, err := ts.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("create type tables: %w", err)
		}
	}
	return nil
}

// Replace swaps the stored snapshot of an environment in one transaction.
func (ts *TypeStore) Replace(ctx context.Context, snap Snapshot) error {
	tx, err := ts.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, table := range []string{"dm_types", "dm_vars", "dm_procs"} {
		batch.Queue(`DELETE FROM `+table+` WHERE environment = $1`, snap.Environment)
	}
	for _, t := range snap.Types {
		batch.Queue(`INSERT INTO dm_types (environment, path, parent, file, line) VALUES ($1, $2, $3, $4, $5)`,
			snap.Environment, t.Path, t.Parent, t.File, t.Line)
	}
	for _, v := range snap.Vars {
		v := v
		var value *string
		if v.Const {
			value = &v.Value
		}
		batch.Queue(`INSERT INTO dm_vars (environment, type_path, name, tag, decl_type, value) VALUES ($1, $2, $3, $4, $5, $6)`,
			snap.Environment, v.TypePath, v.Name, v.Tag, v.DeclType, value)
	}
	seq := make(map[string]int)
	for _, p := range snap.Procs {
		key := p.TypePath + "/" + p.Name
		batch.Queue(`INSERT INTO dm_procs (environment, type_path, name, seq, verb, declared, params, file, line) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			snap.Environment, p.TypePath, p.Name, seq[key], p.Verb, p.Declared, p.Params, p.File, p.Line)
		seq[key]++
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store snapshot %s: %w", snap.Environment, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", snap.Environment, err)
	}

	log.Info().
		Str("environment", snap.Environment).
		Int("types", len(snap.Types)).
		Int("vars", len(snap.Vars)).
		Int("procs", len(snap.Procs)).
		Msg("Stored type snapshot")
	return nil
}

// Subtypes lists stored paths under prefix, prefix included.
func (ts *TypeStore) Subtypes(ctx context.Context, environment string, prefix dmpath.Path) ([]string, error) {
	rows, err := ts.pool.Query(ctx, `
		SELECT path FROM dm_types
		WHERE environment = $1 AND (path = $2 OR path LIKE $3)
		ORDER BY path`,
		environment, prefix.Rel(), escapeLike(prefix.Rel())+"/%")
	if err != nil {
		return nil, fmt.Errorf("query subtypes: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("query subtypes: %w", err)
	}
	return paths, nil
}

// Overriders lists the types that carry their own entry for a variable,
// with the stored value.
func (ts *TypeStore) Overriders(ctx context.Context, environment, name string) ([]VarRow, error) {
	rows, err := ts.pool.Query(ctx, `
		SELECT type_path, name, tag, decl_type, value FROM dm_vars
		WHERE environment = $1 AND name = $2
		ORDER BY type_path`, environment, name)
	if err != nil {
		return nil, fmt.Errorf("query overriders: %w", err)
	}
	defer rows.Close()

	var out []VarRow
	for rows.Next() {
		var row VarRow
		var value *string
		if err := rows.Scan(&row.TypePath, &row.Name, &row.Tag, &row.DeclType, &value); err != nil {
			return nil, fmt.Errorf("scan overrider: %w", err)
		}
		if value != nil {
			row.Value, row.Const = *value, true
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
