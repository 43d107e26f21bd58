package cache

import (
	"context"
	"fmt"
	"sync"

	"avulto/internal/textutil"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DigestCache remembers the content digest of every file the indexer has
// stored, so unchanged maps, icons and environments are skipped on the
// next run. It lives in memory and, when a pool is given, in PostgreSQL.
type DigestCache struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	memory map[string]string // path → digest
}

// NewDigestCache creates a cache; pool may be nil for a memory-only cache.
func NewDigestCache(pool *pgxpool.Pool) *DigestCache {
	return &DigestCache{
		pool:   pool,
		memory: make(map[string]string),
	}
}

// EnsureSchema creates the backing table.
func (c *DigestCache) EnsureSchema(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS file_digests (
			path       TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			digest     TEXT NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create file_digests: %w", err)
	}
	return nil
}

// Get returns the stored digest for path.
func (c *DigestCache) Get(ctx context.Context, path string) (string, bool) {
	c.mu.RLock()
	if v, ok := c.memory[path]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	if c.pool == nil {
		return "", false
	}
	var digest string
	err := c.pool.QueryRow(ctx, `SELECT digest FROM file_digests WHERE path = $1`, path).Scan(&digest)
	if err != nil {
		return "", false
	}

	c.mu.Lock()
	c.memory[path] = digest
	c.mu.Unlock()
	return digest, true
}

// Changed hashes content and reports whether it differs from what was
// stored for path. It does not record the new digest.
func (c *DigestCache) Changed(ctx context.Context, path string, content []byte) (string, bool) {
	digest := textutil.HashBytes(content)
	old, ok := c.Get(ctx, path)
	return digest, !ok || old != digest
}

// Set records the digest of path in memory and PostgreSQL.
func (c *DigestCache) Set(ctx context.Context, path, kind, digest string) error {
	c.mu.Lock()
	c.memory[path] = digest
	c.mu.Unlock()

	if c.pool == nil {
		return nil
	}
	_, err := c.pool.Exec(ctx, `
		INSERT INTO file_digests (path, kind, digest, indexed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (path) DO UPDATE SET kind = EXCLUDED.kind, digest = EXCLUDED.digest, indexed_at = now()`,
		path, kind, digest)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", path, err)
	}
	return nil
}

// Preload loads every stored digest into memory.
func (c *DigestCache) Preload(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	rows, err := c.pool.Query(ctx, `SELECT path, digest FROM file_digests`)
	if err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for rows.Next() {
		var path, digest string
		if err := rows.Scan(&path, &digest); err != nil {
			return fmt.Errorf("preload cache: %w", err)
		}
		c.memory[path] = digest
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}

	log.Info().Int("count", n).Msg("Preloaded digest cache")
	return nil
}
