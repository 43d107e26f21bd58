package store

import (
	"context"
	"fmt"

	"avulto/internal/dmi"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// IconStore handles pgvector-backed colour vectors of icon states.
type IconStore struct {
	pool *pgxpool.Pool
	bins int
}

// NewIconStore creates a store whose vectors quantize each channel into
// bins buckets.
func NewIconStore(pool *pgxpool.Pool, bins int) *IconStore {
	return &IconStore{pool: pool, bins: bins}
}

// Dimensions is the vector length used by the store.
func (is *IconStore) Dimensions() int { return is.bins*is.bins*is.bins + 1 }

// StateRecord is one indexed icon state.
type StateRecord struct {
	File     string
	State    string
	Movement bool
	Dirs     int
	Frames   int
	Vector   []float32
}

// SearchResult is a similarity match.
type SearchResult struct {
	File     string
	State    string
	Movement bool
	Distance float64
}

// EnsureSchema creates the vector extension and table.
func (is *IconStore) EnsureSchema(ctx context.Context) error {
	if _, err := is.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := is.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS icon_states (
			file      TEXT    NOT NULL,
			state     TEXT    NOT NULL,
			movement  BOOLEAN NOT NULL,
			dirs      INT     NOT NULL,
			frames    INT     NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (file, state, movement)
		)`, is.Dimensions()))
	if err != nil {
		return fmt.Errorf("create icon_states: %w", err)
	}
	return nil
}

// Records builds one record per state of ic.
func (is *IconStore) Records(file string, ic *dmi.Icon) ([]StateRecord, error) {
	states := ic.States()
	out := make([]StateRecord, 0, len(states))
	for _, s := range states {
		vec, err := ColorVector(s, is.bins)
		if err != nil {
			return nil, fmt.Errorf("vectorize %s:%s: %w", file, s.Name, err)
		}
		out = append(out, StateRecord{
			File:     file,
			State:    s.Name,
			Movement: s.Movement,
			Dirs:     s.DirCount(),
			Frames:   s.Frames(),
			Vector:   vec,
		})
	}
	return out, nil
}

// Store replaces the rows of every file present in records.
func (is *IconStore) Store(ctx context.Context, records []StateRecord) error {
	if len(records) == 0 {
		return nil
	}

	cleared := make(map[string]bool)
	for _, r := range records {
		if !cleared[r.File] {
			if _, err := is.pool.Exec(ctx, `DELETE FROM icon_states WHERE file = $1`, r.File); err != nil {
				return fmt.Errorf("clear %s: %w", r.File, err)
			}
			cleared[r.File] = true
		}
		_, err := is.pool.Exec(ctx, `
			INSERT INTO icon_states (file, state, movement, dirs, frames, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (file, state, movement) DO UPDATE SET
				dirs = EXCLUDED.dirs, frames = EXCLUDED.frames, embedding = EXCLUDED.embedding`,
			r.File, r.State, r.Movement, r.Dirs, r.Frames, pgvector.NewVector(r.Vector))
		if err != nil {
			return fmt.Errorf("insert icon state %s:%s: %w", r.File, r.State, err)
		}
	}

	log.Info().Int("count", len(records)).Msg("Stored icon states")
	return nil
}

// Search finds the topK states closest to vec.
func (is *IconStore) Search(ctx context.Context, vec []float32, topK int) ([]SearchResult, error) {
	rows, err := is.pool.Query(ctx, `
		SELECT file, state, movement, embedding <-> $1 AS distance
		FROM icon_states
		ORDER BY embedding <-> $1
		LIMIT $2`, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.File, &r.State, &r.Movement, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ColorVector is a normalized colour histogram over every frame of s.
// Each channel is quantized into bins buckets; pixels with alpha below
// half go to a final transparency bucket.
func ColorVector(s *dmi.State, bins int) ([]float32, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("color vector: bins must be positive, got %d", bins)
	}
	vec := make([]float32, bins*bins*bins+1)
	transparent := len(vec) - 1
	var total int

	for _, d := range s.Dirs() {
		for f := 0; f < s.Frames(); f++ {
			img, err := s.Image(d, f)
			if err != nil {
				return nil, err
			}
			px := img.Pix
			for y := 0; y < img.Rect.Dy(); y++ {
				row := px[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
				for i := 0; i < len(row); i += 4 {
					total++
					if row[i+3] < 128 {
						vec[transparent]++
						continue
					}
					r := int(row[i]) * bins / 256
					g := int(row[i+1]) * bins / 256
					b := int(row[i+2]) * bins / 256
					vec[r*bins*bins+g*bins+b]++
				}
			}
		}
	}

	if total > 0 {
		for i := range vec {
			vec[i] /= float32(total)
		}
	}
	return vec, nil
}
