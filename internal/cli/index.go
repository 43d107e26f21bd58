package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"avulto/internal/cache"
	"avulto/internal/config"
	"avulto/internal/dme"
	"avulto/internal/dmi"
	"avulto/internal/filewalker"
	"avulto/internal/graph"
	"avulto/internal/store"
	"avulto/internal/textutil"
	"avulto/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func indexCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <environment.dme>",
		Short: "Store the type tree in PostgreSQL and Neo4j, and icon colour vectors in pgvector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			icons, _ := cmd.Flags().GetStringSlice("icons")
			force, _ := cmd.Flags().GetBool("force")
			return runIndex(cfg, args[0], name, icons, defines(cmd), force)
		},
	}
	cmd.Flags().String("name", "", "Environment name in the index (default: file name)")
	cmd.Flags().StringSlice("icons", nil, "Icon files or directories to vectorize")
	cmd.Flags().Bool("force", false, "Re-index files whose content has not changed")
	addDefineFlag(cmd)
	return cmd
}

// runIndex handles the `index` command.
func runIndex(cfg *config.Config, file, name string, icons, defs []string, force bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	pgPool, neo4jDriver, err := initDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()
	defer neo4jDriver.Close(ctx)

	digests := cache.NewDigestCache(pgPool)
	if err := digests.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := digests.Preload(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to preload digest cache")
	}

	env, err := loadEnvironment(ctx, cfg, file, defs)
	if err != nil {
		return err
	}
	envDigest := environmentDigest(file, env)
	cacheKey := "environment:" + name
	if old, ok := digests.Get(ctx, cacheKey); ok && old == envDigest && !force {
		log.Info().Str("environment", name).Msg("Environment unchanged, skipping type index")
	} else {
		snap := store.SnapshotOf(name, env)

		types := store.NewTypeStore(pgPool)
		if err := types.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := types.Replace(ctx, snap); err != nil {
			return err
		}

		graphBuilder := graph.NewGraphBuilder(neo4jDriver)
		if err := graphBuilder.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure graph schema: %w", err)
		}
		if err := graphBuilder.Replace(ctx, snap); err != nil {
			return err
		}
		if err := digests.Set(ctx, cacheKey, filewalker.Environment.String(), envDigest); err != nil {
			log.Warn().Err(err).Msg("Failed to record environment digest")
		}
	}

	if len(icons) == 0 {
		return nil
	}
	return indexIcons(ctx, cfg, store.NewIconStore(pgPool, cfg.IconVectorBins), digests, icons, force)
}

type iconResult struct {
	digest  string
	records []store.StateRecord
}

func indexIcons(ctx context.Context, cfg *config.Config, iconStore *store.IconStore, digests *cache.DigestCache, args []string, force bool) error {
	if err := iconStore.EnsureSchema(ctx); err != nil {
		return err
	}
	entries, err := filewalker.NewWalker(filewalker.Icon).Resolve(args)
	if err != nil {
		return err
	}

	pool := worker.NewPool(cfg.WorkerCount, func(ctx context.Context, e filewalker.FileEntry) (iconResult, error) {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			return iconResult{}, fmt.Errorf("read %s: %w", e.Path, err)
		}
		digest, changed := digests.Changed(ctx, e.Path, data)
		if !changed && !force {
			return iconResult{digest: digest}, nil
		}
		ic, err := dmi.Decode(e.Path, bytes.NewReader(data))
		if err != nil {
			return iconResult{}, err
		}
		records, err := iconStore.Records(e.Rel, ic)
		return iconResult{digest: digest, records: records}, err
	})
	tasks := pool.Execute(ctx, entries)

	stored, skipped := 0, 0
	for _, t := range tasks {
		if !t.Done || t.Err != nil {
			continue
		}
		if t.Result.records == nil {
			skipped++
			continue
		}
		if err := iconStore.Store(ctx, t.Result.records); err != nil {
			return err
		}
		if err := digests.Set(ctx, t.Input.Path, t.Input.Kind.String(), t.Result.digest); err != nil {
			log.Warn().Err(err).Str("file", t.Input.Path).Msg("Failed to record icon digest")
		}
		stored++
	}

	log.Info().
		Int("icons", len(entries)).
		Int("stored", stored).
		Int("unchanged", skipped).
		Int("failed", len(worker.Failed(tasks))).
		Msg("Icon indexing complete")
	return nil
}

// environmentDigest hashes the root file and everything it included.
func environmentDigest(root string, env *dme.Environment) string {
	var b strings.Builder
	for _, f := range append([]string{root}, env.Includes()...) {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Debug().Err(err).Str("file", f).Msg("Skipping unreadable include in digest")
			continue
		}
		b.WriteString(f)
		b.WriteByte(0)
		b.Write(data)
		b.WriteByte(0)
	}
	return textutil.Hash(b.String())
}
