package cli

import (
	"context"
	"fmt"
	"strconv"

	"avulto/internal/config"
	"avulto/internal/dmm"
	"avulto/internal/filewalker"
	"avulto/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func mapCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Inspect and convert .dmm maps",
	}
	cmd.AddCommand(mapInfoCmd(cfg))
	cmd.AddCommand(mapTileCmd())
	cmd.AddCommand(mapConvertCmd(cfg))
	return cmd
}

// loadMaps parses every map under args on the worker pool.
func loadMaps(ctx context.Context, cfg *config.Config, args []string) ([]worker.Task[filewalker.FileEntry, *dmm.Map], error) {
	entries, err := filewalker.NewWalker(filewalker.Map).Resolve(args)
	if err != nil {
		return nil, err
	}
	pool := worker.NewPool(cfg.WorkerCount, func(ctx context.Context, e filewalker.FileEntry) (*dmm.Map, error) {
		return dmm.Load(e.Path)
	})
	return pool.Execute(ctx, entries), nil
}

func mapInfoCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info <map.dmm|dir>...",
		Short: "Summarize maps: size, format, key length and distinct tiles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			tasks, err := loadMaps(ctx, cfg, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range tasks {
				if !t.Done || t.Err != nil {
					continue
				}
				m := t.Result
				size := m.Size()
				fmt.Fprintf(out, "%s\t%dx%dx%d\t%s\tkey=%d\ttiles=%d\n",
					t.Input.Rel, size.X, size.Y, size.Z, m.Format(), m.KeyLen(), m.Len())
			}
			if failed := worker.Failed(tasks); len(failed) > 0 {
				return fmt.Errorf("%d of %d maps failed to load", len(failed), len(tasks))
			}
			return nil
		},
	}
}

func mapTileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tile <map.dmm> <x> <y> [z]",
		Short: "Print the prefabs stacked on one tile",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := dmm.Load(args[0])
			if err != nil {
				return err
			}
			coords := []int{1, 1, 1}
			for i, a := range args[1:] {
				n, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("coordinate %q: %w", a, err)
				}
				coords[i] = n
			}
			tile, err := m.TileDef(coords[0], coords[1], coords[2])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key %q\n", tile.Key())
			for i, pf := range tile.Prefabs() {
				fmt.Fprintf(out, "%d\t%s\n", i, pf)
			}
			if area, ok := tile.AreaPath(); ok {
				fmt.Fprintf(out, "area\t%s\n", area.Rel())
			}
			if turf, ok := tile.TurfPath(); ok {
				fmt.Fprintf(out, "turf\t%s\n", turf.Rel())
			}
			return nil
		},
	}
}

func mapConvertCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <in.dmm> <out.dmm>",
		Short: "Rewrite a map in DMM or TGM layout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("format")
			if name == "" {
				name = cfg.MapFormat
			}
			format, err := dmm.ParseFormat(name)
			if err != nil {
				return err
			}

			m, err := dmm.Load(args[0])
			if err != nil {
				return err
			}
			if err := m.Save(args[1], dmm.WithFormat(format)); err != nil {
				return err
			}
			log.Info().Str("input", args[0]).Str("output", args[1]).Str("format", format.String()).Msg("Map converted")
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output layout: dmm or tgm (default from MAP_FORMAT)")
	return cmd
}
