package cli

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"avulto/internal/config"
	"avulto/internal/dmi"
	"avulto/internal/filewalker"
	"avulto/internal/store"
	"avulto/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func iconCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "icon",
		Short: "Inspect .dmi icons",
	}
	cmd.AddCommand(iconInfoCmd(cfg))
	cmd.AddCommand(iconExtractCmd())
	cmd.AddCommand(iconSimilarCmd(cfg))
	return cmd
}

// loadIcons parses every icon under args on the worker pool.
func loadIcons(ctx context.Context, cfg *config.Config, args []string) ([]worker.Task[filewalker.FileEntry, *dmi.Icon], error) {
	entries, err := filewalker.NewWalker(filewalker.Icon).Resolve(args)
	if err != nil {
		return nil, err
	}
	pool := worker.NewPool(cfg.WorkerCount, func(ctx context.Context, e filewalker.FileEntry) (*dmi.Icon, error) {
		return dmi.Load(e.Path)
	})
	return pool.Execute(ctx, entries), nil
}

func iconInfoCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info <icon.dmi|dir>...",
		Short: "List the states of icons",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			tasks, err := loadIcons(ctx, cfg, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range tasks {
				if !t.Done || t.Err != nil {
					continue
				}
				ic := t.Result
				fmt.Fprintf(out, "%s\t%dx%d\tstates=%d\n", t.Input.Rel, ic.Width(), ic.Height(), ic.Len())
				for _, s := range ic.States() {
					fmt.Fprintf(out, "\t%s\n", describeState(s))
				}
			}
			if failed := worker.Failed(tasks); len(failed) > 0 {
				return fmt.Errorf("%d of %d icons failed to load", len(failed), len(tasks))
			}
			return nil
		},
	}
}

func describeState(s *dmi.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q dirs=%d frames=%d", s.Name, s.DirCount(), s.Frames())
	if s.Movement {
		b.WriteString(" movement")
	}
	if len(s.Delays) > 0 {
		fmt.Fprintf(&b, " delays=%v", s.Delays)
	}
	if s.Loop > 0 {
		fmt.Fprintf(&b, " loop=%d", s.Loop)
	}
	if s.Rewind {
		b.WriteString(" rewind")
	}
	return b.String()
}

func iconExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <icon.dmi> <state> <out-dir>",
		Short: "Write every frame of a state as PNG files",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ic, err := dmi.Load(args[0])
			if err != nil {
				return err
			}
			movement, _ := cmd.Flags().GetBool("movement")
			s, err := ic.StateFor(args[1], movement)
			if err != nil {
				return err
			}
			written, err := extractState(s, args[2])
			if err != nil {
				return err
			}
			log.Info().Str("state", s.Name).Int("frames", written).Str("output", args[2]).Msg("State extracted")
			return nil
		},
	}
	cmd.Flags().Bool("movement", false, "Use the movement variant of the state")
	return cmd
}

// extractState writes <state>_<dir>_<frame>.png files into dir.
func extractState(s *dmi.State, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	n := 0
	for _, d := range s.Dirs() {
		for f := 0; f < s.Frames(); f++ {
			img, err := s.Image(d, f)
			if err != nil {
				return n, err
			}
			name := fmt.Sprintf("%s_%s_%d.png", safeName(s.Name), strings.ToLower(d.String()), f)
			if err := writePNG(filepath.Join(dir, name), img); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// safeName makes a state name usable as a file name.
func safeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

func iconSimilarCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <icon.dmi> <state>",
		Short: "Find indexed icon states with similar colours",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			ic, err := dmi.Load(args[0])
			if err != nil {
				return err
			}
			s, err := ic.State(args[1])
			if err != nil {
				return err
			}
			vec, err := store.ColorVector(s, cfg.IconVectorBins)
			if err != nil {
				return err
			}

			pgPool, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer pgPool.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			results, err := store.NewIconStore(pgPool, cfg.IconVectorBins).Search(ctx, vec, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%.4f\t%s\t%q\n", r.Distance, r.File, r.State)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "Number of matches to show")
	return cmd
}
