package cli

import (
	"fmt"

	"avulto/internal/config"
	"avulto/internal/dmpath"
	"avulto/internal/graph"
	"avulto/internal/revision"
	"avulto/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func queryCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query an indexed environment",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "subtypes <environment> <type>",
		Short: "List indexed subtypes of a type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			prefix, err := dmpath.New(args[1])
			if err != nil {
				return err
			}
			pgPool, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer pgPool.Close()

			paths, err := store.NewTypeStore(pgPool).Subtypes(ctx, args[0], prefix)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "overriders <environment> <var>",
		Short: "List the types that set a variable themselves",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			pgPool, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer pgPool.Close()

			rows, err := store.NewTypeStore(pgPool).Overriders(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			for _, r := range rows {
				value := "<expr>"
				if r.Const {
					value = r.Value
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.TypePath, r.Tag, value)
			}
			return nil
		},
	})

	hierarchy := &cobra.Command{
		Use:   "hierarchy <environment> <type>",
		Short: "Show a type's ancestors, or its descendants with --down",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			driver, err := connectNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			q := graph.NewGraphQuerier(driver)
			down, _ := cmd.Flags().GetBool("down")
			depth, _ := cmd.Flags().GetInt("depth")
			var types []graph.TypeResult
			if down {
				types, err = q.Descendants(ctx, args[0], args[1], depth)
			} else {
				types, err = q.Ancestors(ctx, args[0], args[1])
			}
			if err != nil {
				return err
			}
			for _, t := range types {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", t.Distance, t.Path)
			}
			return nil
		},
	}
	hierarchy.Flags().Bool("down", false, "List descendants instead of ancestors")
	hierarchy.Flags().Int("depth", 0, "Limit descendants to this many levels (0 for all)")
	cmd.AddCommand(hierarchy)

	cmd.AddCommand(&cobra.Command{
		Use:   "overrides <environment> <type> <proc>",
		Short: "List definitions of a proc on a type and its subtypes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			driver, err := connectNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			procs, err := graph.NewGraphQuerier(driver).Overrides(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			for _, p := range procs {
				kind := "override"
				if p.Declared {
					kind = "declaration"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\n", p.Owner, p.Name, kind)
			}
			return nil
		},
	})
	return cmd
}

func diffMapsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff-maps <base-rev> [target-rev]",
		Short: "Report which map tiles changed between two git revisions",
		Long: `Compares every .dmm file that changed between two revisions and lists
the coordinates whose tile contents differ. Without a target revision the
working tree is compared against the base.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			repoRoot, _ := cmd.Flags().GetString("repo")
			folder, _ := cmd.Flags().GetString("folder")
			if !revision.IsRepo(repoRoot) {
				log.Warn().Str("repo", repoRoot).Msg("No .git directory found, git may still resolve a parent repository")
			}
			target := ""
			if len(args) == 2 {
				target = args[1]
			}

			diffs, err := revision.NewRepo(repoRoot).DiffMaps(ctx, args[0], target, folder)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range diffs {
				switch {
				case d.SizeChanged:
					fmt.Fprintf(out, "%s\tresized %s -> %s\n", d.Path, d.OldSize, d.NewSize)
				case d.Status == revision.Modified || d.Status == revision.Renamed:
					fmt.Fprintf(out, "%s\t%s\t%d tiles\n", d.Path, d.Status, len(d.Coords))
					for _, c := range d.Coords {
						fmt.Fprintf(out, "\t%s\n", c)
					}
				default:
					fmt.Fprintf(out, "%s\t%s\n", d.Path, d.Status)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("repo", ".", "Repository root")
	cmd.Flags().String("folder", "", "Only consider maps under this folder")
	return cmd
}
