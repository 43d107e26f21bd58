package cli

import (
	"fmt"

	"avulto/internal/config"
	"avulto/internal/lint"
	"avulto/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func lintCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <environment.dme> [map.dmm|dir]...",
		Short: "Check procs, vars and map tiles against an HCL rule file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			rulesPath, _ := cmd.Flags().GetString("rules")
			if rulesPath == "" {
				rulesPath = cfg.LintRules
			}
			rules, err := lint.LoadRules(rulesPath)
			if err != nil {
				return err
			}
			failOn, _ := cmd.Flags().GetString("fail-on")
			threshold, err := lint.ParseSeverity(failOn)
			if err != nil {
				return err
			}

			env, err := loadEnvironment(ctx, cfg, args[0], defines(cmd))
			if err != nil {
				return err
			}
			findings, err := rules.CheckEnvironment(env)
			if err != nil {
				return err
			}

			if len(args) > 1 {
				tasks, err := loadMaps(ctx, cfg, args[1:])
				if err != nil {
					return err
				}
				for _, t := range tasks {
					if t.Done && t.Err == nil {
						findings = append(findings, rules.CheckMap(t.Result)...)
					}
				}
				if failed := worker.Failed(tasks); len(failed) > 0 {
					return fmt.Errorf("%d of %d maps failed to load", len(failed), len(tasks))
				}
			}

			out := cmd.OutOrStdout()
			for _, f := range findings {
				fmt.Fprintln(out, f)
			}
			log.Info().Int("findings", len(findings)).Int("rules", rules.Len()).Msg("Lint complete")

			if lint.Failed(findings, threshold) {
				return fmt.Errorf("lint found problems at %s or above", threshold)
			}
			return nil
		},
	}
	cmd.Flags().String("rules", "", "Rule file (default from LINT_RULES)")
	cmd.Flags().String("fail-on", "error", "Lowest severity that fails the run: info, warning or error")
	addDefineFlag(cmd)
	return cmd
}
