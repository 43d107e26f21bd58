package cli

import (
	"fmt"
	"strings"

	"avulto/internal/ast"
	"avulto/internal/config"
	"avulto/internal/dme"
	"avulto/internal/dmpath"
	"avulto/internal/source"
	"avulto/internal/textutil"

	"github.com/spf13/cobra"
)

func typesCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types <environment.dme> [prefix]",
		Short: "List type paths, optionally only those under a prefix",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			env, err := loadEnvironment(ctx, cfg, args[0], defines(cmd))
			if err != nil {
				return err
			}
			paths := env.Paths()
			if len(args) == 2 {
				prefix, err := dmpath.New(args[1])
				if err != nil {
					return err
				}
				paths = env.PathsPrefixed(prefix)
			}
			out := cmd.OutOrStdout()
			for _, p := range paths {
				if !p.IsRoot() {
					fmt.Fprintln(out, p.Rel())
				}
			}
			return nil
		},
	}
	addDefineFlag(cmd)
	return cmd
}

func varsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars <environment.dme> <type>",
		Short: "Show a type's variables and their resolved values",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			env, err := loadEnvironment(ctx, cfg, args[0], defines(cmd))
			if err != nil {
				return err
			}
			td, err := env.Lookup(args[1])
			if err != nil {
				return err
			}

			var f dme.VarFilter
			f.Declared, _ = cmd.Flags().GetBool("declared")
			f.Modified, _ = cmd.Flags().GetBool("modified")
			f.Unmodified, _ = cmd.Flags().GetBool("unmodified")

			out := cmd.OutOrStdout()
			for _, name := range td.VarNames(f) {
				decl, err := td.VarDecl(name)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, formatVar(decl))
			}
			return nil
		},
	}
	cmd.Flags().Bool("declared", false, "Only variables the type declares")
	cmd.Flags().Bool("modified", false, "Only inherited variables the type overrides")
	cmd.Flags().Bool("unmodified", false, "Only inherited variables the type leaves alone")
	addDefineFlag(cmd)
	return cmd
}

// maxValueWidth bounds the value column of the vars listing.
const maxValueWidth = 80

func formatVar(decl *dme.VarDecl) string {
	var b strings.Builder
	b.WriteString(decl.Name)
	if !decl.Type.IsRoot() {
		fmt.Fprintf(&b, " as %s", decl.Type.Rel())
	}
	if decl.Const {
		fmt.Fprintf(&b, " = %s", textutil.Truncate(decl.Value.String(), maxValueWidth))
	} else if decl.Expr != nil {
		b.WriteString(" = <expr>")
	}
	fmt.Fprintf(&b, "\t(%s on %s)", decl.Tag, decl.Owner.Rel())
	return b.String()
}

func procsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "procs <environment.dme> <type>",
		Short: "List the procs visible on a type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			env, err := loadEnvironment(ctx, cfg, args[0], defines(cmd))
			if err != nil {
				return err
			}
			td, err := env.Lookup(args[1])
			if err != nil {
				return err
			}

			var f dme.ProcFilter
			f.Declared, _ = cmd.Flags().GetBool("declared")
			f.Modified, _ = cmd.Flags().GetBool("modified")

			out := cmd.OutOrStdout()
			for _, name := range td.ProcNames(f) {
				pd, err := td.Proc(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\n", formatProc(pd), pd.Location)
			}
			return nil
		},
	}
	cmd.Flags().Bool("declared", false, "Only procs the type introduces")
	cmd.Flags().Bool("modified", false, "Only inherited procs the type overrides")
	addDefineFlag(cmd)
	return cmd
}

func formatProc(pd *dme.ProcDecl) string {
	params := make([]string, len(pd.Params))
	for i, p := range pd.Params {
		params[i] = p.Name
		if !p.Type.IsRoot() {
			params[i] = strings.TrimPrefix(p.Type.Rel(), "/") + "/" + p.Name
		}
		if p.Default != nil {
			params[i] += " = ..."
		}
	}
	kind := "proc"
	if pd.Verb {
		kind = "verb"
	}
	return fmt.Sprintf("%s/%s/%s(%s)", pd.Owner.Rel(), kind, pd.Name, strings.Join(params, ", "))
}

func walkCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk <environment.dme> <type> <proc>",
		Short: "Print the nodes of a proc body in walk order",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			env, err := loadEnvironment(ctx, cfg, args[0], defines(cmd))
			if err != nil {
				return err
			}
			p, err := dmpath.New(args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			emit := func(n ast.Node, loc source.Location) error {
				_, err := fmt.Fprintf(out, "%s\t%s\n", loc, n.Kind())
				return err
			}

			v := ast.NewVisitor()
			kinds, _ := cmd.Flags().GetStringSlice("kind")
			if len(kinds) == 0 {
				v.OnAll(emit)
			}
			for _, name := range kinds {
				k, ok := ast.ParseKind(name)
				if !ok {
					return fmt.Errorf("unknown node kind %q", name)
				}
				v.On(k, emit)
			}
			return env.WalkProc(p, args[2], v)
		},
	}
	cmd.Flags().StringSlice("kind", nil, "Only print nodes of these kinds, e.g. Call,Return")
	addDefineFlag(cmd)
	return cmd
}
