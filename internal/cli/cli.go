package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"avulto/internal/config"
	"avulto/internal/dme"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:          "avulto",
		Short:        "Inspect and edit DM environments, maps and icons",
		Long:         "A toolkit for BYOND DM projects: query the type tree, walk proc bodies, edit .dmm maps, read and build .dmi icons, lint, and index a codebase into PostgreSQL and Neo4j.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(cfg, cmd.ErrOrStderr())
		},
	}

	rootCmd.AddCommand(typesCmd(cfg))
	rootCmd.AddCommand(varsCmd(cfg))
	rootCmd.AddCommand(procsCmd(cfg))
	rootCmd.AddCommand(walkCmd(cfg))
	rootCmd.AddCommand(mapCmd(cfg))
	rootCmd.AddCommand(iconCmd(cfg))
	rootCmd.AddCommand(lintCmd(cfg))
	rootCmd.AddCommand(indexCmd(cfg))
	rootCmd.AddCommand(queryCmd(cfg))
	rootCmd.AddCommand(diffMapsCmd(cfg))

	return rootCmd
}

// configureLogging installs the global logger from the configuration.
func configureLogging(cfg *config.Config, out io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch cfg.LogFormat {
	case "json":
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want console or json", cfg.LogFormat)
	}
	return nil
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// initDependencies connects to PostgreSQL and Neo4j.
func initDependencies(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, neo4j.DriverWithContext, error) {
	pgPool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	neo4jDriver, err := connectNeo4j(ctx, cfg)
	if err != nil {
		pgPool.Close()
		return nil, nil, err
	}

	return pgPool, neo4jDriver, nil
}

func connectNeo4j(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("connect Neo4j: %w", err)
	}
	if err := neo4jDriver.VerifyConnectivity(ctx); err != nil {
		neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")
	return neo4jDriver, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pgPool.Ping(ctx); err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pgPool, nil
}

// loadEnvironment parses a .dme with the configured proc parsing mode.
func loadEnvironment(ctx context.Context, cfg *config.Config, file string, defines []string) (*dme.Environment, error) {
	mode, err := dme.ParseProcParsing(cfg.ProcParsing)
	if err != nil {
		return nil, err
	}
	opts := []dme.Option{dme.WithProcParsing(mode)}
	for _, d := range defines {
		name, value := splitDefine(d)
		opts = append(opts, dme.WithDefine(name, value))
	}
	env, err := dme.Load(ctx, file, opts...)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	return env, nil
}

func splitDefine(d string) (string, string) {
	if name, value, ok := strings.Cut(d, "="); ok {
		return name, value
	}
	return d, "1"
}

func addDefineFlag(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("define", "D", nil, "Preprocessor definition NAME or NAME=VALUE")
}

func defines(cmd *cobra.Command) []string {
	d, _ := cmd.Flags().GetStringArray("define")
	return d
}
