package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	LogLevel  string
	LogFormat string

	// ProcParsing is "lazy" or "eager".
	ProcParsing string
	WorkerCount int
	// MapFormat is the layout map conversions write by default: dmm or tgm.
	MapFormat string

	DatabaseURL    string
	Neo4jURI       string
	Neo4jUser      string
	Neo4jPassword  string
	IconVectorBins int

	LintRules string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		ProcParsing:    getEnv("PROC_PARSING", "lazy"),
		WorkerCount:    getEnvInt("WORKER_COUNT", 8),
		MapFormat:      getEnv("MAP_FORMAT", "dmm"),
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/avulto?sslmode=disable"),
		Neo4jURI:       getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:      getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:  getEnv("NEO4J_PASSWORD", "password"),
		IconVectorBins: getEnvInt("ICON_VECTOR_BINS", 4),
		LintRules:      getEnv("LINT_RULES", "avulto.hcl"),
	}
}

// VectorDimensions is the length of an icon colour vector: one bucket per
// quantised RGB cell plus one for transparency.
func (c *Config) VectorDimensions() int {
	b := c.IconVectorBins
	return b*b*b + 1
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-numeric setting")
		return fallback
	}
	return n
}
