package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "PROC_PARSING", "WORKER_COUNT", "MAP_FORMAT", "ICON_VECTOR_BINS", "LINT_RULES"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "lazy", cfg.ProcParsing)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, "dmm", cfg.MapFormat)
	assert.Equal(t, "avulto.hcl", cfg.LintRules)
	assert.Equal(t, 65, cfg.VectorDimensions())
}

func TestLoadFromEnvironment(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
		check func(t *testing.T, cfg *Config)
	}{
		{name: "eager parsing", key: "PROC_PARSING", value: "eager", check: func(t *testing.T, cfg *Config) {
			assert.Equal(t, "eager", cfg.ProcParsing)
		}},
		{name: "worker count", key: "WORKER_COUNT", value: "3", check: func(t *testing.T, cfg *Config) {
			assert.Equal(t, 3, cfg.WorkerCount)
		}},
		{name: "bad worker count falls back", key: "WORKER_COUNT", value: "many", check: func(t *testing.T, cfg *Config) {
			assert.Equal(t, 8, cfg.WorkerCount)
		}},
		{name: "vector bins", key: "ICON_VECTOR_BINS", value: "2", check: func(t *testing.T, cfg *Config) {
			assert.Equal(t, 9, cfg.VectorDimensions())
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			tc.check(t, Load())
		})
	}
}
