package config

import (
	"os"
	"path/filepath"
	"testing"

	"abtest/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Analysis.Alpha)
	assert.False(t, cfg.Analysis.LenientGroupLabels)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, []string{"intercept", "ab_group"}, cfg.Regression.Features)
	assert.Equal(t, 35, cfg.Regression.MaxIterations)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ABTEST_ALPHA", "0.01")
	t.Setenv("ABTEST_OUTPUT_FORMAT", "XLSX")
	t.Setenv("ABTEST_FEATURES", "intercept, ab_group ,hour,")
	t.Setenv("ABTEST_LENIENT_GROUPS", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.Analysis.Alpha)
	assert.Equal(t, "xlsx", cfg.Output.Format)
	assert.Equal(t, []string{"intercept", "ab_group", "hour"}, cfg.Regression.Features)
	assert.True(t, cfg.Analysis.LenientGroupLabels)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoad_IgnoresMalformedEnv(t *testing.T) {
	t.Setenv("ABTEST_ALPHA", "five percent")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Analysis.Alpha)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abtest.yaml")
	content := `
analysis:
  alpha: 0.1
  workers: 2
output:
  enabled: true
  dir: out
  format: tsv
regression:
  enabled: true
  features: [intercept, ab_group, hour]
  max_iterations: 50
  tolerance: 1.0e-6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Analysis.Alpha)
	assert.Equal(t, 2, cfg.Analysis.Workers)
	assert.True(t, cfg.Output.Enabled)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "tsv", cfg.Output.Format)
	assert.True(t, cfg.Regression.Enabled)
	assert.Equal(t, []string{"intercept", "ab_group", "hour"}, cfg.Regression.Features)
	assert.Equal(t, 50, cfg.Regression.MaxIterations)
	assert.Equal(t, 1e-6, cfg.Regression.Tolerance)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  alpha: 0.1\n"), 0o644))
	t.Setenv("ABTEST_ALPHA", "0.2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Analysis.Alpha)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("analysis: [unclosed"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"alpha zero", func(c *Config) { c.Analysis.Alpha = 0 }, true},
		{"alpha one", func(c *Config) { c.Analysis.Alpha = 1 }, true},
		{"unknown format", func(c *Config) { c.Output.Format = "parquet" }, true},
		{"save without dir", func(c *Config) { c.Output.Enabled = true; c.Output.Dir = "" }, true},
		{"regression without features", func(c *Config) { c.Regression.Enabled = true; c.Regression.Features = nil }, true},
		{"blank feature", func(c *Config) { c.Regression.Features = []string{"intercept", ""} }, true},
		{"zero iterations", func(c *Config) { c.Regression.MaxIterations = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "LOUD" }, true},
		{"zero workers", func(c *Config) { c.Analysis.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a,,b , "))
	assert.Nil(t, SplitList(""))
}
