package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"abtest/internal/errors"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Analysis   AnalysisConfig   `yaml:"analysis" validate:"required"`
	Output     OutputConfig     `yaml:"output" validate:"required"`
	Regression RegressionConfig `yaml:"regression"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AnalysisConfig holds significance testing settings
type AnalysisConfig struct {
	Alpha              float64 `yaml:"alpha" validate:"gt=0,lt=1"`
	LenientGroupLabels bool    `yaml:"lenient_group_labels"`
	Workers            int     `yaml:"workers" validate:"gte=1,lte=64"`
}

// OutputConfig controls processed snapshot writing
type OutputConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir" validate:"required_if=Enabled true"`
	Filename string `yaml:"filename"`
	Format   string `yaml:"format" validate:"oneof=csv tsv xlsx"`
}

// RegressionConfig holds logistic regression settings
type RegressionConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Features      []string `yaml:"features" validate:"required_if=Enabled true,dive,required"`
	MaxIterations int      `yaml:"max_iterations" validate:"gte=1"`
	Tolerance     float64  `yaml:"tolerance" validate:"gt=0"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=ERROR WARN INFO DEBUG TRACE"`
	File  string `yaml:"file"`
}

// MetricsConfig controls the prometheus textfile export
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Alpha:   0.05,
			Workers: 4,
		},
		Output: OutputConfig{
			Dir:    "datasets/processed",
			Format: "csv",
		},
		Regression: RegressionConfig{
			Features:      []string{"intercept", "ab_group"},
			MaxIterations: 35,
			Tolerance:     1e-8,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load reads configuration from environment variables, optionally overlaid
// by a YAML file, and validates it. Environment variables win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to parse config file %s", path)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Analysis.Alpha = getEnvFloatOrDefault("ABTEST_ALPHA", cfg.Analysis.Alpha)
	cfg.Analysis.LenientGroupLabels = getEnvBoolOrDefault("ABTEST_LENIENT_GROUPS", cfg.Analysis.LenientGroupLabels)
	cfg.Analysis.Workers = getEnvIntOrDefault("ABTEST_WORKERS", cfg.Analysis.Workers)

	cfg.Output.Enabled = getEnvBoolOrDefault("ABTEST_SAVE", cfg.Output.Enabled)
	cfg.Output.Dir = getEnvOrDefault("ABTEST_OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.Filename = getEnvOrDefault("ABTEST_OUTPUT_NAME", cfg.Output.Filename)
	cfg.Output.Format = strings.ToLower(getEnvOrDefault("ABTEST_OUTPUT_FORMAT", cfg.Output.Format))

	cfg.Regression.Enabled = getEnvBoolOrDefault("ABTEST_REGRESSION", cfg.Regression.Enabled)
	if v := os.Getenv("ABTEST_FEATURES"); v != "" {
		cfg.Regression.Features = SplitList(v)
	}
	cfg.Regression.MaxIterations = getEnvIntOrDefault("ABTEST_MAX_ITER", cfg.Regression.MaxIterations)
	cfg.Regression.Tolerance = getEnvFloatOrDefault("ABTEST_TOLERANCE", cfg.Regression.Tolerance)

	cfg.Logging.Level = strings.ToUpper(getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.File = getEnvOrDefault("ABTEST_LOG_FILE", cfg.Logging.File)

	cfg.Metrics.TextfilePath = getEnvOrDefault("ABTEST_METRICS_FILE", cfg.Metrics.TextfilePath)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and reports the first failing field
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return errors.ConfigInvalid(fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
