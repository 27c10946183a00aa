package config

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/services"
)

// Config holds all configuration for ekaya-quality.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Datasource the server profiles and validates against.
	Datasource DatasourceConfig `yaml:"datasource"`

	Profiling  ProfilingConfig  `yaml:"profiling"`
	Anomaly    AnomalyConfig    `yaml:"anomaly"`
	Validation ValidationConfig `yaml:"validation"`
}

// DatasourceConfig selects the adapter and carries its connection options.
type DatasourceConfig struct {
	// Type is a dialect id: postgres, redshift, snowflake, bigquery, duckdb.
	Type string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"duckdb"`
	// Options is passed to the adapter's FromMap (host, port, database, ...).
	Options map[string]any `yaml:"options"`
	// Password is merged into Options; env only.
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"`
}

// ProfilingConfig bounds the statistics collector.
type ProfilingConfig struct {
	TopK                 int     `yaml:"top_k" env:"PROFILING_TOP_K" env-default:"5"`
	SampleRows           int     `yaml:"sample_rows" env:"PROFILING_SAMPLE_ROWS" env-default:"100"`
	MaxSampleRows        int     `yaml:"max_sample_rows" env:"PROFILING_MAX_SAMPLE_ROWS" env-default:"1000"`
	PrefixSampleSize     int     `yaml:"prefix_sample_size" env:"PROFILING_PREFIX_SAMPLE_SIZE" env-default:"500"`
	MaxConcurrentQueries int     `yaml:"max_concurrent_queries" env:"PROFILING_MAX_CONCURRENT_QUERIES" env-default:"4"`
	PatternMatchRatio    float64 `yaml:"pattern_match_ratio" env:"PROFILING_PATTERN_MATCH_RATIO" env-default:"1.0"`
}

// AnomalyConfig holds the anomaly thresholds. Relative thresholds are
// fractions of the previous value; percentage thresholds are points.
// A negative value disables a metric; zero is treated as unset and takes the default.
type AnomalyConfig struct {
	RowCount           float64 `yaml:"row_count" env:"ANOMALY_ROW_COUNT" env-default:"0.20"`
	DuplicateCount     float64 `yaml:"duplicate_count" env:"ANOMALY_DUPLICATE_COUNT" env-default:"0.50"`
	NullPercentage     float64 `yaml:"null_percentage" env:"ANOMALY_NULL_PERCENTAGE" env-default:"10"`
	DistinctPercentage float64 `yaml:"distinct_percentage" env:"ANOMALY_DISTINCT_PERCENTAGE" env-default:"10"`
	Mean               float64 `yaml:"mean" env:"ANOMALY_MEAN" env-default:"0.50"`
	Stddev             float64 `yaml:"stddev" env:"ANOMALY_STDDEV" env-default:"0.50"`
	MaxLength          float64 `yaml:"max_length" env:"ANOMALY_MAX_LENGTH" env-default:"0.50"`
}

// ValidationConfig bounds rule evaluation. A negative max_rules disables the
// batch limit; zero is replaced by the default.
type ValidationConfig struct {
	MaxRules int `yaml:"max_rules" env:"VALIDATION_MAX_RULES" env-default:"500"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: every field has an env var and a default.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values cleanenv cannot constrain.
func (c *Config) Validate() error {
	if _, err := dialect.Lookup(c.Datasource.Type); err != nil {
		return fmt.Errorf("datasource.type: %w", err)
	}

	p := c.Profiling
	switch {
	case p.TopK < 1:
		return fmt.Errorf("profiling.top_k must be at least 1, got %d", p.TopK)
	case p.SampleRows < 0 || p.MaxSampleRows < 0:
		return fmt.Errorf("profiling sample sizes must not be negative")
	case p.PrefixSampleSize < 1:
		return fmt.Errorf("profiling.prefix_sample_size must be at least 1, got %d", p.PrefixSampleSize)
	case p.MaxConcurrentQueries < 1:
		return fmt.Errorf("profiling.max_concurrent_queries must be at least 1, got %d", p.MaxConcurrentQueries)
	case p.PatternMatchRatio <= 0 || p.PatternMatchRatio > 1:
		return fmt.Errorf("profiling.pattern_match_ratio must be in (0, 1], got %g", p.PatternMatchRatio)
	}
	return nil
}

// ExecutorOptions returns the adapter options with the env-supplied password
// merged in and a loopback host rewritten when running inside Docker.
func (d *DatasourceConfig) ExecutorOptions() map[string]any {
	opts := make(map[string]any, len(d.Options)+1)
	maps.Copy(opts, d.Options)
	if d.Password != "" {
		opts["password"] = d.Password
	}
	if host, ok := opts["host"].(string); ok {
		opts["host"] = ResolveHostForDocker(host)
	}
	return opts
}

// CollectorConfig maps the profiling section onto the collector's settings.
func (p ProfilingConfig) CollectorConfig() services.CollectorConfig {
	return services.CollectorConfig{
		TopK:                 p.TopK,
		SampleRows:           p.SampleRows,
		MaxSampleRows:        p.MaxSampleRows,
		PrefixSampleSize:     p.PrefixSampleSize,
		MaxConcurrentQueries: p.MaxConcurrentQueries,
		PatternMatchRatio:    p.PatternMatchRatio,
	}
}

// Thresholds maps the anomaly section onto detection thresholds.
func (a AnomalyConfig) Thresholds() services.AnomalyThresholds {
	return services.AnomalyThresholds{
		RowCount:           a.RowCount,
		DuplicateCount:     a.DuplicateCount,
		NullPercentage:     a.NullPercentage,
		DistinctPercentage: a.DistinctPercentage,
		Mean:               a.Mean,
		Stddev:             a.Stddev,
		MaxLength:          a.MaxLength,
	}
}

// ServiceConfig maps the validation section onto the validation service's settings.
func (v ValidationConfig) ServiceConfig() services.ValidationConfig {
	return services.ValidationConfig{MaxRules: v.MaxRules}
}
