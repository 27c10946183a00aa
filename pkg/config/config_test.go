package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ekaya-inc/ekaya-quality/pkg/services"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
port: "3480"
env: "test"
datasource:
  type: postgres
  options:
    host: warehouse.example.com
    port: 5432
    database: analytics
profiling:
  top_k: 10
anomaly:
  row_count: 0.3
`)

	t.Setenv("PORT", "4480")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATASOURCE_PASSWORD", "s3cret")
	t.Setenv("ANOMALY_MEAN", "0.75")

	cfg, err := Load(path, "test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4480" {
		t.Errorf("expected Port=4480 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Datasource.Type != "postgres" {
		t.Errorf("expected Datasource.Type=postgres (from yaml), got %s", cfg.Datasource.Type)
	}
	if cfg.Profiling.TopK != 10 {
		t.Errorf("expected Profiling.TopK=10 (from yaml), got %d", cfg.Profiling.TopK)
	}
	if cfg.Anomaly.RowCount != 0.3 {
		t.Errorf("expected Anomaly.RowCount=0.3 (from yaml), got %g", cfg.Anomaly.RowCount)
	}
	if cfg.Anomaly.Mean != 0.75 {
		t.Errorf("expected Anomaly.Mean=0.75 (from env), got %g", cfg.Anomaly.Mean)
	}

	opts := cfg.Datasource.ExecutorOptions()
	if opts["password"] != "s3cret" {
		t.Errorf("expected password from DATASOURCE_PASSWORD, got %v", opts["password"])
	}
	if opts["database"] != "analytics" {
		t.Errorf("expected database=analytics, got %v", opts["database"])
	}
	if _, ok := cfg.Datasource.Options["password"]; ok {
		t.Error("ExecutorOptions must not modify the configured options")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "env: test\n")

	cfg, err := Load(path, "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BindAddr != "127.0.0.1" {
		t.Errorf("expected default BindAddr=127.0.0.1, got %s", cfg.BindAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default LogLevel=info, got %s", cfg.LogLevel)
	}
	if cfg.Datasource.Type != "duckdb" {
		t.Errorf("expected default Datasource.Type=duckdb, got %s", cfg.Datasource.Type)
	}
	if got, want := cfg.Profiling.CollectorConfig(), services.DefaultCollectorConfig(); got != want {
		t.Errorf("default profiling config = %+v, want %+v", got, want)
	}
	if got, want := cfg.Anomaly.Thresholds(), services.DefaultAnomalyThresholds(); got != want {
		t.Errorf("default anomaly thresholds = %+v, want %+v", got, want)
	}
	if got, want := cfg.Validation.ServiceConfig(), services.DefaultValidationConfig(); got != want {
		t.Errorf("default validation config = %+v, want %+v", got, want)
	}
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("DATASOURCE_TYPE", "snowflake")
	t.Setenv("VALIDATION_MAX_RULES", "25")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Datasource.Type != "snowflake" {
		t.Errorf("expected Datasource.Type=snowflake, got %s", cfg.Datasource.Type)
	}
	if cfg.Validation.MaxRules != 25 {
		t.Errorf("expected Validation.MaxRules=25, got %d", cfg.Validation.MaxRules)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown dialect", "datasource:\n  type: oracle\n", "datasource.type"},
		{"negative top k", "profiling:\n  top_k: -1\n", "top_k"},
		{"negative samples", "profiling:\n  max_sample_rows: -1\n", "sample sizes"},
		{"negative concurrency", "profiling:\n  max_concurrent_queries: -3\n", "max_concurrent_queries"},
		{"ratio above one", "profiling:\n  pattern_match_ratio: 1.5\n", "pattern_match_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml), "dev")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExecutorOptions_NoPassword(t *testing.T) {
	d := DatasourceConfig{Type: "duckdb", Options: map[string]any{"path": "/data/warehouse.duckdb"}}

	opts := d.ExecutorOptions()
	if _, ok := opts["password"]; ok {
		t.Error("password should be absent when DATASOURCE_PASSWORD is unset")
	}
	if opts["path"] != "/data/warehouse.duckdb" {
		t.Errorf("expected path to be copied, got %v", opts["path"])
	}
}

func TestLoad_NegativeMaxRulesDisablesLimit(t *testing.T) {
	cfg, err := Load(writeConfig(t, "validation:\n  max_rules: -1\n"), "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got := cfg.Validation.ServiceConfig().MaxRules; got != -1 {
		t.Errorf("expected MaxRules=-1, got %d", got)
	}
}

func TestLoad_NegativeThresholdDisables(t *testing.T) {
	cfg, err := Load(writeConfig(t, "anomaly:\n  stddev: -1\n"), "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	thresholds := cfg.Anomaly.Thresholds()
	if thresholds.Stddev != -1 {
		t.Errorf("expected Stddev=-1, got %g", thresholds.Stddev)
	}
	if thresholds.Mean != 0.5 {
		t.Errorf("expected default Mean=0.5, got %g", thresholds.Mean)
	}
}
