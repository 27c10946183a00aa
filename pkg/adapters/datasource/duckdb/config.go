package duckdb

import (
	"net/url"

	"github.com/ekaya-inc/ekaya-quality/pkg/jsonutil"
)

// Config contains DuckDB options. An empty Path opens an in-memory database.
type Config struct {
	Path     string
	ReadOnly bool
	Threads  int
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{Path: jsonutil.FlexibleString(config["path"])}
	if ro, ok := jsonutil.FlexibleBool(config["read_only"]); ok {
		cfg.ReadOnly = ro
	}
	if threads, ok := jsonutil.FlexibleInt(config["threads"]); ok && threads > 0 {
		cfg.Threads = threads
	}
	return cfg, nil
}

// DSN renders the go-duckdb connection string.
func (c *Config) DSN() string {
	params := url.Values{}
	if c.ReadOnly && c.Path != "" {
		params.Set("access_mode", "READ_ONLY")
	}
	if c.Threads > 0 {
		params.Set("threads", jsonutil.FlexibleString(c.Threads))
	}
	if len(params) == 0 {
		return c.Path
	}
	return c.Path + "?" + params.Encode()
}
