package postgres

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-quality/pkg/jsonutil"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	MaxConns int32
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:     DefaultPort(),
		SSLMode:  DefaultSSLMode(),
		MaxConns: 4,
	}

	if cfg.Host = jsonutil.FlexibleString(config["host"]); cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if port, ok := jsonutil.FlexibleInt(config["port"]); ok {
		cfg.Port = port
	}
	if cfg.User = jsonutil.FlexibleString(config["user"]); cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	cfg.Password = jsonutil.FlexibleString(config["password"])
	if cfg.Database = jsonutil.FlexibleString(config["database"]); cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if sslMode := jsonutil.FlexibleString(config["ssl_mode"]); sslMode != "" {
		cfg.SSLMode = sslMode
	}
	if maxConns, ok := jsonutil.FlexibleInt(config["max_conns"]); ok && maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	return cfg, nil
}
