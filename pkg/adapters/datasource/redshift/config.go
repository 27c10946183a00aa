package redshift

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-quality/pkg/jsonutil"
)

// Config contains Redshift connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DefaultPort returns the default Redshift port.
func DefaultPort() int {
	return 5439
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		SSLMode: "require",
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
	return cfg, nil
}

// DSN renders the lib/pq connection URL.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}
