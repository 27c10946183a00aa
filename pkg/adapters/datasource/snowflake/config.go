package snowflake

import (
	"fmt"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/ekaya-inc/ekaya-quality/pkg/jsonutil"
)

// Config contains Snowflake connection options.
type Config struct {
	Account       string
	User          string
	Password      string
	Database      string
	Schema        string
	Warehouse     string
	Role          string
	Authenticator sf.AuthType
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{Authenticator: sf.AuthTypeSnowflake}

	if cfg.Account = jsonutil.FlexibleString(config["account"]); cfg.Account == "" {
		return nil, fmt.Errorf("account is required")
	}
	if cfg.User = jsonutil.FlexibleString(config["user"]); cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	cfg.Password = jsonutil.FlexibleString(config["password"])
	if cfg.Database = jsonutil.FlexibleString(config["database"]); cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	cfg.Schema = jsonutil.FlexibleString(config["schema"])
	if cfg.Warehouse = jsonutil.FlexibleString(config["warehouse"]); cfg.Warehouse == "" {
		return nil, fmt.Errorf("warehouse is required")
	}
	cfg.Role = jsonutil.FlexibleString(config["role"])

	auth, err := parseAuthenticator(jsonutil.FlexibleString(config["authenticator"]))
	if err != nil {
		return nil, err
	}
	cfg.Authenticator = auth
	return cfg, nil
}

func parseAuthenticator(name string) (sf.AuthType, error) {
	switch strings.ToLower(name) {
	case "", "snowflake":
		return sf.AuthTypeSnowflake, nil
	case "oauth":
		return sf.AuthTypeOAuth, nil
	case "externalbrowser":
		return sf.AuthTypeExternalBrowser, nil
	case "username_password_mfa":
		return sf.AuthTypeUsernamePasswordMFA, nil
	case "jwt":
		return sf.AuthTypeJwt, nil
	default:
		return sf.AuthTypeSnowflake, fmt.Errorf("unsupported authenticator %q", name)
	}
}

// DSN renders the driver connection string.
func (c *Config) DSN() (string, error) {
	return sf.DSN(&sf.Config{
		Account:       c.Account,
		User:          c.User,
		Password:      c.Password,
		Database:      c.Database,
		Schema:        c.Schema,
		Warehouse:     c.Warehouse,
		Role:          c.Role,
		Authenticator: c.Authenticator,
	})
}
