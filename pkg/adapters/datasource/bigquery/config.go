package bigquery

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-quality/pkg/jsonutil"
)

// Config contains BigQuery client options.
type Config struct {
	ProjectID       string
	Dataset         string // default dataset for unqualified table names
	Location        string
	CredentialsFile string
	CredentialsJSON string
}

// FromMap creates a Config from a generic config map.
// Without credentials the client falls back to Application Default Credentials.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		ProjectID:       jsonutil.FlexibleString(config["project_id"]),
		Dataset:         jsonutil.FlexibleString(config["dataset"]),
		Location:        jsonutil.FlexibleString(config["location"]),
		CredentialsFile: jsonutil.FlexibleString(config["credentials_file"]),
		CredentialsJSON: jsonutil.FlexibleString(config["credentials_json"]),
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if cfg.CredentialsFile != "" && cfg.CredentialsJSON != "" {
		return nil, fmt.Errorf("credentials_file and credentials_json are mutually exclusive")
	}
	return cfg, nil
}
