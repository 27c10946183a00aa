package redshift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "analytics.abc123.us-east-1.redshift.amazonaws.com",
		"user":     "awsuser",
		"password": "p@ss/word",
		"database": "dev",
	})
	require.NoError(t, err)

	assert.Equal(t, 5439, cfg.Port)
	assert.Equal(t, "require", cfg.SSLMode)
}

func TestConfig_DSNEscapesPassword(t *testing.T) {
	cfg := &Config{Host: "h", Port: 5439, User: "awsuser", Password: "p@ss/word", Database: "dev", SSLMode: "require"}
	assert.Equal(t, "postgres://awsuser:p%40ss%2Fword@h:5439/dev?sslmode=require", cfg.DSN())
}

func TestFromMap_MissingHost(t *testing.T) {
	_, err := FromMap(map[string]any{"user": "u", "database": "d"})
	assert.EqualError(t, err, "host is required")
}
