//go:build redshift || all_adapters

package redshift

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Redshift speaks the PostgreSQL 8.0 wire protocol
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/config"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
	"github.com/ekaya-inc/ekaya-quality/pkg/retry"
)

// lib/pq hands NUMERIC back as text.
var numericTypes = map[string]bool{"NUMERIC": true}

// QueryExecutor provides Redshift query execution over lib/pq.
type QueryExecutor struct {
	datasource.SQLRunner
	logger *zap.Logger
}

// NewQueryExecutor opens a connection pool and pings it, retrying while a
// paused cluster resumes.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolved := *cfg
	resolved.Host = config.ResolveHostForDocker(cfg.Host)
	dsn := resolved.DSN()

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open redshift: %s", logging.SanitizeError(err))
	}
	if err := retry.Do(ctx, retry.DefaultConfig(), func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping redshift: %s", logging.SanitizeError(err))
	}

	logger.Debug("Opened redshift connection", zap.String("dsn", logging.SanitizeConnectionString(dsn)))

	return &QueryExecutor{
		SQLRunner: datasource.SQLRunner{DB: db, NumericTypes: numericTypes},
		logger:    logger,
	}, nil
}

func (e *QueryExecutor) Dialect() dialect.ID { return dialect.Redshift }

// DiscoverColumns reads SVV_COLUMNS, which also covers late-binding views and
// external (Spectrum) tables that information_schema omits.
func (e *QueryExecutor) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS is_nullable,
			ordinal_position
		FROM svv_columns
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND table_name = $2
		ORDER BY ordinal_position
	`
	columns, err := e.SelectColumns(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found or has no columns", tableName)
	}
	return columns, nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
