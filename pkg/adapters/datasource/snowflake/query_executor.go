//go:build snowflake || all_adapters

package snowflake

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/snowflakedb/gosnowflake" // registers the "snowflake" driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
	"github.com/ekaya-inc/ekaya-quality/pkg/retry"
)

// The driver returns NUMBER and FLOAT values as text when scanning into any.
var numericTypes = map[string]bool{"FIXED": true, "REAL": true, "NUMBER": true, "DECIMAL": true}

var plainIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// QueryExecutor provides Snowflake query execution.
type QueryExecutor struct {
	datasource.SQLRunner
	logger *zap.Logger
}

// NewQueryExecutor opens a connection pool and pings it. The first ping also
// resumes a suspended warehouse, which can take several seconds.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake: %s", logging.SanitizeError(err))
	}
	if err := retry.Do(ctx, retry.DefaultConfig(), func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snowflake: %s", logging.SanitizeError(err))
	}

	return &QueryExecutor{
		SQLRunner: datasource.SQLRunner{DB: db, NumericTypes: numericTypes},
		logger:    logger,
	}, nil
}

func (e *QueryExecutor) Dialect() dialect.ID { return dialect.Snowflake }

// DiscoverColumns reads information_schema of the connection's database.
// Lower-case plain names are upper-cased the way Snowflake resolves unquoted identifiers.
func (e *QueryExecutor) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			column_name AS "column_name",
			data_type AS "data_type",
			is_nullable = 'YES' AS "is_nullable",
			ordinal_position AS "ordinal_position"
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), CURRENT_SCHEMA())
		  AND table_name = ?
		ORDER BY ordinal_position
	`
	columns, err := e.SelectColumns(ctx, query, resolveName(schemaName), resolveName(tableName))
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found or has no columns", tableName)
	}
	return columns, nil
}

func resolveName(name string) string {
	if plainIdentifier.MatchString(name) {
		return strings.ToUpper(name)
	}
	return name
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
