//go:build duckdb || all_adapters

package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
)

// QueryExecutor runs queries against an embedded DuckDB database.
type QueryExecutor struct {
	datasource.SQLRunner
	logger *zap.Logger
}

// NewQueryExecutor opens the database. All pooled connections share one
// database instance, so an in-memory database is visible to every query.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connector, err := duckdb.NewConnector(cfg.DSN(), nil)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db := sqlx.NewDb(sql.OpenDB(connector), "duckdb")
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	logger.Debug("Opened duckdb database", zap.String("path", path))

	return &QueryExecutor{
		SQLRunner: datasource.SQLRunner{DB: db, ConvertValue: convertValue},
		logger:    logger,
	}, nil
}

func (e *QueryExecutor) Dialect() dialect.ID { return dialect.DuckDB }

// DiscoverColumns reads information_schema for the table.
func (e *QueryExecutor) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), current_schema())
		  AND table_name = ?
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

// Exec runs a statement that returns no rows, for loading fixtures.
func (e *QueryExecutor) Exec(ctx context.Context, statement string) error {
	if _, err := e.DB.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func convertValue(v any) any {
	switch val := v.(type) {
	case duckdb.Decimal:
		if val.Value == nil {
			return nil
		}
		return decimal.NewFromBigInt(val.Value, -int32(val.Scale))
	case duckdb.Interval:
		return fmt.Sprintf("%d months %d days %dus", val.Months, val.Days, val.Micros)
	}
	return v
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
