package datasource

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
)

// QueryExecutor is an open, authenticated query handle bound to one dialect.
// The profiling and validation engines borrow it for the length of a run and
// never close it; the caller that created it owns its lifecycle.
type QueryExecutor interface {
	// Dialect reports which SQL dialect the handle speaks.
	Dialect() dialect.ID

	// Query runs a statement and returns all rows with values normalized by
	// NormalizeValue. Statements issued by the engines are always bounded.
	Query(ctx context.Context, sqlQuery string) (*QueryExecutionResult, error)

	// DiscoverColumns returns a table's columns in ordinal order.
	// schemaName may be empty to use the connection's default schema.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// SupportsConcurrentQueries reports whether Query may be called from
	// several goroutines at once.
	SupportsConcurrentQueries() bool

	// Close releases the underlying connection or pool.
	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the rows of one statement.
// Rows are positional so duplicate or unnamed result columns survive.
type QueryExecutionResult struct {
	Columns []ColumnInfo `json:"columns"`
	Rows    [][]any      `json:"rows"`
}

// RowCount returns the number of rows returned.
func (r *QueryExecutionResult) RowCount() int {
	return len(r.Rows)
}

// Scalar returns the single value of a one-row, one-column result.
func (r *QueryExecutionResult) Scalar() (any, error) {
	if n := r.RowCount(); n != 1 {
		return nil, fmt.Errorf("expected exactly one row, got %d", n)
	}
	if len(r.Columns) != 1 || len(r.Rows[0]) != 1 {
		return nil, fmt.Errorf("expected exactly one column, got %d", len(r.Columns))
	}
	return r.Rows[0][0], nil
}
