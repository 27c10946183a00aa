package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// SQLRunner implements the query half of QueryExecutor for adapters built on
// database/sql drivers. Adapters embed it and add dialect-specific discovery.
type SQLRunner struct {
	DB *sqlx.DB
	// NumericTypes lists database type names (as reported by
	// ColumnType.DatabaseTypeName) whose values the driver returns as text.
	// Those values are parsed into int64 or decimal.Decimal.
	NumericTypes map[string]bool
	// ConvertValue, when set, maps driver-specific value types before the
	// generic NormalizeValue runs.
	ConvertValue func(any) any
}

// Query runs a statement and returns positional rows.
func (r *SQLRunner) Query(ctx context.Context, sqlQuery string) (*QueryExecutionResult, error) {
	rows, err := r.DB.QueryxContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	columns := make([]ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ColumnInfo{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	textNumeric := make([]bool, len(columns))
	for i, c := range columns {
		textNumeric[i] = r.NumericTypes[strings.ToUpper(c.Type)]
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		resultRows = append(resultRows, r.convertRow(values, textNumeric))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{Columns: columns, Rows: resultRows}, nil
}

// convertRow applies text-numeric parsing and ConvertValue to a scanned row
// before normalizing it.
func (r *SQLRunner) convertRow(values []any, textNumeric []bool) []any {
	for i, v := range values {
		if i < len(textNumeric) && textNumeric[i] {
			v = ParseNumericText(v)
		}
		if r.ConvertValue != nil {
			v = r.ConvertValue(v)
		}
		values[i] = v
	}
	return NormalizeRow(values)
}

// SelectColumns runs a catalog query whose result columns are named
// column_name, data_type, is_nullable and ordinal_position.
func (r *SQLRunner) SelectColumns(ctx context.Context, query string, args ...any) ([]ColumnMetadata, error) {
	var columns []ColumnMetadata
	if err := r.DB.SelectContext(ctx, &columns, query, args...); err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	return columns, nil
}

// SupportsConcurrentQueries is true: database/sql hands each query its own connection.
func (r *SQLRunner) SupportsConcurrentQueries() bool { return true }

// Close closes the underlying pool.
func (r *SQLRunner) Close() error {
	return r.DB.Close()
}
