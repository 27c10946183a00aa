package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
)

// scriptedExecutor answers queries with a responder function and records
// every statement it receives.
type scriptedExecutor struct {
	dialect     dialect.ID
	columns     []datasource.ColumnMetadata
	discoverErr error
	concurrent  bool
	respond     func(sqlQuery string) (*datasource.QueryExecutionResult, error)

	mu      sync.Mutex
	queries []string
	closed  bool
}

var _ datasource.QueryExecutor = (*scriptedExecutor)(nil)

func (m *scriptedExecutor) Dialect() dialect.ID { return m.dialect }

func (m *scriptedExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, sqlQuery)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.respond == nil {
		return nil, fmt.Errorf("unexpected query: %s", sqlQuery)
	}
	return m.respond(sqlQuery)
}

func (m *scriptedExecutor) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	if m.discoverErr != nil {
		return nil, m.discoverErr
	}
	return m.columns, nil
}

func (m *scriptedExecutor) SupportsConcurrentQueries() bool { return m.concurrent }

func (m *scriptedExecutor) Close() error {
	m.closed = true
	return nil
}

func (m *scriptedExecutor) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// scalarResult returns a one-row, one-column result.
func scalarResult(v any) *datasource.QueryExecutionResult {
	return &datasource.QueryExecutionResult{
		Columns: []datasource.ColumnInfo{{Name: "value"}},
		Rows:    [][]any{{v}},
	}
}

// rowResult returns a single row with one unnamed column per value.
func rowResult(values ...any) *datasource.QueryExecutionResult {
	cols := make([]datasource.ColumnInfo, len(values))
	for i := range values {
		cols[i] = datasource.ColumnInfo{Name: fmt.Sprintf("c%d", i)}
	}
	return &datasource.QueryExecutionResult{Columns: cols, Rows: [][]any{values}}
}

func metaColumns(pairs ...string) []datasource.ColumnMetadata {
	var out []datasource.ColumnMetadata
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, datasource.ColumnMetadata{ColumnName: pairs[i], DataType: pairs[i+1], OrdinalPosition: i/2 + 1})
	}
	return out
}

// repeatValues repeats values n times, as a batched statement over n columns returns.
func repeatValues(n int, values ...any) []any {
	out := make([]any, 0, n*len(values))
	for i := 0; i < n; i++ {
		out = append(out, values...)
	}
	return out
}
