//go:build duckdb || all_adapters

package duckdb

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestExecutor(t *testing.T) *QueryExecutor {
	t.Helper()
	exec, err := NewQueryExecutor(context.Background(), &Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func TestQueryExecutor_QueryNormalizesValues(t *testing.T) {
	exec := newTestExecutor(t)

	result, err := exec.Query(context.Background(),
		"SELECT 1::INTEGER AS i, 2.50::DECIMAL(10,2) AS d, 'x' AS s, DATE '2024-03-01' AS dt, NULL AS n")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, int64(1), row[0])
	d, ok := row[1].(decimal.Decimal)
	require.True(t, ok, "decimal column should normalize to decimal.Decimal, got %T", row[1])
	assert.True(t, d.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, "x", row[2])
	dt, ok := row[3].(time.Time)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", dt.Format("2006-01-02"))
	assert.Nil(t, row[4])
}

func TestQueryExecutor_DiscoverColumns(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Exec(ctx, "CREATE TABLE events (id BIGINT NOT NULL, name VARCHAR, at TIMESTAMP)"))

	columns, err := exec.DiscoverColumns(ctx, "", "events")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, "id", columns[0].ColumnName)
	assert.Equal(t, "BIGINT", columns[0].DataType)
	assert.False(t, columns[0].IsNullable)
	assert.Equal(t, "at", columns[2].ColumnName)

	_, err = exec.DiscoverColumns(ctx, "main", "missing")
	assert.Error(t, err)
}
