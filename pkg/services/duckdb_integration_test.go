//go:build duckdb || all_adapters

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource/duckdb"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

const customersFixture = `
CREATE TABLE customers (id INTEGER NOT NULL, email VARCHAR, age INTEGER, signed_up DATE);
INSERT INTO customers VALUES
	(1, 'ann@example.com', 30, DATE '2024-01-05'),
	(2, 'bo@example.com',  32, DATE '2024-01-20'),
	(3, 'cy@example.com',  31, DATE '2024-02-10'),
	(4, 'dee@example.com', 29, DATE '2024-03-01'),
	(5, 'ed@example.com',  33, DATE '2024-03-15'),
	(6, NULL,              95, DATE '2024-03-28');
`

func newCustomersDB(t *testing.T) *duckdb.QueryExecutor {
	t.Helper()
	ctx := context.Background()
	exec, err := duckdb.NewQueryExecutor(ctx, &duckdb.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	require.NoError(t, exec.Exec(ctx, customersFixture))
	return exec
}

func TestDuckDB_ProfileAndValidate(t *testing.T) {
	ctx := context.Background()
	exec := newCustomersDB(t)
	logger := zaptest.NewLogger(t)

	collector := NewStatisticsCollector(DefaultCollectorConfig(), logger)
	profile, err := collector.Collect(ctx, exec, "customers", CollectOptions{IncludeSamples: true, SampleRows: 3})
	require.NoError(t, err)
	require.Empty(t, profile.Errors)
	require.NoError(t, profile.Validate())

	assert.Equal(t, string(dialect.DuckDB), profile.Dialect)
	assert.Equal(t, int64(6), profile.RowCount)
	assert.Equal(t, int64(0), profile.DuplicateCount)
	assert.Len(t, profile.Samples, 3)

	email := profile.Completeness["email"]
	assert.Equal(t, int64(1), email.NullCount)
	assert.Equal(t, int64(5), email.DistinctCount)

	age := profile.NumericStats["age"]
	require.NotNil(t, age.Min)
	assert.InDelta(t, 29.0, *age.Min, 1e-9)
	assert.InDelta(t, 95.0, *age.Max, 1e-9)
	assert.InDelta(t, 41.666, *age.Mean, 1e-3)
	require.NotNil(t, age.OutlierCount)
	assert.Equal(t, int64(1), *age.OutlierCount)

	text := profile.TextStats["email"]
	assert.Equal(t, int64(14), *text.MinLength)
	assert.Equal(t, int64(15), *text.MaxLength)
	assert.True(t, text.PatternFlags[dialect.PatternEmail])
	assert.False(t, text.PatternFlags[dialect.PatternPhone])
	assert.Equal(t, "@example.com", text.CommonSuffix)

	dates := profile.DateStats["signed_up"]
	require.NotNil(t, dates.RangeDays)
	assert.Equal(t, int64(83), *dates.RangeDays)
	assert.Equal(t, []models.DateBucket{
		{Offset: 0, Label: "2024-01", Count: 2},
		{Offset: 1, Label: "2024-02", Count: 1},
		{Offset: 2, Label: "2024-03", Count: 3},
	}, dates.Distribution)
	require.NotNil(t, dates.SeasonalityRatio)
	assert.InDelta(t, 1.5, *dates.SeasonalityRatio, 1e-9)

	validation := NewValidationService(DefaultValidationConfig(), logger)
	rules, err := validation.SynthesizeDefaults(profile)
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	results, err := validation.Evaluate(ctx, exec, rules)
	require.NoError(t, err)
	require.Len(t, results, len(rules))
	for _, r := range results {
		assert.True(t, r.IsValid, "%s: actual=%v expected=%v error=%s", r.RuleName, r.ActualValue, r.ExpectedValue, r.Error)
	}

	// A changed table fails the rules derived from the old profile.
	require.NoError(t, exec.Exec(ctx, "INSERT INTO customers VALUES (7, 'not-an-email', -1, NULL)"))
	require.NoError(t, exec.Exec(ctx, "INSERT INTO customers VALUES (8, 'fay@example.com', 31, DATE '2999-01-01'), (9, 'gus@example.com', 30, DATE '1960-06-01')"))
	results, err = validation.Evaluate(ctx, exec, rules)
	require.NoError(t, err)

	failed := map[string]bool{}
	for _, r := range results {
		if !r.IsValid {
			failed[r.RuleName] = true
		}
	}
	assert.True(t, failed["check_email_valid_email"])
	assert.True(t, failed["check_age_non_negative"])
	assert.True(t, failed["check_signed_up_not_null"])
	assert.True(t, failed["check_age_outliers"])
	assert.True(t, failed["check_signed_up_not_future"])
	assert.True(t, failed["check_signed_up_reasonable_past"])
	assert.False(t, failed["check_id_unique"])
}

func TestDuckDB_ProfileComparison(t *testing.T) {
	ctx := context.Background()
	exec := newCustomersDB(t)
	logger := zaptest.NewLogger(t)

	svc := NewProfileService(NewStatisticsCollector(DefaultCollectorConfig(), logger), DefaultAnomalyThresholds(), logger)
	before, err := svc.Profile(ctx, exec, "customers", ProfileOptions{})
	require.NoError(t, err)

	for _, stmt := range []string{
		"ALTER TABLE customers DROP COLUMN email",
		"ALTER TABLE customers ADD COLUMN phone VARCHAR",
		"INSERT INTO customers SELECT id + 100, age, signed_up, NULL FROM customers",
	} {
		require.NoError(t, exec.Exec(ctx, stmt))
	}

	after, err := svc.Profile(ctx, exec, "customers", ProfileOptions{Previous: before})
	require.NoError(t, err)

	require.Len(t, after.SchemaShifts, 2)
	assert.Equal(t, models.SchemaShift{
		Column: "email", Kind: models.ShiftRemoved,
		Description: "Column email (VARCHAR) was removed", PreviousType: "VARCHAR",
	}, after.SchemaShifts[0])
	assert.Equal(t, "phone", after.SchemaShifts[1].Column)

	require.NotEmpty(t, after.Anomalies)
	assert.Equal(t, AnomalyRowCount, after.Anomalies[0].Metric)
	assert.Equal(t, models.SeverityHigh, after.Anomalies[0].Severity)
}
