package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

// answers maps a query to its scalar answer; an error value is returned as
// the query error.
func answers(m map[string]any) func(string) (*datasource.QueryExecutionResult, error) {
	return func(q string) (*datasource.QueryExecutionResult, error) {
		v, ok := m[q]
		if !ok {
			return nil, fmt.Errorf("unexpected query: %s", q)
		}
		if err, ok := v.(error); ok {
			return nil, err
		}
		return scalarResult(v), nil
	}
}

func newTestValidationService(t *testing.T) ValidationService {
	return NewValidationService(DefaultValidationConfig(), zaptest.NewLogger(t))
}

func TestValidationService_Evaluate_OrderAndIsolation(t *testing.T) {
	exec := &scriptedExecutor{
		dialect: dialect.Postgres,
		respond: answers(map[string]any{
			"SELECT COUNT(*) FROM orders":                 int64(120),
			"SELECT COUNT(*) FROM missing_table":          errors.New(`relation "missing_table" does not exist`),
			"SELECT COUNT(*) FROM orders WHERE total < 0": int64(0),
			"SELECT MAX(total) FROM orders":               "99.50",
		}),
	}
	rules := []models.ValidationRule{
		{Name: "R1", Query: "SELECT COUNT(*) FROM orders", Operator: "gt", ExpectedValue: int64(0)},
		{Name: "R2", Query: "SELECT COUNT(*) FROM missing_table", Operator: "equals", ExpectedValue: int64(0)},
		{Name: "R3", Description: "no negative totals", Query: "SELECT COUNT(*) FROM orders WHERE total < 0;", ExpectedValue: int64(0)},
		{Name: "R4", Query: "SELECT MAX(total) FROM orders", Operator: "between", ExpectedValue: []any{int64(0), int64(100)}},
	}

	results, err := newTestValidationService(t).Evaluate(context.Background(), exec, rules)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, rules[i].Name, r.RuleName)
	}

	assert.True(t, results[0].IsValid)
	assert.Equal(t, int64(120), results[0].ActualValue)
	assert.Equal(t, models.OperatorGreaterThan, results[0].Operator)
	assert.Equal(t, "Validation rule: R1", results[0].Description)
	assert.Empty(t, results[0].Error)

	assert.False(t, results[1].IsValid)
	assert.Nil(t, results[1].ActualValue)
	assert.Contains(t, results[1].Error, "missing_table")
	assert.Equal(t, results[1].Error, results[1].Description)

	assert.True(t, results[2].IsValid)
	assert.Equal(t, models.OperatorEquals, results[2].Operator)
	assert.Equal(t, "no negative totals", results[2].Description)

	assert.True(t, results[3].IsValid)
	assert.Equal(t, []any{int64(0), int64(100)}, results[3].ExpectedValue)

	// The trailing semicolon is stripped before the query runs.
	assert.Equal(t, []string{
		"SELECT COUNT(*) FROM orders",
		"SELECT COUNT(*) FROM missing_table",
		"SELECT COUNT(*) FROM orders WHERE total < 0",
		"SELECT MAX(total) FROM orders",
	}, exec.recorded())
}

func TestValidationService_Evaluate_InvalidOperatorSkipsQuery(t *testing.T) {
	exec := &scriptedExecutor{
		dialect: dialect.Postgres,
		respond: answers(map[string]any{"SELECT 1": int64(1)}),
	}
	rules := []models.ValidationRule{
		{Name: "bad", Query: "SELECT 2", Operator: "contains", ExpectedValue: int64(1)},
		{Name: "good", Query: "SELECT 1", Operator: "=", ExpectedValue: int64(1)},
	}

	results, err := newTestValidationService(t).Evaluate(context.Background(), exec, rules)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].IsValid)
	assert.Equal(t, `invalid operator "contains"`, results[0].Error)
	assert.Equal(t, "contains", results[0].Operator)
	assert.True(t, results[1].IsValid)
	assert.Equal(t, []string{"SELECT 1"}, exec.recorded())
}

func TestValidationService_Evaluate_MalformedBatchRunsNothing(t *testing.T) {
	tests := []struct {
		name  string
		rules []models.ValidationRule
	}{
		{"missing name", []models.ValidationRule{
			{Name: "ok", Query: "SELECT 1"},
			{Query: "SELECT 1"},
		}},
		{"missing query", []models.ValidationRule{{Name: "empty"}}},
		{"duplicate names", []models.ValidationRule{
			{Name: "dup", Query: "SELECT 1"},
			{Name: "dup", Query: "SELECT 2"},
		}},
		{"multiple statements", []models.ValidationRule{
			{Name: "ok", Query: "SELECT 1"},
			{Name: "two", Query: "SELECT 1; DROP TABLE orders"},
		}},
		{"not read only", []models.ValidationRule{{Name: "del", Query: "DELETE FROM orders"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &scriptedExecutor{dialect: dialect.Postgres}

			results, err := newTestValidationService(t).Evaluate(context.Background(), exec, tt.rules)

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrMalformedRule), err.Error())
			assert.Nil(t, results)
			assert.Empty(t, exec.recorded())
		})
	}
}

func TestValidationService_Evaluate_MaxRules(t *testing.T) {
	svc := NewValidationService(ValidationConfig{MaxRules: 2}, zaptest.NewLogger(t))
	exec := &scriptedExecutor{dialect: dialect.Postgres}

	rules := make([]models.ValidationRule, 3)
	for i := range rules {
		rules[i] = models.ValidationRule{Name: fmt.Sprintf("r%d", i), Query: "SELECT 1"}
	}

	_, err := svc.Evaluate(context.Background(), exec, rules)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedRule))
	assert.Contains(t, err.Error(), "3 rules exceeds the limit of 2")
	assert.Empty(t, exec.recorded())
}

func TestValidationService_Evaluate_MaxRulesConfig(t *testing.T) {
	rules := make([]models.ValidationRule, DefaultMaxRules+1)
	for i := range rules {
		rules[i] = models.ValidationRule{Name: fmt.Sprintf("r%d", i), Query: "SELECT 1"}
	}
	answer := func(string) (*datasource.QueryExecutionResult, error) { return rowResult(int64(0)), nil }

	tests := []struct {
		name    string
		max     int
		wantErr bool
	}{
		{"zero uses the default limit", 0, true},
		{"negative disables the limit", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewValidationService(ValidationConfig{MaxRules: tt.max}, zaptest.NewLogger(t))
			exec := &scriptedExecutor{dialect: dialect.Postgres, respond: answer}

			results, err := svc.Evaluate(context.Background(), exec, rules)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), fmt.Sprintf("%d rules exceeds the limit of %d", len(rules), DefaultMaxRules))
				assert.Empty(t, exec.recorded())
				return
			}
			require.NoError(t, err)
			assert.Len(t, results, len(rules))
		})
	}
}

func TestValidationService_Evaluate_NonScalarResult(t *testing.T) {
	exec := &scriptedExecutor{
		dialect: dialect.Postgres,
		respond: func(string) (*datasource.QueryExecutionResult, error) {
			return rowResult(int64(1), int64(2)), nil
		},
	}
	results, err := newTestValidationService(t).Evaluate(context.Background(), exec, []models.ValidationRule{
		{Name: "wide", Query: "SELECT 1, 2"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].IsValid)
	assert.Contains(t, results[0].Error, "expected exactly one column")
}

func TestValidationService_Evaluate_NullAndBooleanResults(t *testing.T) {
	exec := &scriptedExecutor{
		dialect: dialect.Postgres,
		respond: answers(map[string]any{
			"SELECT MAX(x) FROM empty":      nil,
			"SELECT bool_and(ok) FROM jobs": true,
		}),
	}
	results, err := newTestValidationService(t).Evaluate(context.Background(), exec, []models.ValidationRule{
		{Name: "null_max", Query: "SELECT MAX(x) FROM empty", Operator: "gt", ExpectedValue: int64(0)},
		{Name: "null_expected", Query: "SELECT MAX(x) FROM empty", Operator: "equals", ExpectedValue: nil},
		{Name: "all_ok", Query: "SELECT bool_and(ok) FROM jobs", Operator: "eq", ExpectedValue: true},
	})
	require.NoError(t, err)

	assert.False(t, results[0].IsValid)
	assert.Empty(t, results[0].Error)
	assert.True(t, results[1].IsValid)
	assert.True(t, results[2].IsValid)
}

func TestValidationService_Evaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &scriptedExecutor{dialect: dialect.Postgres, respond: answers(map[string]any{"SELECT 1": int64(1)})}
	_, err := newTestValidationService(t).Evaluate(ctx, exec, []models.ValidationRule{{Name: "r", Query: "SELECT 1"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestValidationService_Evaluate_Empty(t *testing.T) {
	results, err := newTestValidationService(t).Evaluate(context.Background(), &scriptedExecutor{}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestValidationService_Evaluate_SanitizesErrors(t *testing.T) {
	exec := &scriptedExecutor{
		dialect: dialect.Postgres,
		respond: func(string) (*datasource.QueryExecutionResult, error) {
			return nil, errors.New("connect failed: postgres://app:hunter2@db:5432/app")
		},
	}
	results, err := newTestValidationService(t).Evaluate(context.Background(), exec, []models.ValidationRule{
		{Name: "r", Query: "SELECT 1"},
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(results[0].Error, "hunter2"), results[0].Error)
}
