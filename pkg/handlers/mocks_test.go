package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
	"github.com/ekaya-inc/ekaya-quality/pkg/services"
)

// mockExecutor answers queries found in answers with the mapped scalar value.
type mockExecutor struct {
	answers map[string]any
	err     error

	mu      sync.Mutex
	queries []string
}

var _ datasource.QueryExecutor = (*mockExecutor)(nil)

func (m *mockExecutor) Dialect() dialect.ID { return dialect.Postgres }

func (m *mockExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, sqlQuery)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.answers[sqlQuery]
	if !ok {
		return nil, fmt.Errorf("unexpected query: %s", sqlQuery)
	}
	return &datasource.QueryExecutionResult{
		Columns: []datasource.ColumnInfo{{Name: "value"}},
		Rows:    [][]any{{v}},
	}, nil
}

func (m *mockExecutor) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	return nil, fmt.Errorf("not supported")
}

func (m *mockExecutor) SupportsConcurrentQueries() bool { return false }

func (m *mockExecutor) Close() error { return nil }

func (m *mockExecutor) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// mockProfileService returns a fixed profile or error.
type mockProfileService struct {
	profile *models.TableProfile
	err     error

	table string
	opts  services.ProfileOptions
}

var _ services.ProfileService = (*mockProfileService)(nil)

func (m *mockProfileService) Profile(ctx context.Context, exec datasource.QueryExecutor, table string, opts services.ProfileOptions) (*models.TableProfile, error) {
	m.table = table
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.profile, nil
}

func (m *mockProfileService) Compare(previous, current *models.TableProfile) services.Comparison {
	return services.Comparison{
		SchemaShifts: services.DetectSchemaShifts(previous, current),
		Anomalies:    services.DetectAnomalies(previous, current, services.DefaultAnomalyThresholds()),
	}
}

// ordersProfile is a small, valid postgres profile.
func ordersProfile() *models.TableProfile {
	return &models.TableProfile{
		Table:    "orders",
		Dialect:  string(dialect.Postgres),
		RowCount: 4,
		Columns: []models.ColumnProfile{
			{Name: "id", DataType: "integer", Kind: dialect.KindNumeric},
			{Name: "note", DataType: "text", Kind: dialect.KindText},
		},
		Completeness: map[string]models.Completeness{
			"id":   {NullCount: 0, DistinctCount: 4, DistinctPercentage: 100},
			"note": {NullCount: 2, NullPercentage: 50, DistinctCount: 1, DistinctPercentage: 25},
		},
		SchemaShifts: []models.SchemaShift{},
		Anomalies:    []models.Anomaly{},
		Errors:       []models.MetricError{},
	}
}
