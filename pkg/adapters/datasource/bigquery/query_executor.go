//go:build bigquery || all_adapters

package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
)

// QueryExecutor runs GoogleSQL queries through the BigQuery jobs API.
type QueryExecutor struct {
	client *bigquery.Client
	cfg    *Config
	logger *zap.Logger
}

// NewQueryExecutor creates a BigQuery client for cfg.ProjectID.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %s", logging.SanitizeError(err))
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	logger.Debug("Created bigquery client",
		zap.String("project_id", cfg.ProjectID),
		zap.String("dataset", cfg.Dataset))

	return &QueryExecutor{client: client, cfg: cfg, logger: logger}, nil
}

func (e *QueryExecutor) Dialect() dialect.ID { return dialect.BigQuery }

// Query runs a query job and reads every result row.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	q := e.client.Query(sqlQuery)
	if e.cfg.Dataset != "" {
		q.DefaultProjectID = e.cfg.ProjectID
		q.DefaultDatasetID = e.cfg.Dataset
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	resultRows := make([][]any, 0)
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating rows: %w", err)
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = convertValue(v)
		}
		resultRows = append(resultRows, values)
	}

	columns := make([]datasource.ColumnInfo, len(it.Schema))
	for i, f := range it.Schema {
		columns[i] = datasource.ColumnInfo{Name: f.Name, Type: string(f.Type)}
	}

	return &datasource.QueryExecutionResult{Columns: columns, Rows: resultRows}, nil
}

// DiscoverColumns reads the table schema from table metadata.
// schemaName is "dataset" or "project.dataset"; empty uses the configured dataset.
func (e *QueryExecutor) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	project, dataset := e.cfg.ProjectID, e.cfg.Dataset
	if schemaName != "" {
		if p, d, ok := strings.Cut(schemaName, "."); ok {
			project, dataset = p, d
		} else {
			dataset = schemaName
		}
	}
	if dataset == "" {
		return nil, fmt.Errorf("table %q has no dataset and no default dataset is configured", tableName)
	}

	md, err := e.client.DatasetInProject(project, dataset).Table(tableName).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("read table metadata: %w", err)
	}

	columns := make([]datasource.ColumnMetadata, 0, len(md.Schema))
	for i, f := range md.Schema {
		dataType := string(f.Type)
		if f.Repeated {
			dataType = "ARRAY<" + dataType + ">"
		}
		columns = append(columns, datasource.ColumnMetadata{
			ColumnName:      f.Name,
			DataType:        dataType,
			IsNullable:      !f.Required,
			OrdinalPosition: i + 1,
		})
	}
	return columns, nil
}

// SupportsConcurrentQueries is true: each query is an independent job.
func (e *QueryExecutor) SupportsConcurrentQueries() bool { return true }

// Close releases the client.
func (e *QueryExecutor) Close() error {
	return e.client.Close()
}

// convertValue maps civil date types to time.Time before generic normalization.
func convertValue(v bigquery.Value) any {
	switch val := v.(type) {
	case civil.Date:
		return val.In(time.UTC)
	case civil.DateTime:
		return val.In(time.UTC)
	case civil.Time:
		return val.String()
	case []bigquery.Value:
		return fmt.Sprint(val)
	}
	return datasource.NormalizeValue(v)
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
