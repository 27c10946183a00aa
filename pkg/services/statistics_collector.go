package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
	"github.com/ekaya-inc/ekaya-quality/pkg/metrics"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

// Metric names used in error markers.
const (
	MetricRowCount         = "row_count"
	MetricDuplicateCount   = "duplicate_count"
	MetricCompleteness     = "completeness"
	MetricMostFrequent     = "most_frequent"
	MetricNumericStats     = "numeric_stats"
	MetricOutliers         = "outliers"
	MetricTextStats        = "text_stats"
	MetricCommonAffixes    = "common_affixes"
	MetricDateStats        = "date_stats"
	MetricDateDistribution = "date_distribution"
	MetricSamples          = "samples"
)

// CollectorConfig bounds the work done by the statistics collector.
type CollectorConfig struct {
	// TopK is the number of most frequent values kept per column.
	TopK int
	// SampleRows is the default number of sample rows when samples are requested.
	SampleRows int
	// MaxSampleRows caps sample rows regardless of what the caller asks for.
	MaxSampleRows int
	// PrefixSampleSize is the number of rows read to compute common prefixes and suffixes.
	PrefixSampleSize int
	// MaxConcurrentQueries limits in-flight metric queries. 1 runs them sequentially.
	MaxConcurrentQueries int
	// PatternMatchRatio is the share of non-null values that must match a
	// pattern for its flag to be set.
	PatternMatchRatio float64
}

// DefaultCollectorConfig returns the collector defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		TopK:                 5,
		SampleRows:           100,
		MaxSampleRows:        1000,
		PrefixSampleSize:     500,
		MaxConcurrentQueries: 4,
		PatternMatchRatio:    1.0,
	}
}

// CollectOptions are per-run options for Collect.
type CollectOptions struct {
	IncludeSamples bool
	// SampleRows overrides CollectorConfig.SampleRows when positive.
	SampleRows int
}

// StatisticsCollector computes the metrics of one table snapshot.
type StatisticsCollector interface {
	// Collect profiles table through exec. A failing column metric degrades that
	// column to partial; only dialect, column discovery and row count failures
	// are returned as errors. exec is not closed.
	Collect(ctx context.Context, exec datasource.QueryExecutor, table string, opts CollectOptions) (*models.TableProfile, error)
}

type statisticsCollector struct {
	config CollectorConfig
	logger *zap.Logger
}

// NewStatisticsCollector creates a StatisticsCollector.
func NewStatisticsCollector(config CollectorConfig, logger *zap.Logger) StatisticsCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultCollectorConfig()
	if config.TopK <= 0 {
		config.TopK = defaults.TopK
	}
	if config.SampleRows <= 0 {
		config.SampleRows = defaults.SampleRows
	}
	if config.MaxSampleRows <= 0 {
		config.MaxSampleRows = defaults.MaxSampleRows
	}
	if config.PrefixSampleSize <= 0 {
		config.PrefixSampleSize = defaults.PrefixSampleSize
	}
	if config.MaxConcurrentQueries <= 0 {
		config.MaxConcurrentQueries = 1
	}
	if config.PatternMatchRatio <= 0 || config.PatternMatchRatio > 1 {
		config.PatternMatchRatio = defaults.PatternMatchRatio
	}
	return &statisticsCollector{
		config: config,
		logger: logger.Named("collector"),
	}
}

var _ StatisticsCollector = (*statisticsCollector)(nil)

// columnRef is a discovered column with its quoted form and inferred kind.
type columnRef struct {
	name   string
	quoted string
	kind   dialect.Kind
}

// collectRun holds the state of one Collect call. Query tasks may run
// concurrently; every write to profile goes through mu.
type collectRun struct {
	exec    datasource.QueryExecutor
	dialect dialect.Dialect
	table   string // quoted
	config  CollectorConfig
	logger  *zap.Logger
	limit   int

	mu       sync.Mutex
	profile  *models.TableProfile
	columns  []columnRef
	position map[string]int
	topK     map[string][]models.ValueCount
}

func (s *statisticsCollector) Collect(
	ctx context.Context,
	exec datasource.QueryExecutor,
	table string,
	opts CollectOptions,
) (*models.TableProfile, error) {
	start := time.Now()

	d, err := dialect.Lookup(string(exec.Dialect()))
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("table", table), zap.String("dialect", string(d.ID())))

	schemaName, tableName := datasource.SplitTableName(table)
	discovered, err := exec.DiscoverColumns(ctx, schemaName, tableName)
	if err != nil {
		metrics.ProfilesCompleted.WithLabelValues(string(d.ID()), metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("failed to discover columns of %s: %w", table, err)
	}

	r := &collectRun{
		exec:     exec,
		dialect:  d,
		table:    d.QuoteTable(table),
		config:   s.config,
		logger:   logger,
		limit:    1,
		position: make(map[string]int, len(discovered)),
		topK:     make(map[string][]models.ValueCount),
		profile: &models.TableProfile{
			RunID:        uuid.New(),
			Table:        table,
			Dialect:      string(d.ID()),
			ProfiledAt:   time.Now().UTC(),
			Columns:      make([]models.ColumnProfile, 0, len(discovered)),
			Completeness: make(map[string]models.Completeness),
			NumericStats: make(map[string]models.NumericStats),
			TextStats:    make(map[string]models.TextStats),
			DateStats:    make(map[string]models.DateStats),
			SchemaShifts: []models.SchemaShift{},
			Anomalies:    []models.Anomaly{},
			Errors:       []models.MetricError{},
		},
	}
	if s.config.MaxConcurrentQueries > 1 && exec.SupportsConcurrentQueries() {
		r.limit = s.config.MaxConcurrentQueries
	}

	for i, col := range discovered {
		kind := d.InferKind(col.DataType)
		r.columns = append(r.columns, columnRef{name: col.ColumnName, quoted: d.QuoteIdentifier(col.ColumnName), kind: kind})
		r.position[col.ColumnName] = i
		r.profile.Columns = append(r.profile.Columns, models.ColumnProfile{
			Name:     col.ColumnName,
			DataType: col.DataType,
			Kind:     kind,
		})
	}

	// Every percentage depends on the row count, so its failure ends the run.
	rowCount, err := r.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table))
	if err != nil {
		metrics.ProfilesCompleted.WithLabelValues(string(d.ID()), metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("%w: row count of %s: %w", apperrors.ErrMetricQuery, table, err)
	}
	r.profile.RowCount = rowCount

	if err := r.collectDuplicates(ctx); err != nil {
		return nil, err
	}

	// Independent per-column metrics.
	tasks := []func(context.Context) error{
		r.collectCompleteness,
		r.collectNumeric,
		r.collectText,
		r.collectAffixes,
		r.collectDates,
	}
	for _, c := range r.columns {
		tasks = append(tasks, func(ctx context.Context) error { return r.collectTopK(ctx, c) })
	}
	if err := r.run(ctx, tasks); err != nil {
		return nil, err
	}

	// Metrics that need the first pass: outlier fences and date bucket labels.
	tasks = tasks[:0]
	for _, c := range r.columns {
		switch c.kind {
		case dialect.KindNumeric:
			tasks = append(tasks, func(ctx context.Context) error { return r.collectOutliers(ctx, c) })
		case dialect.KindDate:
			tasks = append(tasks, func(ctx context.Context) error { return r.collectDateDistribution(ctx, c) })
		}
	}
	if err := r.run(ctx, tasks); err != nil {
		return nil, err
	}

	if opts.IncludeSamples {
		n := opts.SampleRows
		if n <= 0 {
			n = s.config.SampleRows
		}
		if err := r.collectSamples(ctx, min(n, s.config.MaxSampleRows)); err != nil {
			return nil, err
		}
	}

	r.finish()

	outcome := metrics.OutcomeComplete
	if r.profile.IsPartial() {
		outcome = metrics.OutcomePartial
	}
	metrics.ProfilesCompleted.WithLabelValues(string(d.ID()), outcome).Inc()

	logger.Info("Profiled table",
		zap.Int64("row_count", r.profile.RowCount),
		zap.Int("columns", len(r.columns)),
		zap.Int("metric_errors", len(r.profile.Errors)),
		zap.Duration("elapsed", time.Since(start)))

	return r.profile, nil
}

// run executes tasks with at most r.limit in flight. Tasks only return errors
// for cancellation; metric failures are recorded on the profile.
func (r *collectRun) run(ctx context.Context, tasks []func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	return g.Wait()
}

func (r *collectRun) query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("Running metric query", zap.String("sql", logging.SanitizeQuery(sqlQuery)))
	return r.exec.Query(ctx, sqlQuery)
}

func (r *collectRun) scalarInt(ctx context.Context, sqlQuery string) (int64, error) {
	result, err := r.query(ctx, sqlQuery)
	if err != nil {
		return 0, err
	}
	v, err := result.Scalar()
	if err != nil {
		return 0, err
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
	return n, nil
}

// fail records a metric failure. It returns an error only when ctx is done,
// which turns cancellation into a fatal error for the run.
func (r *collectRun) fail(ctx context.Context, column, metric string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	msg := logging.SanitizeError(err)
	r.logger.Warn("Metric query failed",
		zap.String("column", column),
		zap.String("metric", metric),
		zap.String("error", msg))
	metrics.MetricQueryFailures.WithLabelValues(metric).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile.Errors = append(r.profile.Errors, models.MetricError{Column: column, Metric: metric, Message: msg})
	if i, ok := r.position[column]; ok {
		col := &r.profile.Columns[i]
		col.Partial = true
		col.Errors = append(col.Errors, metric+": "+msg)
	}
	return nil
}

// collectDuplicates counts rows beyond the first occurrence of each identical row.
func (r *collectRun) collectDuplicates(ctx context.Context) error {
	if len(r.columns) == 0 || r.profile.RowCount == 0 {
		return nil
	}
	cols := make([]string, len(r.columns))
	for i, c := range r.columns {
		cols[i] = c.quoted
	}
	sqlQuery := fmt.Sprintf(
		"SELECT COALESCE(SUM(dup_n - 1), 0) FROM (SELECT COUNT(*) AS dup_n FROM %s GROUP BY %s) dup WHERE dup_n > 1",
		r.table, strings.Join(cols, ", "))

	n, err := r.scalarInt(ctx, sqlQuery)
	if err != nil {
		return r.fail(ctx, "", MetricDuplicateCount, err)
	}
	r.profile.DuplicateCount = n
	return nil
}

// columnQuery is one single-row metric query per column whose select lists can
// be concatenated into a single statement.
type columnQuery struct {
	metric  string
	columns []columnRef
	exprs   func(c columnRef) []string
	apply   func(c columnRef, values []any)
	batched bool
}

// runColumnQuery issues q as one statement over all columns, falling back to
// one statement per column when the combined statement fails.
func (r *collectRun) runColumnQuery(ctx context.Context, q columnQuery) error {
	if len(q.columns) == 0 {
		return nil
	}

	if q.batched && len(q.columns) > 1 {
		var selects []string
		widths := make([]int, len(q.columns))
		for i, c := range q.columns {
			e := q.exprs(c)
			widths[i] = len(e)
			selects = append(selects, e...)
		}

		result, err := r.query(ctx, r.selectFrom(selects))
		if err == nil {
			err = singleRow(result, len(selects))
		}
		if err == nil {
			r.mu.Lock()
			offset := 0
			for i, c := range q.columns {
				q.apply(c, result.Rows[0][offset:offset+widths[i]])
				offset += widths[i]
			}
			r.mu.Unlock()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.logger.Info("Batched metric query failed, falling back to per-column queries",
			zap.String("metric", q.metric),
			zap.Int("columns", len(q.columns)),
			zap.String("error", logging.SanitizeError(err)))
	}

	for _, c := range q.columns {
		e := q.exprs(c)
		result, err := r.query(ctx, r.selectFrom(e))
		if err == nil {
			err = singleRow(result, len(e))
		}
		if err != nil {
			if ferr := r.fail(ctx, c.name, q.metric, err); ferr != nil {
				return ferr
			}
			continue
		}
		r.mu.Lock()
		q.apply(c, result.Rows[0])
		r.mu.Unlock()
	}
	return nil
}

func (r *collectRun) selectFrom(exprs []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), r.table)
}

func singleRow(result *datasource.QueryExecutionResult, width int) error {
	if n := result.RowCount(); n != 1 {
		return fmt.Errorf("expected exactly one row, got %d", n)
	}
	if len(result.Rows[0]) < width {
		return fmt.Errorf("expected %d values, got %d", width, len(result.Rows[0]))
	}
	return nil
}

func (r *collectRun) columnsOfKind(kind dialect.Kind) []columnRef {
	var out []columnRef
	for _, c := range r.columns {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// percentOf returns n as a percentage of the row count.
func (r *collectRun) percentOf(n int64) float64 {
	if r.profile.RowCount == 0 {
		return 0
	}
	return float64(n) / float64(r.profile.RowCount) * 100
}

// finish attaches top-k lists and puts error markers in a stable order.
func (r *collectRun) finish() {
	for name, values := range r.topK {
		if comp, ok := r.profile.Completeness[name]; ok {
			comp.MostFrequent = values
			r.profile.Completeness[name] = comp
		}
	}
	for name, comp := range r.profile.Completeness {
		if comp.MostFrequent == nil {
			comp.MostFrequent = []models.ValueCount{}
			r.profile.Completeness[name] = comp
		}
	}

	pos := func(column string) int {
		if i, ok := r.position[column]; ok {
			return i
		}
		return -1
	}
	sort.SliceStable(r.profile.Errors, func(i, j int) bool {
		a, b := r.profile.Errors[i], r.profile.Errors[j]
		if pa, pb := pos(a.Column), pos(b.Column); pa != pb {
			return pa < pb
		}
		return a.Metric < b.Metric
	})
	for i := range r.profile.Columns {
		sort.Strings(r.profile.Columns[i].Errors)
	}
}
