package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

// collectCompleteness computes null and distinct counts for every column.
func (r *collectRun) collectCompleteness(ctx context.Context) error {
	return r.runColumnQuery(ctx, columnQuery{
		metric:  MetricCompleteness,
		columns: r.columns,
		batched: true,
		exprs: func(c columnRef) []string {
			return []string{
				fmt.Sprintf("COUNT(*) - COUNT(%s)", c.quoted),
				fmt.Sprintf("COUNT(DISTINCT %s)", c.quoted),
			}
		},
		apply: func(c columnRef, values []any) {
			nulls, _ := toInt64(values[0])
			distinct, _ := toInt64(values[1])
			r.profile.Completeness[c.name] = models.Completeness{
				NullCount:          nulls,
				NullPercentage:     r.percentOf(nulls),
				DistinctCount:      distinct,
				DistinctPercentage: r.percentOf(distinct),
			}
		},
	})
}

// collectTopK reads the most frequent non-null values of one column.
func (r *collectRun) collectTopK(ctx context.Context, c columnRef) error {
	sqlQuery := fmt.Sprintf(
		"SELECT %[1]s, COUNT(*) FROM %[2]s WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY 2 DESC, 1 %[3]s",
		c.quoted, r.table, r.dialect.LimitClause(r.config.TopK))

	result, err := r.query(ctx, sqlQuery)
	if err != nil {
		return r.fail(ctx, c.name, MetricMostFrequent, err)
	}

	values := make([]models.ValueCount, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		count, _ := toInt64(row[1])
		values = append(values, models.ValueCount{Value: models.DocumentValue(row[0]), Count: count})
	}

	r.mu.Lock()
	r.topK[c.name] = values
	r.mu.Unlock()
	return nil
}

// collectNumeric computes summary statistics and quartiles for numeric columns.
// Engines that cannot mix ordered-set aggregates over different columns get
// one statement per column.
func (r *collectRun) collectNumeric(ctx context.Context) error {
	return r.runColumnQuery(ctx, columnQuery{
		metric:  MetricNumericStats,
		columns: r.columnsOfKind(dialect.KindNumeric),
		batched: r.dialect.BatchesPercentiles(),
		exprs: func(c columnRef) []string {
			scaled := fmt.Sprintf("(%s * 1.0)", c.quoted)
			return []string{
				fmt.Sprintf("MIN(%s)", c.quoted),
				fmt.Sprintf("MAX(%s)", c.quoted),
				fmt.Sprintf("AVG(%s)", scaled),
				r.dialect.StddevExpr(scaled),
				r.dialect.PercentileExpr(r.table, c.quoted, 0.5),
				r.dialect.PercentileExpr(r.table, c.quoted, 0.25),
				r.dialect.PercentileExpr(r.table, c.quoted, 0.75),
			}
		},
		apply: func(c columnRef, values []any) {
			stats := models.NumericStats{
				Min:    floatPtr(values[0]),
				Max:    floatPtr(values[1]),
				Mean:   floatPtr(values[2]),
				Stddev: floatPtr(values[3]),
				Median: floatPtr(values[4]),
				Q1:     floatPtr(values[5]),
				Q3:     floatPtr(values[6]),
			}
			if stats.Q1 != nil && stats.Q3 != nil {
				iqr := *stats.Q3 - *stats.Q1
				lower := *stats.Q1 - 1.5*iqr
				upper := *stats.Q3 + 1.5*iqr
				stats.IQR, stats.LowerFence, stats.UpperFence = &iqr, &lower, &upper
			}
			r.profile.NumericStats[c.name] = stats
		},
	})
}

// collectOutliers counts values outside the 1.5 x IQR fences.
func (r *collectRun) collectOutliers(ctx context.Context, c columnRef) error {
	r.mu.Lock()
	stats, ok := r.profile.NumericStats[c.name]
	r.mu.Unlock()
	if !ok || stats.LowerFence == nil || stats.UpperFence == nil {
		return nil
	}

	sqlQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < %s OR %s > %s",
		r.table, c.quoted, formatNumber(*stats.LowerFence), c.quoted, formatNumber(*stats.UpperFence))
	n, err := r.scalarInt(ctx, sqlQuery)
	if err != nil {
		return r.fail(ctx, c.name, MetricOutliers, err)
	}

	r.mu.Lock()
	stats = r.profile.NumericStats[c.name]
	stats.OutlierCount = &n
	r.profile.NumericStats[c.name] = stats
	r.mu.Unlock()
	return nil
}

// collectText computes length statistics and pattern match counts.
func (r *collectRun) collectText(ctx context.Context) error {
	return r.runColumnQuery(ctx, columnQuery{
		metric:  MetricTextStats,
		columns: r.columnsOfKind(dialect.KindText),
		batched: true,
		exprs: func(c columnRef) []string {
			length := r.dialect.LengthExpr(c.quoted)
			exprs := []string{
				fmt.Sprintf("COUNT(%s)", c.quoted),
				fmt.Sprintf("MIN(%s)", length),
				fmt.Sprintf("MAX(%s)", length),
				fmt.Sprintf("AVG(%s * 1.0)", length),
			}
			for _, p := range dialect.Patterns {
				exprs = append(exprs, fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END)",
					r.dialect.RegexPredicate(c.quoted, p.Expr)))
			}
			return exprs
		},
		apply: func(c columnRef, values []any) {
			nonNull, _ := toInt64(values[0])
			stats := r.profile.TextStats[c.name]
			stats.MinLength = intPtr(values[1])
			stats.MaxLength = intPtr(values[2])
			stats.AvgLength = floatPtr(values[3])
			stats.PatternCounts = make(map[string]int64, len(dialect.Patterns))
			stats.PatternFlags = make(map[string]bool, len(dialect.Patterns))
			for i, p := range dialect.Patterns {
				matched, _ := toInt64(values[4+i])
				stats.PatternCounts[p.Name] = matched
				stats.PatternFlags[p.Name] = nonNull > 0 &&
					float64(matched)/float64(nonNull) >= r.config.PatternMatchRatio
			}
			r.profile.TextStats[c.name] = stats
		},
	})
}

// collectAffixes reads a bounded sample of text values and computes common
// prefixes and suffixes client-side.
func (r *collectRun) collectAffixes(ctx context.Context) error {
	cols := r.columnsOfKind(dialect.KindText)
	if len(cols) == 0 {
		return nil
	}

	sample := func(cs []columnRef) (map[string][]string, error) {
		names := make([]string, len(cs))
		for i, c := range cs {
			names[i] = c.quoted
		}
		result, err := r.query(ctx, fmt.Sprintf("SELECT %s FROM %s %s",
			strings.Join(names, ", "), r.table, r.dialect.SampleClause(r.config.PrefixSampleSize)))
		if err != nil {
			return nil, err
		}
		out := make(map[string][]string, len(cs))
		for _, row := range result.Rows {
			for i, c := range cs {
				if i < len(row) && row[i] != nil {
					out[c.name] = append(out[c.name], fmt.Sprint(row[i]))
				}
			}
		}
		return out, nil
	}

	apply := func(values map[string][]string, cs []columnRef) {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, c := range cs {
			stats := r.profile.TextStats[c.name]
			stats.CommonPrefix = commonPrefix(values[c.name])
			stats.CommonSuffix = commonSuffix(values[c.name])
			r.profile.TextStats[c.name] = stats
		}
	}

	values, err := sample(cols)
	if err == nil {
		apply(values, cols)
		return nil
	}
	if len(cols) == 1 {
		return r.fail(ctx, cols[0].name, MetricCommonAffixes, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	for _, c := range cols {
		values, err := sample([]columnRef{c})
		if err != nil {
			if ferr := r.fail(ctx, c.name, MetricCommonAffixes, err); ferr != nil {
				return ferr
			}
			continue
		}
		apply(values, []columnRef{c})
	}
	return nil
}

// collectDates computes range statistics for date columns.
func (r *collectRun) collectDates(ctx context.Context) error {
	return r.runColumnQuery(ctx, columnQuery{
		metric:  MetricDateStats,
		columns: r.columnsOfKind(dialect.KindDate),
		batched: true,
		exprs: func(c columnRef) []string {
			minExpr := fmt.Sprintf("MIN(%s)", c.quoted)
			maxExpr := fmt.Sprintf("MAX(%s)", c.quoted)
			return []string{
				minExpr,
				maxExpr,
				fmt.Sprintf("COUNT(DISTINCT %s)", c.quoted),
				r.dialect.DateDiffExpr(minExpr, maxExpr, dialect.UnitDay),
			}
		},
		apply: func(c columnRef, values []any) {
			stats := r.profile.DateStats[c.name]
			stats.Min = timePtr(values[0])
			stats.Max = timePtr(values[1])
			stats.DistinctCount, _ = toInt64(values[2])
			stats.RangeDays = intPtr(values[3])
			r.profile.DateStats[c.name] = stats
		},
	})
}

// collectDateDistribution counts values per month, offset from the column's
// first month, and derives the seasonality ratio.
func (r *collectRun) collectDateDistribution(ctx context.Context, c columnRef) error {
	r.mu.Lock()
	stats, ok := r.profile.DateStats[c.name]
	r.mu.Unlock()
	if !ok || stats.Min == nil {
		return nil
	}

	first := fmt.Sprintf("(SELECT MIN(%s) FROM %s)", c.quoted, r.table)
	sqlQuery := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL GROUP BY 1 ORDER BY 1",
		r.dialect.DateDiffExpr(first, c.quoted, dialect.UnitMonth), r.table, c.quoted)

	result, err := r.query(ctx, sqlQuery)
	if err != nil {
		return r.fail(ctx, c.name, MetricDateDistribution, err)
	}

	firstMonth := time.Date(stats.Min.Year(), stats.Min.Month(), 1, 0, 0, 0, 0, time.UTC)
	buckets := make([]models.DateBucket, 0, len(result.Rows))
	var total, largest int64
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		offset, ok := toInt64(row[0])
		if !ok {
			continue
		}
		count, _ := toInt64(row[1])
		buckets = append(buckets, models.DateBucket{
			Offset: offset,
			Label:  firstMonth.AddDate(0, int(offset), 0).Format("2006-01"),
			Count:  count,
		})
		total += count
		largest = max(largest, count)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stats = r.profile.DateStats[c.name]
	stats.Distribution = buckets
	if len(buckets) > 0 && total > 0 {
		ratio := float64(largest) / (float64(total) / float64(len(buckets)))
		stats.SeasonalityRatio = &ratio
	}
	r.profile.DateStats[c.name] = stats
	return nil
}

// collectSamples reads up to n rows with the dialect's sampling clause.
// Rows are keyed by discovered column names since some engines rename
// result columns.
func (r *collectRun) collectSamples(ctx context.Context, n int) error {
	if n <= 0 || len(r.columns) == 0 {
		return nil
	}
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.quoted
	}
	result, err := r.query(ctx, fmt.Sprintf("SELECT %s FROM %s %s",
		strings.Join(names, ", "), r.table, r.dialect.SampleClause(n)))
	if err != nil {
		return r.fail(ctx, "", MetricSamples, err)
	}

	samples := make([]map[string]any, 0, min(len(result.Rows), n))
	for _, row := range result.Rows {
		if len(samples) == n {
			break
		}
		m := make(map[string]any, len(r.columns))
		for i, c := range r.columns {
			if i < len(row) {
				m[c.name] = models.DocumentValue(row[i])
			}
		}
		samples = append(samples, m)
	}
	r.profile.Samples = samples
	return nil
}

func commonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	prefix := []rune(values[0])
	for _, v := range values[1:] {
		rs := []rune(v)
		n := 0
		for n < len(prefix) && n < len(rs) && prefix[n] == rs[n] {
			n++
		}
		prefix = prefix[:n]
		if n == 0 {
			break
		}
	}
	return string(prefix)
}

func commonSuffix(values []string) string {
	reversed := make([]string, len(values))
	for i, v := range values {
		reversed[i] = reverse(v)
	}
	return reverse(commonPrefix(reversed))
}

func reverse(s string) string {
	rs := []rune(s)
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return string(rs)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
