package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
)

// TableProfile is a snapshot of one table's quality metrics.
// A fresh profile is produced per run and never mutated afterwards;
// comparison and rule synthesis only read it.
type TableProfile struct {
	RunID      uuid.UUID `json:"run_id"`
	Table      string    `json:"table"`
	Dialect    string    `json:"dialect"`
	ProfiledAt time.Time `json:"profiled_at"`

	RowCount       int64 `json:"row_count"`
	DuplicateCount int64 `json:"duplicate_count"`

	// Columns keeps source column order.
	Columns      []ColumnProfile         `json:"columns"`
	Completeness map[string]Completeness `json:"completeness"`
	NumericStats map[string]NumericStats `json:"numeric_stats"`
	TextStats    map[string]TextStats    `json:"text_stats"`
	DateStats    map[string]DateStats    `json:"date_stats"`

	Samples []map[string]any `json:"samples,omitempty"`

	SchemaShifts []SchemaShift `json:"schema_shifts"`
	Anomalies    []Anomaly     `json:"anomalies"`

	// Errors records metric queries that failed. Columns named here are also
	// marked Partial.
	Errors []MetricError `json:"errors"`
}

// ColumnProfile identifies a column and its inferred kind. Kind-specific
// statistics live in the profile's NumericStats, TextStats and DateStats maps.
type ColumnProfile struct {
	Name     string       `json:"name"`
	DataType string       `json:"data_type"`
	Kind     dialect.Kind `json:"kind"`
	// Partial is set when at least one metric for the column could not be computed.
	Partial bool     `json:"partial,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// ValueCount is one entry of a most-frequent-values list.
type ValueCount struct {
	Value any   `json:"value"`
	Count int64 `json:"count"`
}

// Completeness holds null and distinct metrics for a column.
// Percentages are relative to the table row count and are not rounded.
type Completeness struct {
	NullCount          int64        `json:"null_count"`
	NullPercentage     float64      `json:"null_percentage"`
	DistinctCount      int64        `json:"distinct_count"`
	DistinctPercentage float64      `json:"distinct_percentage"`
	MostFrequent       []ValueCount `json:"most_frequent"`
}

// NumericStats holds summary statistics for a numeric column.
// Fields are nil when the column has no non-null values.
type NumericStats struct {
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	Mean         *float64 `json:"mean"`
	Median       *float64 `json:"median"`
	Stddev       *float64 `json:"stddev"`
	Q1           *float64 `json:"q1"`
	Q3           *float64 `json:"q3"`
	IQR          *float64 `json:"iqr"`
	LowerFence   *float64 `json:"lower_fence"`
	UpperFence   *float64 `json:"upper_fence"`
	OutlierCount *int64   `json:"outlier_count"`
}

// TextStats holds length and pattern statistics for a text column.
type TextStats struct {
	MinLength *int64   `json:"min_length"`
	MaxLength *int64   `json:"max_length"`
	AvgLength *float64 `json:"avg_length"`
	// PatternCounts is the number of non-null values matching each recognized pattern.
	PatternCounts map[string]int64 `json:"pattern_counts"`
	// PatternFlags marks patterns matched by the configured share of non-null values.
	PatternFlags map[string]bool `json:"pattern_flags"`
	CommonPrefix string          `json:"common_prefix"`
	CommonSuffix string          `json:"common_suffix"`
}

// DateBucket counts values falling in one month.
// Offset is months since the column's minimum month.
type DateBucket struct {
	Offset int64  `json:"offset"`
	Label  string `json:"label"` // YYYY-MM
	Count  int64  `json:"count"`
}

// DateStats holds range and distribution statistics for a date column.
type DateStats struct {
	Min           *time.Time   `json:"min"`
	Max           *time.Time   `json:"max"`
	DistinctCount int64        `json:"distinct_count"`
	RangeDays     *int64       `json:"range_days"`
	Distribution  []DateBucket `json:"distribution"`
	// SeasonalityRatio is the largest bucket count over the mean bucket count.
	// 1.0 means perfectly even; larger values mean concentrated activity.
	SeasonalityRatio *float64 `json:"seasonality_ratio"`
}

// MetricError records a metric query that failed during profiling.
// Column is empty for table-level metrics.
type MetricError struct {
	Column  string `json:"column,omitempty"`
	Metric  string `json:"metric"`
	Message string `json:"message"`
}

// Column returns the named column profile.
func (p *TableProfile) Column(name string) (ColumnProfile, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

// ColumnNames returns column names in profile order.
func (p *TableProfile) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// IsPartial reports whether any metric in the profile failed.
func (p *TableProfile) IsPartial() bool {
	return len(p.Errors) > 0
}
