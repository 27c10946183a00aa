package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

// Anomaly metric names.
const (
	AnomalyRowCount           = "row_count"
	AnomalyDuplicateCount     = "duplicate_count"
	AnomalyNullPercentage     = "null_percentage"
	AnomalyDistinctPercentage = "distinct_percentage"
	AnomalyMean               = "mean"
	AnomalyStddev             = "stddev"
	AnomalyMaxLength          = "max_length"
)

// AnomalyThresholds sets, per metric, the change above which an anomaly is
// reported. Relative thresholds are fractions of the previous value; absolute
// thresholds are percentage points. A threshold of zero or less disables the
// metric.
type AnomalyThresholds struct {
	RowCount           float64 // relative
	DuplicateCount     float64 // relative
	NullPercentage     float64 // absolute points
	DistinctPercentage float64 // absolute points
	Mean               float64 // relative
	Stddev             float64 // relative
	MaxLength          float64 // relative
}

// DefaultAnomalyThresholds returns the built-in thresholds.
func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		RowCount:           0.20,
		DuplicateCount:     0.50,
		NullPercentage:     10,
		DistinctPercentage: 10,
		Mean:               0.50,
		Stddev:             0.50,
		MaxLength:          0.50,
	}
}

// metricPair is one metric present in both profiles.
type metricPair struct {
	metric   string
	previous float64
	current  float64
	relative bool
	limit    float64
}

// DetectAnomalies compares metrics present in both profiles and reports those
// whose change exceeds the threshold. Severity is high above twice the
// threshold and medium otherwise; low is never assigned here. Relative changes
// are skipped when the previous value is zero. Table metrics come first, then
// shared columns alphabetically.
func DetectAnomalies(previous, current *models.TableProfile, t AnomalyThresholds) []models.Anomaly {
	anomalies := []models.Anomaly{}
	if previous == nil || current == nil {
		return anomalies
	}

	for _, p := range []metricPair{
		{AnomalyRowCount, float64(previous.RowCount), float64(current.RowCount), true, t.RowCount},
		{AnomalyDuplicateCount, float64(previous.DuplicateCount), float64(current.DuplicateCount), true, t.DuplicateCount},
	} {
		if a, ok := evaluateChange("", p); ok {
			anomalies = append(anomalies, a)
		}
	}

	prevCols := columnsByName(previous)
	var shared []string
	for _, c := range current.Columns {
		if _, ok := prevCols[c.Name]; ok {
			shared = append(shared, c.Name)
		}
	}
	sort.Strings(shared)

	for _, name := range shared {
		for _, p := range sharedColumnMetrics(previous, current, name, t) {
			if a, ok := evaluateChange(name, p); ok {
				anomalies = append(anomalies, a)
			}
		}
	}
	return anomalies
}

// sharedColumnMetrics lists the metrics of a column that both profiles carry,
// in reporting order.
func sharedColumnMetrics(previous, current *models.TableProfile, name string, t AnomalyThresholds) []metricPair {
	var pairs []metricPair

	if pc, ok := previous.Completeness[name]; ok {
		if cc, ok := current.Completeness[name]; ok {
			pairs = append(pairs,
				metricPair{AnomalyNullPercentage, pc.NullPercentage, cc.NullPercentage, false, t.NullPercentage},
				metricPair{AnomalyDistinctPercentage, pc.DistinctPercentage, cc.DistinctPercentage, false, t.DistinctPercentage},
			)
		}
	}

	if pn, ok := previous.NumericStats[name]; ok {
		if cn, ok := current.NumericStats[name]; ok {
			if pn.Mean != nil && cn.Mean != nil {
				pairs = append(pairs, metricPair{AnomalyMean, *pn.Mean, *cn.Mean, true, t.Mean})
			}
			if pn.Stddev != nil && cn.Stddev != nil {
				pairs = append(pairs, metricPair{AnomalyStddev, *pn.Stddev, *cn.Stddev, true, t.Stddev})
			}
		}
	}

	if pt, ok := previous.TextStats[name]; ok {
		if ct, ok := current.TextStats[name]; ok && pt.MaxLength != nil && ct.MaxLength != nil {
			pairs = append(pairs, metricPair{AnomalyMaxLength, float64(*pt.MaxLength), float64(*ct.MaxLength), true, t.MaxLength})
		}
	}
	return pairs
}

func evaluateChange(column string, p metricPair) (models.Anomaly, bool) {
	if p.limit <= 0 {
		return models.Anomaly{}, false
	}

	var change float64
	if p.relative {
		if p.previous == 0 {
			return models.Anomaly{}, false
		}
		change = math.Abs(p.current-p.previous) / math.Abs(p.previous)
	} else {
		change = math.Abs(p.current - p.previous)
	}
	if change <= p.limit {
		return models.Anomaly{}, false
	}

	severity := models.SeverityMedium
	if change > 2*p.limit {
		severity = models.SeverityHigh
	}

	subject := p.metric
	if column != "" {
		subject = fmt.Sprintf("%s of %s", p.metric, column)
	}
	direction := "increased"
	if p.current < p.previous {
		direction = "decreased"
	}

	var description string
	if p.relative {
		description = fmt.Sprintf("%s %s by %.1f%% (from %g to %g)", subject, direction, change*100, p.previous, p.current)
	} else {
		description = fmt.Sprintf("%s %s by %.1f points (from %g to %g)", subject, direction, change, p.previous, p.current)
	}

	return models.Anomaly{
		Column:        column,
		Metric:        p.metric,
		Description:   description,
		Severity:      severity,
		PreviousValue: p.previous,
		CurrentValue:  p.current,
		Change:        change,
		Threshold:     p.limit,
	}, true
}
