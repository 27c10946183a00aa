package dialect

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ansi holds the standard SQL rendering shared by every engine.
// Variants embed it and override what their engine does differently.
type ansi struct{}

func (ansi) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (ansi) QuoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// SampleClause has no portable random-sampling syntax, so it takes the first
// n rows in whatever order the engine returns them.
func (a ansi) SampleClause(n int) string {
	return a.LimitClause(n)
}

func (ansi) LimitClause(n int) string {
	return fmt.Sprintf("FETCH FIRST %d ROWS ONLY", n)
}

// RegexPredicate uses SIMILAR TO, which always matches the whole string,
// so leading ^ and trailing $ anchors are dropped.
func (ansi) RegexPredicate(column, pattern string) string {
	p := strings.TrimSuffix(strings.TrimPrefix(pattern, "^"), "$")
	return fmt.Sprintf("%s SIMILAR TO %s", column, QuoteLiteral(p))
}

// PercentileExpr computes a nearest-rank (discrete) percentile with an ordered
// window over the non-null values of column.
func (ansi) PercentileExpr(table, column string, p float64) string {
	return fmt.Sprintf(
		"(SELECT MIN(pv) FROM (SELECT %[2]s AS pv, ROW_NUMBER() OVER (ORDER BY %[2]s) AS prn, COUNT(*) OVER () AS pcnt FROM %[1]s WHERE %[2]s IS NOT NULL) pranked WHERE prn >= %[3]s * pcnt)",
		table, column, formatFloat(p))
}

func (ansi) DateDiffExpr(a, b string, unit DateUnit) string {
	switch unit {
	case UnitYear:
		return fmt.Sprintf("(EXTRACT(YEAR FROM %s) - EXTRACT(YEAR FROM %s))", b, a)
	case UnitMonth:
		return fmt.Sprintf("((EXTRACT(YEAR FROM %[2]s) - EXTRACT(YEAR FROM %[1]s)) * 12 + (EXTRACT(MONTH FROM %[2]s) - EXTRACT(MONTH FROM %[1]s)))", a, b)
	default:
		return fmt.Sprintf("EXTRACT(DAY FROM (CAST(%s AS TIMESTAMP) - CAST(%s AS TIMESTAMP)))", b, a)
	}
}

func (ansi) LengthExpr(column string) string {
	return fmt.Sprintf("CHAR_LENGTH(%s)", column)
}

func (ansi) StddevExpr(column string) string {
	return fmt.Sprintf("STDDEV_SAMP(%s)", column)
}

func (ansi) BatchesPercentiles() bool { return true }

func (ansi) InferKind(dataType string) Kind {
	return inferKind(dataType)
}
