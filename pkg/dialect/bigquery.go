package dialect

import (
	"fmt"
	"math"
	"strings"
)

func init() {
	Register(bigqueryDialect{})
}

type bigqueryDialect struct{ ansi }

func (bigqueryDialect) ID() ID { return BigQuery }

func (bigqueryDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func (d bigqueryDialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = d.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// SampleClause samples storage blocks, so small tables may return fewer than n rows.
func (d bigqueryDialect) SampleClause(n int) string {
	return "TABLESAMPLE SYSTEM (10 PERCENT) " + d.LimitClause(n)
}

func (bigqueryDialect) LimitClause(n int) string {
	return fmt.Sprintf("LIMIT %d", n)
}

func (bigqueryDialect) RegexPredicate(column, pattern string) string {
	return fmt.Sprintf("REGEXP_CONTAINS(%s, %s)", column, bigqueryLiteral(pattern))
}

// PercentileExpr reads the p-th entry of a 100-way approximate quantile split.
func (bigqueryDialect) PercentileExpr(_, column string, p float64) string {
	offset := int(math.Round(p * 100))
	return fmt.Sprintf("APPROX_QUANTILES(%s, 100)[OFFSET(%d)]", column, offset)
}

func (bigqueryDialect) DateDiffExpr(a, b string, unit DateUnit) string {
	return fmt.Sprintf("DATE_DIFF(CAST(%s AS DATE), CAST(%s AS DATE), %s)", b, a, strings.ToUpper(string(unit)))
}

func (bigqueryDialect) LengthExpr(column string) string {
	return fmt.Sprintf("LENGTH(%s)", column)
}

func (bigqueryDialect) InferKind(dataType string) Kind {
	switch normalizeType(dataType) {
	case "int64", "float64", "bignumeric", "bigdecimal":
		return KindNumeric
	case "struct", "record", "geography", "bytes":
		return KindOther
	}
	return inferKind(dataType)
}

// bigqueryLiteral escapes for GoogleSQL string literals, which treat backslash
// as an escape character.
func bigqueryLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
