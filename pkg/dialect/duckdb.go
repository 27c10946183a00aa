package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(duckdbDialect{})
}

type duckdbDialect struct{ ansi }

func (duckdbDialect) ID() ID { return DuckDB }

func (duckdbDialect) SampleClause(n int) string {
	return fmt.Sprintf("USING SAMPLE reservoir(%d ROWS)", n)
}

func (duckdbDialect) LimitClause(n int) string {
	return fmt.Sprintf("LIMIT %d", n)
}

func (duckdbDialect) RegexPredicate(column, pattern string) string {
	return fmt.Sprintf("regexp_matches(%s, %s)", column, QuoteLiteral(pattern))
}

func (duckdbDialect) PercentileExpr(_, column string, p float64) string {
	return fmt.Sprintf("quantile_cont(%s, %s)", column, formatFloat(p))
}

func (duckdbDialect) DateDiffExpr(a, b string, unit DateUnit) string {
	return fmt.Sprintf("date_diff('%s', %s, %s)", strings.ToLower(string(unit)), a, b)
}

func (duckdbDialect) LengthExpr(column string) string {
	return fmt.Sprintf("length(%s)", column)
}

func (duckdbDialect) InferKind(dataType string) Kind {
	switch normalizeType(dataType) {
	case "hugeint", "uhugeint", "ubigint", "uinteger", "usmallint", "utinyint":
		return KindNumeric
	}
	return inferKind(dataType)
}
