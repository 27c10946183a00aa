package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(redshiftDialect{})
}

type redshiftDialect struct{ ansi }

func (redshiftDialect) ID() ID { return Redshift }

func (d redshiftDialect) SampleClause(n int) string {
	return "ORDER BY RANDOM() " + d.LimitClause(n)
}

func (redshiftDialect) LimitClause(n int) string {
	return fmt.Sprintf("LIMIT %d", n)
}

func (redshiftDialect) RegexPredicate(column, pattern string) string {
	return fmt.Sprintf("REGEXP_INSTR(%s, %s) > 0", column, QuoteLiteral(pattern))
}

func (redshiftDialect) PercentileExpr(_, column string, p float64) string {
	return fmt.Sprintf("APPROXIMATE PERCENTILE_DISC(%s) WITHIN GROUP (ORDER BY %s)", formatFloat(p), column)
}

func (redshiftDialect) DateDiffExpr(a, b string, unit DateUnit) string {
	return fmt.Sprintf("DATEDIFF(%s, %s, %s)", strings.ToLower(string(unit)), a, b)
}

func (redshiftDialect) LengthExpr(column string) string {
	return fmt.Sprintf("LEN(%s)", column)
}

// BatchesPercentiles is false because Redshift requires every ordered-set
// aggregate in a statement to share the same ORDER BY expression.
func (redshiftDialect) BatchesPercentiles() bool { return false }

func (redshiftDialect) InferKind(dataType string) Kind {
	switch normalizeType(dataType) {
	case "super", "hllsketch", "geometry":
		return KindOther
	}
	return inferKind(dataType)
}
