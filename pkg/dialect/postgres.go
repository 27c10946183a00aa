package dialect

import "fmt"

func init() {
	Register(postgresDialect{})
}

type postgresDialect struct{ ansi }

func (postgresDialect) ID() ID { return Postgres }

func (d postgresDialect) SampleClause(n int) string {
	return "ORDER BY random() " + d.LimitClause(n)
}

func (postgresDialect) LimitClause(n int) string {
	return fmt.Sprintf("LIMIT %d", n)
}

func (postgresDialect) RegexPredicate(column, pattern string) string {
	return fmt.Sprintf("%s ~ %s", column, QuoteLiteral(pattern))
}

func (postgresDialect) PercentileExpr(_, column string, p float64) string {
	return fmt.Sprintf("PERCENTILE_CONT(%s) WITHIN GROUP (ORDER BY %s)", formatFloat(p), column)
}

func (postgresDialect) DateDiffExpr(a, b string, unit DateUnit) string {
	switch unit {
	case UnitYear:
		return fmt.Sprintf("(DATE_PART('year', %s) - DATE_PART('year', %s))", b, a)
	case UnitMonth:
		return fmt.Sprintf("((DATE_PART('year', %[2]s) - DATE_PART('year', %[1]s)) * 12 + (DATE_PART('month', %[2]s) - DATE_PART('month', %[1]s)))", a, b)
	default:
		return fmt.Sprintf("(CAST(%s AS DATE) - CAST(%s AS DATE))", b, a)
	}
}

func (postgresDialect) LengthExpr(column string) string {
	return fmt.Sprintf("LENGTH(%s)", column)
}
