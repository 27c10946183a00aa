package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

func init() {
	Register(snowflakeDialect{})
}

type snowflakeDialect struct{ ansi }

var snowflakeUnquoted = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func (snowflakeDialect) ID() ID { return Snowflake }

// QuoteTable upper-cases plain identifiers before quoting, matching how
// Snowflake resolves unquoted names. Mixed-case names keep their spelling.
func (snowflakeDialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if snowflakeUnquoted.MatchString(part) && part == strings.ToLower(part) {
			parts[i] = strings.ToUpper(part)
		}
	}
	return pgx.Identifier(parts).Sanitize()
}

func (snowflakeDialect) SampleClause(n int) string {
	return fmt.Sprintf("SAMPLE (%d ROWS)", n)
}

func (snowflakeDialect) LimitClause(n int) string {
	return fmt.Sprintf("LIMIT %d", n)
}

// RegexPredicate uses REGEXP_LIKE, which is implicitly anchored at both ends.
func (snowflakeDialect) RegexPredicate(column, pattern string) string {
	return fmt.Sprintf("REGEXP_LIKE(%s, %s)", column, QuoteLiteral(pattern))
}

func (snowflakeDialect) PercentileExpr(_, column string, p float64) string {
	return fmt.Sprintf("PERCENTILE_CONT(%s) WITHIN GROUP (ORDER BY %s)", formatFloat(p), column)
}

func (snowflakeDialect) DateDiffExpr(a, b string, unit DateUnit) string {
	return fmt.Sprintf("DATEDIFF(%s, %s, %s)", strings.ToUpper(string(unit)), a, b)
}

func (snowflakeDialect) LengthExpr(column string) string {
	return fmt.Sprintf("LENGTH(%s)", column)
}

func (snowflakeDialect) StddevExpr(column string) string {
	return fmt.Sprintf("STDDEV(%s)", column)
}

func (snowflakeDialect) InferKind(dataType string) Kind {
	switch normalizeType(dataType) {
	case "timestamp_ntz", "timestamp_ltz", "timestamp_tz":
		return KindDate
	case "variant", "object", "array":
		return KindOther
	}
	return inferKind(dataType)
}
