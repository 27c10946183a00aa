package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// dateFloor is the earliest date a column is expected to hold unless the
// profile already observed an earlier one.
var dateFloor = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// SynthesizeDefaultRules derives rules from a profile's structure and observed
// values. The same profile always yields the same rules in the same order:
// the non-empty table check, then per column in profile order uniqueness,
// not-null, non-empty string, non-negative, outlier, date range, format and
// length checks. Columns with metric errors are skipped.
func SynthesizeDefaultRules(profile *models.TableProfile) ([]models.ValidationRule, error) {
	d, err := dialect.Lookup(profile.Dialect)
	if err != nil {
		return nil, err
	}

	b := ruleBuilder{
		dialect: d,
		table:   d.QuoteTable(profile.Table),
		used:    make(map[string]int),
	}

	_, base := datasource.SplitTableName(profile.Table)
	entity := inflection.Singular(base)

	b.add(
		fmt.Sprintf("check_%s_not_empty", slug(base)),
		fmt.Sprintf("%s must contain at least one %s", profile.Table, entity),
		fmt.Sprintf("SELECT COUNT(*) FROM %s", b.table),
		models.OperatorGreaterThan, int64(0),
	)

	for _, col := range profile.Columns {
		if col.Partial {
			continue
		}
		b.columnRules(profile, col, entity)
	}
	return b.rules, nil
}

type ruleBuilder struct {
	dialect dialect.Dialect
	table   string
	rules   []models.ValidationRule
	used    map[string]int
}

// add appends a rule, suffixing the name when two columns slug to the same text.
func (b *ruleBuilder) add(name, description, query, operator string, expected any) {
	b.used[name]++
	if n := b.used[name]; n > 1 {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	b.rules = append(b.rules, models.ValidationRule{
		Name:          name,
		Description:   description,
		Query:         query,
		Operator:      operator,
		ExpectedValue: expected,
	})
}

func (b *ruleBuilder) columnRules(profile *models.TableProfile, col models.ColumnProfile, entity string) {
	q := b.dialect.QuoteIdentifier(col.Name)
	prefix := "check_" + slug(col.Name)
	countWhere := func(cond string) string {
		return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", b.table, cond)
	}

	comp, hasComp := profile.Completeness[col.Name]
	noNulls := hasComp && profile.RowCount > 0 && comp.NullCount == 0

	if noNulls && comp.DistinctCount == profile.RowCount {
		b.add(prefix+"_unique",
			fmt.Sprintf("Each %s must have a unique %s", entity, col.Name),
			fmt.Sprintf("SELECT COUNT(*) - COUNT(DISTINCT %s) FROM %s", q, b.table),
			models.OperatorEquals, int64(0))
	}
	if noNulls {
		b.add(prefix+"_not_null",
			fmt.Sprintf("%s must never be null", col.Name),
			countWhere(q+" IS NULL"),
			models.OperatorEquals, int64(0))
	}

	text, hasText := profile.TextStats[col.Name]
	if col.Kind == dialect.KindText && noNulls && hasText && text.MinLength != nil && *text.MinLength > 0 {
		b.add(prefix+"_not_empty_string",
			fmt.Sprintf("%s must not be an empty string", col.Name),
			countWhere(q+" = ''"),
			models.OperatorEquals, int64(0))
	}

	if num, ok := profile.NumericStats[col.Name]; ok && col.Kind == dialect.KindNumeric && num.Min != nil && *num.Min >= 0 {
		b.add(prefix+"_non_negative",
			fmt.Sprintf("%s must not be negative", col.Name),
			countWhere(q+" < 0"),
			models.OperatorEquals, int64(0))
	}

	if num, ok := profile.NumericStats[col.Name]; ok && col.Kind == dialect.KindNumeric &&
		num.LowerFence != nil && num.UpperFence != nil && num.OutlierCount != nil {
		limit := *num.OutlierCount + 1
		b.add(prefix+"_outliers",
			fmt.Sprintf("%s must have fewer than %d values outside the 1.5 x IQR fences", col.Name, limit),
			countWhere(fmt.Sprintf("%s < %s OR %s > %s", q, formatNumber(*num.LowerFence), q, formatNumber(*num.UpperFence))),
			models.OperatorLessThan, limit)
	}

	if ds, ok := profile.DateStats[col.Name]; ok && col.Kind == dialect.KindDate {
		b.dateRules(profile, col.Name, ds)
	}

	if col.Kind != dialect.KindText || !hasText {
		return
	}

	for _, check := range []struct {
		pattern string
		suffix  string
		noun    string
	}{
		{dialect.PatternEmail, "_valid_email", "email address"},
		{dialect.PatternPhone, "_valid_phone", "phone number"},
		{dialect.PatternNumeric, "_numeric_format", "number"},
	} {
		if !text.PatternFlags[check.pattern] {
			continue
		}
		p, _ := dialect.PatternByName(check.pattern)
		b.add(prefix+check.suffix,
			fmt.Sprintf("Every non-null %s must be a valid %s", col.Name, check.noun),
			countWhere(fmt.Sprintf("%s IS NOT NULL AND NOT (%s)", q, b.dialect.RegexPredicate(q, p.Expr))),
			models.OperatorEquals, int64(0))
	}

	if text.MaxLength != nil {
		limit := *text.MaxLength + 1
		b.add(prefix+"_max_length",
			fmt.Sprintf("%s must be shorter than %d characters", col.Name, limit),
			fmt.Sprintf("SELECT MAX(%s) FROM %s", b.dialect.LengthExpr(q), b.table),
			models.OperatorLessThan, limit)
	}
}

// dateRules bounds a date column by the range the profile observed. The
// future check is only emitted when no observed value was in the future at
// profiling time.
func (b *ruleBuilder) dateRules(profile *models.TableProfile, name string, ds models.DateStats) {
	q := b.dialect.QuoteIdentifier(name)
	prefix := "check_" + slug(name)

	if ds.Max != nil && !profile.ProfiledAt.IsZero() && !ds.Max.After(profile.ProfiledAt) {
		b.add(prefix+"_not_future",
			fmt.Sprintf("%s must not be in the future", name),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < 0", b.table, b.dialect.DateDiffExpr(q, "CURRENT_DATE", dialect.UnitDay)),
			models.OperatorEquals, int64(0))
	}

	if ds.Min != nil {
		floor := dateFloor
		if m := ds.Min.UTC(); m.Before(floor) {
			floor = time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, time.UTC)
		}
		day := floor.Format(time.DateOnly)
		b.add(prefix+"_reasonable_past",
			fmt.Sprintf("%s must not be before %s", name, day),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < 0", b.table, b.dialect.DateDiffExpr("DATE "+dialect.QuoteLiteral(day), q, dialect.UnitDay)),
			models.OperatorEquals, int64(0))
	}
}

// slug lower-cases s and replaces runs of other characters with underscores.
func slug(s string) string {
	out := strings.Trim(nonWord.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if out == "" {
		return "column"
	}
	return out
}
