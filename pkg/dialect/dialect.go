// Package dialect turns abstract statistical requests into engine-specific SQL.
//
// Every supported engine is one variant registered under a fixed ID. Callers
// select a variant with Lookup and never branch on the engine themselves.
package dialect

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
)

// ID identifies a SQL dialect.
type ID string

const (
	Generic   ID = "generic"
	DuckDB    ID = "duckdb"
	Postgres  ID = "postgres"
	Snowflake ID = "snowflake"
	BigQuery  ID = "bigquery"
	Redshift  ID = "redshift"
)

// Kind is the inferred category of a column, used to decide which metrics to collect.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
	KindDate    Kind = "date"
	KindOther   Kind = "other"
)

// DateUnit is the granularity of a date difference.
type DateUnit string

const (
	UnitDay   DateUnit = "day"
	UnitMonth DateUnit = "month"
	UnitYear  DateUnit = "year"
)

// Dialect generates SQL fragments for one engine.
// Column and table arguments are expected to be quoted already
// (see QuoteIdentifier and QuoteTable) unless stated otherwise.
type Dialect interface {
	ID() ID

	// QuoteIdentifier quotes a single column or table name part.
	QuoteIdentifier(name string) string
	// QuoteTable quotes a possibly schema-qualified, dot-separated table name.
	QuoteTable(name string) string

	// SampleClause returns a fragment appended to "SELECT ... FROM <table>" that
	// returns at most n rows. Engines without native sampling fall back to a
	// plain row limit, which is NOT a uniform random sample.
	SampleClause(n int) string
	// LimitClause returns a fragment appended to a query to bound it to n rows.
	LimitClause(n int) string

	// RegexPredicate returns a boolean predicate that is true when column matches pattern.
	RegexPredicate(column, pattern string) string
	// PercentileExpr returns an expression evaluating to the p-th quantile of column.
	// table is only used by engines that need a subquery fallback.
	PercentileExpr(table, column string, p float64) string
	// DateDiffExpr returns an integer expression for b - a measured in unit.
	DateDiffExpr(a, b string, unit DateUnit) string

	LengthExpr(column string) string
	StddevExpr(column string) string

	// BatchesPercentiles reports whether percentile expressions over different
	// columns may share one statement.
	BatchesPercentiles() bool

	// InferKind maps a source data type name to a column kind.
	InferKind(dataType string) Kind
}

var (
	registryMu sync.RWMutex
	registry   = make(map[ID]Dialect)
)

var aliases = map[string]ID{
	"ansi":       Generic,
	"postgresql": Postgres,
}

// Register is called by each dialect's init() function.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.ID()] = d
}

// Lookup returns the dialect registered under id.
// Unknown identifiers fail with apperrors.ErrUnsupportedDialect; there is no
// implicit fallback. Callers wanting the ANSI bundle ask for Generic explicitly.
func Lookup(id string) (Dialect, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if alias, ok := aliases[key]; ok {
		key = string(alias)
	}

	registryMu.RLock()
	defer registryMu.RUnlock()
	if d, ok := registry[ID(key)]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDialect, id)
}

// MustLookup is Lookup for identifiers known at compile time.
func MustLookup(id ID) Dialect {
	d, err := Lookup(string(id))
	if err != nil {
		panic(err)
	}
	return d
}

// Registered returns all registered dialect IDs in sorted order.
func Registered() []ID {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]ID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// QuoteLiteral renders s as a standard SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
