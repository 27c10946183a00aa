package models

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
)

// Rule operators. Aliases are accepted when evaluating; see NormalizeOperator.
const (
	OperatorEquals      = "equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorBetween     = "between"
)

var operatorAliases = map[string]string{
	"equals": OperatorEquals, "eq": OperatorEquals, "==": OperatorEquals, "=": OperatorEquals,
	"greater_than": OperatorGreaterThan, "gt": OperatorGreaterThan, ">": OperatorGreaterThan,
	"less_than": OperatorLessThan, "lt": OperatorLessThan, "<": OperatorLessThan,
	"between": OperatorBetween, "range": OperatorBetween, ">=<=": OperatorBetween,
}

// NormalizeOperator maps an operator or one of its aliases to its canonical name.
func NormalizeOperator(op string) (string, bool) {
	canonical, ok := operatorAliases[op]
	return canonical, ok
}

// ValidationRule is a named query whose scalar result is compared against
// an expected value.
type ValidationRule struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Query       string `json:"query"`
	Operator    string `json:"operator"`
	// ExpectedValue is a scalar, or a two-element [low, high] list for between.
	ExpectedValue any `json:"expected_value"`
}

// ValidationResult is the outcome of evaluating one rule.
// Error is set when the rule query failed or the rule could not be compared;
// IsValid is false in that case.
type ValidationResult struct {
	RuleName      string `json:"rule_name"`
	IsValid       bool   `json:"is_valid"`
	ActualValue   any    `json:"actual_value"`
	ExpectedValue any    `json:"expected_value"`
	Operator      string `json:"operator"`
	Description   string `json:"description"`
	Error         string `json:"error,omitempty"`
}

// DefaultDescription is used for rules without a description.
func DefaultDescription(name string) string {
	return "Validation rule: " + name
}

// WithDefaults fills in the optional rule fields.
func (r ValidationRule) WithDefaults() ValidationRule {
	if r.Description == "" {
		r.Description = DefaultDescription(r.Name)
	}
	if r.Operator == "" {
		r.Operator = OperatorEquals
	}
	return r
}

// ValidateRules checks that every rule has a name and a query and that
// names are unique. Operators are checked at evaluation time so that one
// bad operator fails only its own rule.
func ValidateRules(rules []ValidationRule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return fmt.Errorf("%w: rule %d has no name", apperrors.ErrMalformedRule, i)
		}
		if r.Query == "" {
			return fmt.Errorf("%w: rule %q has no query", apperrors.ErrMalformedRule, r.Name)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("%w: duplicate rule name %q", apperrors.ErrMalformedRule, r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}
