package apperrors

import "errors"

// Fatal kinds abort the current operation. Non-fatal kinds are recorded on the
// affected column or rule result and the run continues.
var (
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	ErrMalformedRule      = errors.New("malformed rule")
	ErrMalformedProfile   = errors.New("malformed profile")

	ErrMetricQuery     = errors.New("metric query failed")
	ErrRuleQuery       = errors.New("rule query failed")
	ErrInvalidOperator = errors.New("invalid operator")
)
