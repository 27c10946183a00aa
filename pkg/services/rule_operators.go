package services

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

// normalizeOperator resolves an operator spelling to its canonical name.
func normalizeOperator(op string) (string, error) {
	canonical, ok := models.NormalizeOperator(strings.ToLower(strings.TrimSpace(op)))
	if !ok {
		return "", fmt.Errorf("%w %q", apperrors.ErrInvalidOperator, op)
	}
	return canonical, nil
}

// applyOperator compares actual with expected. op must be canonical.
// NULL actual values only pass equals null.
func applyOperator(op string, actual, expected any) (bool, error) {
	if op == models.OperatorBetween {
		low, high, err := rangeBounds(expected)
		if err != nil {
			return false, err
		}
		if actual == nil {
			return false, nil
		}
		lc, err := compareValues(actual, low)
		if err != nil {
			return false, err
		}
		hc, err := compareValues(actual, high)
		if err != nil {
			return false, err
		}
		return lc >= 0 && hc <= 0, nil
	}

	if actual == nil || expected == nil {
		return op == models.OperatorEquals && actual == nil && expected == nil, nil
	}

	if ab, ok := actual.(bool); ok {
		eb, ok := expected.(bool)
		if !ok {
			return false, fmt.Errorf("cannot compare bool with %T", expected)
		}
		if op != models.OperatorEquals {
			return false, fmt.Errorf("operator %s is not defined for booleans", op)
		}
		return ab == eb, nil
	}

	c, err := compareValues(actual, expected)
	if err != nil {
		return false, err
	}
	switch op {
	case models.OperatorEquals:
		return c == 0, nil
	case models.OperatorGreaterThan:
		return c > 0, nil
	case models.OperatorLessThan:
		return c < 0, nil
	}
	return false, fmt.Errorf("%w %q", apperrors.ErrInvalidOperator, op)
}

// rangeBounds unpacks a two-element [low, high] expected value.
func rangeBounds(expected any) (any, any, error) {
	v := reflect.ValueOf(expected)
	if expected == nil || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, nil, fmt.Errorf("between requires a [min, max] expected value, got %T", expected)
	}
	if v.Len() != 2 {
		return nil, nil, fmt.Errorf("between requires exactly two bounds, got %d", v.Len())
	}
	low, high := v.Index(0).Interface(), v.Index(1).Interface()
	if low == nil || high == nil {
		return nil, nil, fmt.Errorf("between bounds must not be null")
	}
	return low, high, nil
}

// compareValues orders two non-null values. Numbers, including numeric
// strings, compare as exact decimals so 0.1 equals 0.10 and no epsilon is
// applied. Times compare by instant. Other strings compare lexically.
func compareValues(a, b any) (int, error) {
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Cmp(db), nil
		}
	}

	ta, aIsTime := a.(time.Time)
	tb, bIsTime := b.(time.Time)
	switch {
	case aIsTime && bIsTime:
		return ta.Compare(tb), nil
	case aIsTime:
		if parsed, ok := toTime(b); ok {
			return ta.Compare(parsed), nil
		}
	case bIsTime:
		if parsed, ok := toTime(a); ok {
			return parsed.Compare(tb), nil
		}
	}

	sa, aIsString := a.(string)
	sb, bIsString := b.(string)
	if aIsString && bIsString {
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case int64:
		return decimal.NewFromInt(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case float64:
		if _, ok := toFloat(t); !ok {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
