package datasource

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizeValue maps a driver value onto the small set of types the engines
// understand: nil, bool, int64, float64, string, time.Time and decimal.Decimal.
// Anything else is rendered as a string.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil, bool, int64, float64, string, time.Time, decimal.Decimal:
		return val
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint:
		return uint64ToValue(uint64(val))
	case uint64:
		return uint64ToValue(val)
	case float32:
		return float64(val)
	case *big.Int:
		if val == nil {
			return nil
		}
		if val.IsInt64() {
			return val.Int64()
		}
		return decimal.NewFromBigInt(val, 0)
	case *big.Rat:
		if val == nil {
			return nil
		}
		d, err := decimal.NewFromString(val.FloatString(18))
		if err != nil {
			return val.String()
		}
		return d
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func uint64ToValue(v uint64) any {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// NormalizeRow normalizes every value of a row in place and returns it.
func NormalizeRow(row []any) []any {
	for i, v := range row {
		row[i] = NormalizeValue(v)
	}
	return row
}

// ParseNumericText converts a numeric value delivered as text into int64 when
// it is integral and fits, otherwise into decimal.Decimal. Values that do not
// parse are returned unchanged.
func ParseNumericText(v any) any {
	var text string
	switch val := v.(type) {
	case string:
		text = val
	case []byte:
		text = string(val)
	default:
		return v
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return v
	}
	if d.IsInteger() && d.GreaterThanOrEqual(minInt64) && d.LessThanOrEqual(maxInt64) {
		return d.IntPart()
	}
	return d
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)
