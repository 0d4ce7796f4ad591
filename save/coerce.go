package save

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/jacentio/changeset/internal/keygen"
)

// dateLayouts are tried in order when parsing DateTime strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// coerceValue converts a non-nil wire value to the Go value stored for dt.
// Unknown data types pass through unchanged.
func coerceValue(dt DataType, v any) (any, error) {
	switch dt {
	case DataTypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case bool, float64, int, int64:
			return fmt.Sprint(x), nil
		}
	case DataTypeInt, DataTypeInt16, DataTypeInt32, DataTypeInt64, DataTypeByte:
		return toInt(dt, v)
	case DataTypeDouble, DataTypeSingle, DataTypeDecimal:
		return toFloat(v)
	case DataTypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(x)
		}
	case DataTypeDateTime, DataTypeDateTimeOffset:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return parseDate(x)
		}
	case DataTypeBinaryID, DataTypeMongoObjectID:
		switch x := v.(type) {
		case xid.ID:
			return x, nil
		case string:
			return keygen.ParseBinaryID(x)
		}
	case DataTypeGUID:
		if s, ok := v.(string); ok {
			return keygen.ParseUUID(s)
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, dt)
}

// intRange returns the inclusive bounds and bit size of an integer data type.
func intRange(dt DataType) (lo, hi int64, bits int) {
	switch dt {
	case DataTypeByte:
		return 0, math.MaxUint8, 16
	case DataTypeInt16:
		return math.MinInt16, math.MaxInt16, 16
	case DataTypeInt32:
		return math.MinInt32, math.MaxInt32, 32
	default:
		return math.MinInt64, math.MaxInt64, 64
	}
}

func toInt(dt DataType, v any) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("%v overflows %s", x, dt)
		}
		n = int64(x)
	case string:
		_, _, bits := intRange(dt)
		p, err := strconv.ParseInt(x, 10, bits)
		if err != nil {
			return 0, err
		}
		n = p
	default:
		return 0, fmt.Errorf("cannot convert %T to an integer", v)
	}

	lo, hi, _ := intRange(dt)
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d overflows %s", n, dt)
	}
	return n, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 date", s)
}
