package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EpochMillisToTime converts an epoch-milliseconds value to a UTC time.
func EpochMillisToTime(val interface{}) (time.Time, error) {
	ms, err := ConvertToInt64(val)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func ConvertToInt64(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		// Values such as 1.540919166796E12 arrive in float notation.
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}

func ConvertToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", val)
	}
}

// ConvertToString renders scalars as text; nil becomes "".
func ConvertToString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsBlank reports whether a JSON value should be treated as SQL NULL:
// missing, null or an empty string.
func IsBlank(val interface{}) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// NullableInt64 returns nil for blank values.
func NullableInt64(val interface{}) (*int64, error) {
	if IsBlank(val) {
		return nil, nil
	}
	n, err := ConvertToInt64(val)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// NullableFloat returns nil for blank values.
func NullableFloat(val interface{}) (*float64, error) {
	if IsBlank(val) {
		return nil, nil
	}
	f, err := ConvertToFloat(val)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

