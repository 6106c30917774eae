package model

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// ErrUnsupportedValue is returned when a value is not a string, number,
// boolean or nil.
var ErrUnsupportedValue = errors.New("model: unsupported value type")

// NormalizeValue maps caller supplied values onto the scalar kinds stored in
// records. Strings are NFC normalised and every numeric kind becomes float64.
// NaN and infinities are rejected: they never compare equal and have no JSON
// form.
func NormalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return norm.NFC.String(v), nil
	case bool:
		return v, nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

func finite(v float64) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, v)
	}
	return v, nil
}

// NormalizeRecord normalises every value of rec in place.
func NormalizeRecord(rec *Record) error {
	if rec == nil {
		return nil
	}
	if rec.Values == nil {
		rec.Values = make(map[string]any)
		return nil
	}
	for key, value := range rec.Values {
		normalized, err := NormalizeValue(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		rec.Values[key] = normalized
	}
	return nil
}
