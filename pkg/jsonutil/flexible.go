package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// models return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// Float decodes a JSON number, a numeric string ("0.8") or a percentage
// string ("80%"). Null and empty decode to zero.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(raw []byte) error {
	s := strings.TrimSpace(FlexibleStringValue(raw))
	if s == "" {
		*f = 0
		return nil
	}

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("jsonutil: %q is not a number", string(raw))
	}
	if percent {
		v /= 100
	}
	*f = Float(v)
	return nil
}

// Float64 returns f as a float64.
func (f Float) Float64() float64 {
	return float64(f)
}

// String decodes any JSON scalar as its string form.
type String string

// UnmarshalJSON implements json.Unmarshaler.
func (s *String) UnmarshalJSON(raw []byte) error {
	*s = String(FlexibleStringValue(raw))
	return nil
}
