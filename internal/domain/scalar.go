package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scalar is an optional value that sources deliver either as a number or as
// text. The zero value means "not present".
type Scalar string

// ScalarFromFloat formats f without trailing zeros.
func ScalarFromFloat(f float64) Scalar {
	return Scalar(strconv.FormatFloat(f, 'f', -1, 64))
}

// ScalarFromInt formats n in base 10.
func ScalarFromInt(n int) Scalar {
	return Scalar(strconv.Itoa(n))
}

// IsSet reports whether the value is present.
func (s Scalar) IsSet() bool {
	return strings.TrimSpace(string(s)) != ""
}

func (s Scalar) String() string {
	return string(s)
}

// Float parses the value as a finite number.
func (s Scalar) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int parses the value as a whole number. "3.0" is accepted, "3.5" is not.
func (s Scalar) Int() (int, bool) {
	f, ok := s.Float()
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// UnmarshalJSON accepts a JSON number, string, boolean or null.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(strings.TrimSpace(str))
	case b[0] == '[', b[0] == '{':
		return fmt.Errorf("scalar: expected a number or string, got %s", b)
	default:
		*s = Scalar(b)
	}
	return nil
}

// MarshalJSON writes numeric values as JSON numbers and everything else as strings.
func (s Scalar) MarshalJSON() ([]byte, error) {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return []byte("null"), nil
	}
	if _, ok := s.Float(); ok && json.Valid([]byte(v)) {
		return []byte(v), nil
	}
	return json.Marshal(string(s))
}
