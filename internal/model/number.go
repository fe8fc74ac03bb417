package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidNumber reports a value that is absent, non-numeric, or not finite.
var ErrInvalidNumber = errors.New("invalid number")

// Number is a numeric catalog field in its raw JSON form. Catalog records
// built from HTML forms carry numbers as strings, so both 12.5 and "12.5"
// are accepted.
type Number json.RawMessage

// NewNumber returns a Number encoding v as a JSON number.
func NewNumber(v float64) Number {
	return Number(strconv.FormatFloat(v, 'f', -1, 64))
}

// MarshalJSON implements json.Marshaler.
func (p Number) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Number) UnmarshalJSON(b []byte) error {
	*p = append((*p)[:0], b...)
	return nil
}

// Float parses the value. Null, empty, non-numeric, NaN and infinite values
// yield ErrInvalidNumber.
func (p Number) Float() (float64, error) {
	raw := bytes.TrimSpace(p)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalidNumber
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalidNumber
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

// Int parses the value as a whole number.
func (p Number) Int() (int64, error) {
	v, err := p.Float()
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt64 {
		return 0, ErrInvalidNumber
	}
	return int64(v), nil
}
