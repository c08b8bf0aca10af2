package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Model output is untrusted: numbers arrive as strings, money with "$" and
// commas, ids as either numbers or strings. The types below accept all of
// those shapes and normalise them at the decode boundary.

// ID is a numeric backend identifier that also decodes from a string.
type ID int64

// UnmarshalJSON accepts 42, "42" and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return fmt.Errorf("id %q is not numeric", s)
			}
			n = int64(f)
		}
		*id = ID(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(int64(f))
	return nil
}

// String formats the id in base 10
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Number is a float that decodes from numbers, numeric strings, money
// strings ("$1,200.50") and percentages ("80%" -> 0.8).
type Number float64

// UnmarshalJSON implements lenient numeric decoding
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] != '"' {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("number: %w", err)
		}
		*n = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := ParseNumber(s)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float returns the value as float64
func (n Number) Float() float64 {
	return float64(n)
}

// ParseNumber parses a loosely formatted number
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if percent {
		f /= 100
	}
	return f, nil
}

// Score is an optional number reported by the model, such as a
// confidence. A value that does not parse ("high", {}) decodes as unset
// instead of failing the enclosing object.
type Score struct {
	Value float64
	Set   bool
}

// UnmarshalJSON never returns an error
func (s *Score) UnmarshalJSON(b []byte) error {
	*s = Score{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil || strings.TrimSpace(str) == "" {
			return nil
		}
	}
	var n Number
	if err := n.UnmarshalJSON(b); err != nil {
		return nil
	}
	*s = Score{Value: n.Float(), Set: true}
	return nil
}

// MarshalJSON writes the value, or null when unset
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Set {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// Or returns the value when set, otherwise def
func (s Score) Or(def float64) float64 {
	if s.Set {
		return s.Value
	}
	return def
}

// FlexString decodes from a JSON string or number
type FlexString string

// UnmarshalJSON accepts "a1", 17 and null
func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*s = FlexString(num.String())
	return nil
}

// Date is a calendar date. It decodes "2006-01-02", RFC3339 timestamps and
// Postgres timestamps; anything else decodes to the zero date.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07",
	"01/02/2006",
}

// NewDate builds a Date at midnight UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in any accepted layout
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return NewDate(y, m, d), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognised date %q", s)
}

// UnmarshalJSON implements lenient date decoding
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

// MarshalJSON writes the date as YYYY-MM-DD, or null when unset
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// AddDays returns the date shifted by n calendar days
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

// DaysSince returns the whole days from other to d
func (d Date) DaysSince(other Date) int {
	return int(math.Round(d.Sub(other.Time).Hours() / 24))
}

// Clamp01 bounds a confidence value to [0,1]; NaN becomes 0
func Clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
