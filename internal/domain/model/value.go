package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NotAvailable is the sentinel written for values with insufficient data.
const NotAvailable = "N/A"

// Value is a number that may instead carry the "N/A" sentinel.
// The zero Value is N/A.
type Value struct {
	Num   float64
	Valid bool
}

// Num returns a numeric Value.
func Num(f float64) Value { return Value{Num: f, Valid: true} }

// NA returns the "N/A" Value.
func NA() Value { return Value{} }

// Float returns the number and whether it is present.
func (v Value) Float() (float64, bool) { return v.Num, v.Valid }

func (v Value) String() string {
	if !v.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// MarshalJSON writes a JSON number, or the string "N/A".
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(v.Num)
}

// UnmarshalJSON accepts numbers, numeric strings, "N/A" and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = NA()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, NotAvailable) {
			*v = NA()
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return fmt.Errorf("value %q is neither a number nor %q", s, NotAvailable)
		}
		*v = Num(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	*v = Num(f)
	return nil
}

// Better reports whether v ranks strictly above other as a popularity counter.
// N/A never ranks above a number. With naAsZero, N/A is compared as 0.
func (v Value) Better(other Value, naAsZero bool) bool {
	a, b := v, other
	if naAsZero {
		if !a.Valid {
			a = Num(0)
		}
		if !b.Valid {
			b = Num(0)
		}
	}
	switch {
	case !a.Valid:
		return false
	case !b.Valid:
		return true
	default:
		return a.Num > b.Num
	}
}
