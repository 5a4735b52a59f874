package ecom

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Days is a day count that may be unknown. An unknown count is NaN and is
// written as JSON null.
type Days float64

// Known reports whether d holds a real number.
func (d Days) Known() bool { return !math.IsNaN(float64(d)) }

func (d Days) MarshalJSON() ([]byte, error) {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (d *Days) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Days(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Days(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = ParseDays(s)
	return nil
}

// ParseDays reads the leading integer of s, ignoring surrounding blanks.
// "3 dias" yields 3, "abc" yields an unknown count.
func ParseDays(s string) Days {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return Days(math.NaN())
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return Days(math.NaN())
	}
	return Days(n)
}

var reflectFlexString = reflect.TypeOf(FlexString(""))

// FlexString decodes a JSON string, number or boolean into its text form.
// null decodes to the empty string.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case b[0] == '{' || b[0] == '[':
		return &json.UnmarshalTypeError{Value: "object", Type: reflectFlexString}
	default:
		*f = FlexString(b)
	}
	return nil
}

func (f FlexString) String() string { return string(f) }
