package docstore

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the ISO-8601 form timestamps are persisted in (UTC, milliseconds)
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts any RFC 3339 timestamp, including TimeLayout
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Fields holds a document's named values.
// Values are strings, booleans, numbers or time.Time; numbers may come back as
// json.Number or float64 depending on the store, so read them through the accessors.
type Fields map[string]interface{}

// Clone returns a shallow copy
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the field as a string, or "" if absent or not a string
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case time.Time:
		return FormatTime(v)
	}
	return ""
}

// Int returns the field as an integer, or 0 if absent or not numeric
func (f Fields) Int(key string) int64 {
	n, _ := toInt(f[key])
	return n
}

// Bool returns the field as a bool, or false if absent
func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Time returns the field as a time, accepting time.Time or an RFC 3339 string
func (f Fields) Time(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := ParseTime(v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int, int32, int64:
		i, _ := toInt(n)
		return float64(i), true
	}
	return 0, false
}

// CompareValues orders two field values the way stores sort them:
// absent < bool < number < string/time, numbers numerically, strings bytewise.
func CompareValues(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case rankNumber:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(stringValue(a), stringValue(b))
	}
	return 0
}

const (
	rankAbsent = iota
	rankBool
	rankNumber
	rankString
)

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankAbsent
	case bool:
		return rankBool
	case int, int32, int64, float64, json.Number:
		return rankNumber
	case string, time.Time:
		return rankString
	}
	return rankAbsent
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return FormatTime(s)
	}
	return ""
}
