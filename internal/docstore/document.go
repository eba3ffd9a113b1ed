package docstore

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the on-disk timestamp format. It is fixed width and UTC so
// timestamps order correctly as strings.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Document is a record in a collection: a store-assigned identifier plus
// its JSON fields.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// String returns the named field as a string, or "" when missing or not a string.
func (d Document) String(name string) string {
	s, _ := d.Fields[name].(string)
	return s
}

// Int returns the named field coerced to an integer. Numbers are truncated,
// numeric strings are parsed, and anything else (including a missing
// field) is 0.
func (d Document) Int(name string) int {
	switch v := d.Fields[name].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if f, err := v.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return int(v)
		}
	case int:
		return v
	case int64:
		return int(v)
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	}
	return 0
}

// Bool returns the named field as a bool, or def when missing or not a bool.
func (d Document) Bool(name string, def bool) bool {
	b, ok := d.Fields[name].(bool)
	if !ok {
		return def
	}
	return b
}

// Has reports whether the field is present.
func (d Document) Has(name string) bool {
	_, ok := d.Fields[name]
	return ok
}

// Time parses the named field as a timestamp. Both TimeLayout and RFC 3339
// values are accepted; anything else yields the zero time.
func (d Document) Time(name string) time.Time {
	s := d.String(name)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
