package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// row is one loosely typed upstream record.
type row map[string]any

var errUnexpectedShape = errors.New("expected a JSON array or an object with a data array")

// decodeRows accepts either a bare array or {"data": [...]}. Non-object elements are skipped.
func decodeRows(body []byte) ([]row, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		data, ok := t["data"].([]any)
		if !ok {
			return nil, errUnexpectedShape
		}
		items = data
	default:
		return nil, errUnexpectedShape
	}
	rows := make([]row, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			rows = append(rows, row(m))
		}
	}
	return rows, nil
}

// str returns the first non-empty value among keys rendered as a string.
func (r row) str(keys ...string) string {
	for _, k := range keys {
		if s := toStringFallback(r[k], ""); s != "" {
			return s
		}
	}
	return ""
}

// number returns the first numeric value among keys.
func (r row) number(keys ...string) *float64 {
	for _, k := range keys {
		if f, err := toFloat(r[k]); err == nil {
			return &f
		}
	}
	return nil
}

// integer returns the first integer value among keys.
func (r row) integer(keys ...string) *int {
	for _, k := range keys {
		if i, err := toInt(r[k]); err == nil {
			return &i
		}
	}
	return nil
}

// instant returns the first parseable timestamp among keys.
func (r row) instant(keys ...string) *time.Time {
	for _, k := range keys {
		if s, ok := r[k].(string); ok {
			if t := utils.ParseInstantPtr(s); t != nil {
				return t
			}
		}
	}
	return nil
}

func toStringFallback(v any, fallback string) string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fallback
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case json.Number:
		return t.Float64()
	default:
		return 0, errors.New("not a float")
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	case json.Number:
		i64, err := t.Int64()
		return int(i64), err
	default:
		return 0, errors.New("not an int")
	}
}

func inWindow(t *time.Time, from, to time.Time) bool {
	if t == nil {
		return false
	}
	return !t.Before(from) && !t.After(to)
}
