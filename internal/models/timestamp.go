package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"January 2, 2006",
}

// ParseTimestamp accepts epoch milliseconds (as a number or numeric string) or
// a date string in one of the common layouts. The result is in UTC.
func ParseTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, ErrInvalidTimestamp
		}
		return fromMillis(f)
	case float64:
		return fromMillis(v)
	case int:
		return fromMillis(float64(v))
	case int64:
		return fromMillis(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, ErrInvalidTimestamp
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromMillis(f)
		}
		// JS Date.toString appends a zone name, e.g. "(Central European Time)".
		if i := strings.Index(s, " ("); i > 0 {
			s = s[:i]
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

func fromMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, ErrInvalidTimestamp
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}
