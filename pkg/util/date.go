package util

import (
	"strconv"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.DateOnly,
	"20060102",
}

// ParseTime accepts RFC3339, a calendar date (2006-01-02 or 20060102) or unix
// seconds. Dates are UTC midnight.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if len(s) != 8 {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
			return time.Unix(ts, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignFromTo rounds a time range down to bucket boundaries of width. A
// non-positive width aligns to the minute.
func AlignFromTo(from, to time.Time, width time.Duration) (time.Time, time.Time) {
	if width <= 0 {
		width = time.Minute
	}
	return from.UTC().Truncate(width), to.UTC().Truncate(width)
}
