package http

import (
	"time"

	xutil "FinSelect/pkg/util"
)

// ParseTimeDefault parses a query time (RFC3339, calendar date or unix
// seconds) or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
