package repository

import "time"

// Timeframe is a candle bucket width label.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

var timeframeWidths = map[Timeframe]time.Duration{
	TF1m: time.Minute,
	TF5m: 5 * time.Minute,
	TF1h: time.Hour,
	TF1d: 24 * time.Hour,
}

// Duration is the bucket width, or 0 for an unknown label.
func (tf Timeframe) Duration() time.Duration { return timeframeWidths[tf] }

func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframeWidths[tf]
	return ok
}

// NormalizeTimeframe maps empty or unknown labels to daily bars, the
// resolution models are trained on by default.
func NormalizeTimeframe(s string) Timeframe {
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf
	}
	return TF1d
}
