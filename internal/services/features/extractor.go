package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"FinSelect/internal/domain/models"
	"FinSelect/internal/services/elasticnet"
)

// ClosePrices returns close prices in chronological order. Candles must be
// sorted by bucket and carry positive closes.
func ClosePrices(candles []models.Candle) ([]float64, error) {
	if !sort.SliceIsSorted(candles, func(i, j int) bool { return candles[i].Bucket.Before(candles[j].Bucket) }) {
		return nil, fmt.Errorf("%w: candles are not in chronological order", elasticnet.ErrInvalidInput)
	}
	out := make([]float64, len(candles))
	for i, c := range candles {
		if !(c.Close > 0) {
			return nil, fmt.Errorf("%w: close %g at %s", elasticnet.ErrInvalidInput, c.Close, c.Bucket.Format(time.RFC3339))
		}
		out[i] = c.Close
	}
	return out, nil
}

// LogReturns computes r_t = ln(p_t / p_{t-1}); the result has len(prices)-1 entries.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}
