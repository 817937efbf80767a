package features

import (
	"fmt"
	"math"

	"FinSelect/internal/domain/models"
)

// All indicator functions return a series aligned with the input. Positions
// before the first computable value hold NaN.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstValid(x []float64) int {
	for i, v := range x {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(x)
}

// SMA is the simple moving average over the last n values, first defined at n-1.
func SMA(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n < 1 || len(x) < n {
		return out
	}
	var sum float64
	for i, v := range x {
		sum += v
		if i >= n {
			sum -= x[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA is the exponential moving average with k = 2/(n+1), seeded by the simple
// average of the first n defined values. Leading NaNs in x are skipped.
func EMA(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	start := firstValid(x)
	if n < 1 || len(x)-start < n {
		return out
	}
	var seed float64
	for i := start; i < start+n; i++ {
		seed += x[i]
	}
	seed /= float64(n)
	seedAt := start + n - 1
	out[seedAt] = seed

	k := 2 / float64(n+1)
	for i := seedAt + 1; i < len(x); i++ {
		out[i] = x[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI is Wilder's relative strength index, first defined at index n.
func RSI(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n < 1 || len(x) <= n {
		return out
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(n)
	loss /= float64(n)
	out[n] = rsiValue(gain, loss)

	for i := n + 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(n-1) + g) / float64(n)
		loss = (loss*float64(n-1) + l) / float64(n)
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// MACDHistogram is the MACD line EMA(fast)-EMA(slow) minus its EMA(signal).
func MACDHistogram(x []float64, fast, slow, signal int) []float64 {
	f := EMA(x, fast)
	s := EMA(x, slow)
	line := nanSeries(len(x))
	for i := range x {
		if !math.IsNaN(f[i]) && !math.IsNaN(s[i]) {
			line[i] = f[i] - s[i]
		}
	}
	sig := EMA(line, signal)
	out := nanSeries(len(x))
	for i := range x {
		if !math.IsNaN(sig[i]) {
			out[i] = line[i] - sig[i]
		}
	}
	return out
}

// ROC is the change over n bars. On log prices this is the n-bar log return.
func ROC(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n < 1 {
		return out
	}
	for i := n; i < len(x); i++ {
		out[i] = x[i] - x[i-n]
	}
	return out
}

// seriesCache memoizes single-period series shared by several crossovers.
type seriesCache struct {
	x    []float64
	memo map[string][]float64
}

func newSeriesCache(x []float64) *seriesCache {
	return &seriesCache{x: x, memo: make(map[string][]float64)}
}

func (c *seriesCache) get(kind string, n int, fn func([]float64, int) []float64) []float64 {
	key := fmt.Sprintf("%s/%d", kind, n)
	if s, ok := c.memo[key]; ok {
		return s
	}
	s := fn(c.x, n)
	c.memo[key] = s
	return s
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// Compute evaluates spec over log prices.
func Compute(spec models.IndicatorSpec, logPrices []float64) ([]float64, error) {
	return compute(newSeriesCache(logPrices), spec)
}

func compute(c *seriesCache, spec models.IndicatorSpec) ([]float64, error) {
	switch spec.Kind {
	case models.KindMA:
		return diff(c.get("sma", spec.Short, SMA), c.get("sma", spec.Long, SMA)), nil
	case models.KindEMA:
		return diff(c.get("ema", spec.Short, EMA), c.get("ema", spec.Long, EMA)), nil
	case models.KindROC:
		return diff(c.get("roc", spec.Short, ROC), c.get("roc", spec.Long, ROC)), nil
	case models.KindRSICross:
		return diff(c.get("rsi", spec.Short, RSI), c.get("rsi", spec.Long, RSI)), nil
	case models.KindMACDCross:
		return MACDHistogram(c.x, spec.Short, spec.Long, models.MACDCrossSignal), nil
	case models.KindRSI:
		return c.get("rsi", spec.Period, RSI), nil
	case models.KindMACD:
		return MACDHistogram(c.x, spec.Fast, spec.Slow, spec.Signal), nil
	default:
		return nil, fmt.Errorf("%w: unknown indicator kind %q", ErrInvalidGrid, spec.Kind)
	}
}
