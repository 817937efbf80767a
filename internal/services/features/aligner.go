package features

import (
	"fmt"
	"math"

	"FinSelect/internal/domain/models"
	"FinSelect/internal/services/elasticnet"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is shared with the model engine so callers can test one sentinel.
var ErrInsufficientData = elasticnet.ErrInsufficientData

// Dataset is an aligned feature matrix and next-bar log-return target.
// Row r corresponds to price index Start+r.
type Dataset struct {
	X           mat.Matrix
	Y           []float64
	Names       []string
	Start       int
	MaxLookback int
}

// Rows returns the number of aligned observations.
func (d *Dataset) Rows() int { return len(d.Y) }

// Align computes every spec on log prices for t in [maxLookback, n-2] and pairs
// row t with target log(p[t+1]) - log(p[t]). At least required rows must result.
func Align(prices []float64, specs []models.IndicatorSpec, required int) (*Dataset, error) {
	if required < 1 {
		required = 1
	}
	lookback := MaxLookback(specs)
	n := len(prices)
	if n < lookback+required+1 {
		return nil, fmt.Errorf("%w: %d prices, need %d for lookback %d and %d rows",
			ErrInsufficientData, n, lookback+required+1, lookback, required)
	}

	logPrices, err := LogPrices(prices)
	if err != nil {
		return nil, err
	}

	rows := n - 1 - lookback
	y := make([]float64, rows)
	for r := range y {
		t := lookback + r
		y[r] = logPrices[t+1] - logPrices[t]
	}

	ds := &Dataset{
		Y:           y,
		Names:       Names(specs),
		Start:       lookback,
		MaxLookback: lookback,
	}
	if len(specs) == 0 {
		ds.X = elasticnet.Empty(rows)
		return ds, nil
	}

	x := mat.NewDense(rows, len(specs), nil)
	cache := newSeriesCache(logPrices)
	for j, spec := range specs {
		series, err := compute(cache, spec)
		if err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			v := series[lookback+r]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: %s undefined at price index %d", elasticnet.ErrInvalidInput, spec.Name(), lookback+r)
			}
			x.Set(r, j, v)
		}
	}
	ds.X = x
	return ds, nil
}

// LogPrices returns the natural log of each price. Prices must be positive and finite.
func LogPrices(prices []float64) ([]float64, error) {
	out := make([]float64, len(prices))
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: price %g at index %d", elasticnet.ErrInvalidInput, p, i)
		}
		out[i] = math.Log(p)
	}
	return out, nil
}
