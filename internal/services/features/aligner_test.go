package features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"FinSelect/internal/domain/models"
	"FinSelect/internal/services/elasticnet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomWalk(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	p := 100.0
	for i := range out {
		p *= math.Exp(0.01 * rng.NormFloat64())
		out[i] = p
	}
	return out
}

func TestAlignRowsAndTarget(t *testing.T) {
	prices := randomWalk(1, 100)
	specs := []models.IndicatorSpec{models.MACrossover(3, 10), models.RSI(5)}

	ds, err := Align(prices, specs, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, ds.MaxLookback)
	assert.Equal(t, 10, ds.Start)
	assert.Equal(t, 89, ds.Rows())
	assert.Equal(t, []string{"ma_3_10", "rsi_5"}, ds.Names)

	r, c := ds.X.Dims()
	assert.Equal(t, 89, r)
	assert.Equal(t, 2, c)

	lp, err := LogPrices(prices)
	require.NoError(t, err)
	assert.InDelta(t, lp[11]-lp[10], ds.Y[0], 1e-15)
	assert.InDelta(t, lp[99]-lp[98], ds.Y[88], 1e-15)

	var short, long float64
	for i := 8; i <= 10; i++ {
		short += lp[i]
	}
	for i := 1; i <= 10; i++ {
		long += lp[i]
	}
	assert.InDelta(t, short/3-long/10, ds.X.At(0, 0), 1e-12)
}

func TestAlignHasNoLookAhead(t *testing.T) {
	prices := randomWalk(2, 120)
	specs := []models.IndicatorSpec{models.EMACrossover(4, 12), models.MACD(5, 10, 4), models.RSICrossover(3, 9)}
	base, err := Align(prices, specs, 1)
	require.NoError(t, err)

	// Perturb the future: row t must not change when prices after t change.
	const cut = 60
	shocked := append([]float64(nil), prices...)
	for i := cut + 1; i < len(shocked); i++ {
		shocked[i] *= 1.5
	}
	moved, err := Align(shocked, specs, 1)
	require.NoError(t, err)

	for t0 := base.Start; t0 <= cut; t0++ {
		r := t0 - base.Start
		for j := range specs {
			assert.Equal(t, base.X.At(r, j), moved.X.At(r, j), "row for t=%d column %d", t0, j)
		}
	}
}

func TestAlignInsufficientData(t *testing.T) {
	specs := []models.IndicatorSpec{models.MACrossover(2, 20)}
	_, err := Align(randomWalk(3, 25), specs, 5)
	assert.ErrorIs(t, err, ErrInsufficientData)

	ds, err := Align(randomWalk(3, 26), specs, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Rows())
}

func TestAlignRejectsNonPositivePrices(t *testing.T) {
	prices := randomWalk(4, 40)
	prices[17] = 0
	_, err := Align(prices, []models.IndicatorSpec{models.RSI(5)}, 1)
	assert.ErrorIs(t, err, elasticnet.ErrInvalidInput)
}

func TestAlignWithoutSpecs(t *testing.T) {
	ds, err := Align(randomWalk(5, 10), nil, 1)
	require.NoError(t, err)
	r, c := ds.X.Dims()
	assert.Equal(t, 9, r)
	assert.Zero(t, c)
}

func TestSplitTrainTest(t *testing.T) {
	prices := randomWalk(6, 100)
	train, test, err := SplitTrainTest(prices, 10, 20, 5)
	require.NoError(t, err)
	assert.Len(t, test, 31)
	assert.Len(t, train, 79)
	assert.Equal(t, prices[69], test[0])

	specs := []models.IndicatorSpec{models.MACrossover(5, 10)}
	testSet, err := Align(test, specs, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, testSet.Rows())

	trainSet, err := Align(train, specs, 5)
	require.NoError(t, err)
	assert.Equal(t, 68, trainSet.Rows())

	// Training targets stop at price 78; the first test target starts at price 79.
	assert.Equal(t, 78, len(train)-1)
	assert.Equal(t, 79, 69+testSet.Start)
}

func TestSplitTrainTestBoundary(t *testing.T) {
	const lookback, nTest = 10, 20
	_, _, err := SplitTrainTest(randomWalk(7, lookback+nTest), lookback, nTest, 1)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, _, err = SplitTrainTest(randomWalk(7, lookback+nTest+2), lookback, nTest, 1)
	assert.ErrorIs(t, err, ErrInsufficientData)

	train, test, err := SplitTrainTest(randomWalk(7, lookback+nTest+3), lookback, nTest, 1)
	require.NoError(t, err)
	assert.Len(t, test, lookback+nTest+1)
	assert.Len(t, train, 2+lookback)
}

func TestClosePricesAndLogReturns(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		{Bucket: t0, Close: 100},
		{Bucket: t0.Add(24 * time.Hour), Close: 110},
	}
	closes, err := ClosePrices(candles)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 110}, closes)

	candles[0], candles[1] = candles[1], candles[0]
	_, err = ClosePrices(candles)
	assert.ErrorIs(t, err, elasticnet.ErrInvalidInput)

	prices := []float64{100, 110, 99}
	r := LogReturns(prices)
	require.Len(t, r, 2)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-15)
	assert.Nil(t, LogReturns(prices[:1]))
}
