package features

import "fmt"

// SplitTrainTest reserves the last nTest targets for testing. The test slice holds
// maxLookback+nTest+1 prices: the lookback warm-up, nTest bars, and the trailing
// price that defines the last target. The training slice ends where its last
// target stops short of the first test target, and must yield minTrainRows rows.
func SplitTrainTest(prices []float64, maxLookback, nTest, minTrainRows int) (train, test []float64, err error) {
	if nTest < 1 || maxLookback < 0 {
		return nil, nil, fmt.Errorf("%w: n_test %d, lookback %d", ErrInvalidGrid, nTest, maxLookback)
	}
	if minTrainRows < 1 {
		minTrainRows = 1
	}
	testLen := maxLookback + nTest + 1
	need := testLen + minTrainRows + 1
	if len(prices) < need {
		return nil, nil, fmt.Errorf("%w: %d prices, need %d (lookback %d, test %d, train rows %d)",
			ErrInsufficientData, len(prices), need, maxLookback, nTest, minTrainRows)
	}
	nTrain := len(prices) - testLen
	return prices[:nTrain+maxLookback], prices[nTrain:], nil
}
