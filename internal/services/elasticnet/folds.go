package elasticnet

import "fmt"

// Fold is one chronologically contiguous held-out block and its training rows.
type Fold struct {
	Index     int   `json:"index"`
	TestStart int   `json:"test_start"` // inclusive
	TestEnd   int   `json:"test_end"`   // exclusive
	Train     []int `json:"-"`
}

// TestRows returns the number of held-out rows.
func (f Fold) TestRows() int { return f.TestEnd - f.TestStart }

// BlockedFolds splits n rows into k contiguous blocks in time order. Training rows
// exclude buffer rows on both sides of the held-out block so that no training
// window overlaps a held-out one.
func BlockedFolds(n, k, buffer int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", ErrInvalidConfig, k)
	}
	if buffer < 0 {
		return nil, fmt.Errorf("%w: negative purge buffer %d", ErrInvalidConfig, buffer)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d rows cannot form %d folds", ErrInsufficientData, n, k)
	}

	folds := make([]Fold, 0, k)
	done := 0
	for f := 0; f < k; f++ {
		size := (n - done) / (k - f)
		start, end := done, done+size
		done = end

		train := make([]int, 0, n-size)
		for i := 0; i < start-buffer; i++ {
			train = append(train, i)
		}
		for i := end + buffer; i < n; i++ {
			train = append(train, i)
		}
		if len(train) < 2 {
			return nil, fmt.Errorf("%w: fold %d keeps %d training rows after purging %d", ErrInsufficientData, f, len(train), buffer)
		}
		folds = append(folds, Fold{Index: f, TestStart: start, TestEnd: end, Train: train})
	}
	return folds, nil
}
