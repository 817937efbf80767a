package elasticnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockedFoldsCoverRowsInOrder(t *testing.T) {
	folds, err := BlockedFolds(10, 3, 0)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, [2]int{0, 3}, [2]int{folds[0].TestStart, folds[0].TestEnd})
	assert.Equal(t, [2]int{3, 6}, [2]int{folds[1].TestStart, folds[1].TestEnd})
	assert.Equal(t, [2]int{6, 10}, [2]int{folds[2].TestStart, folds[2].TestEnd})
	assert.Equal(t, []int{0, 1, 2, 6, 7, 8, 9}, folds[1].Train)
}

func TestBlockedFoldsPurgeBothSides(t *testing.T) {
	const n, k, buffer = 100, 4, 5
	folds, err := BlockedFolds(n, k, buffer)
	require.NoError(t, err)

	covered := 0
	for i, f := range folds {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, 25, f.TestRows())
		covered += f.TestRows()
		for _, r := range f.Train {
			assert.False(t, r >= f.TestStart-buffer && r < f.TestEnd+buffer,
				"fold %d trains on row %d inside purge window [%d,%d)", i, r, f.TestStart-buffer, f.TestEnd+buffer)
		}
	}
	assert.Equal(t, n, covered)

	// Fold 1 holds out [25,50): rows 20..54 are unavailable for training.
	assert.Len(t, folds[1].Train, n-35)
	assert.Equal(t, 19, folds[1].Train[19])
	assert.Equal(t, 55, folds[1].Train[20])
}

func TestBlockedFoldsErrors(t *testing.T) {
	_, err := BlockedFolds(100, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = BlockedFolds(100, 5, -1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = BlockedFolds(3, 5, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = BlockedFolds(20, 2, 10)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
