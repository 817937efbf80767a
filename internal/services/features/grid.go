package features

import (
	"errors"
	"fmt"

	"FinSelect/internal/domain/models"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidGrid is returned for grid configurations that are malformed or that
// would generate duplicate indicator specs.
var ErrInvalidGrid = errors.New("features: invalid indicator grid")

var validate = validator.New()

// GridConfig enumerates candidate indicators.
type GridConfig = models.IndicatorGrid

// MACDParams is one (fast, slow, signal) triple.
type MACDParams = models.MACDParams

// DefaultGrid is a small grid covering every indicator family.
func DefaultGrid() GridConfig {
	return GridConfig{
		LookbackInc: 5,
		NLong:       4,
		NShort:      3,
		CrossoverTypes: []models.IndicatorKind{
			models.KindMA, models.KindEMA, models.KindROC, models.KindRSICross, models.KindMACDCross,
		},
		RSIPeriods: []int{14},
		MACD:       []MACDParams{{Fast: 12, Slow: 26, Signal: 9}},
	}
}

// ValidateGrid rejects configurations that cannot produce a duplicate-free grid.
func ValidateGrid(g GridConfig) error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGrid, err)
	}
	if len(g.CrossoverTypes) > 0 {
		if g.LookbackInc < 1 || g.NLong < 1 || g.NShort < 1 {
			return fmt.Errorf("%w: crossovers need lookback_inc, n_long and n_short >= 1", ErrInvalidGrid)
		}
		// Shorts for the smallest long must be distinct and below it.
		if g.LookbackInc < g.NShort+1 {
			return fmt.Errorf("%w: lookback_inc %d must be at least n_short+1 (%d)", ErrInvalidGrid, g.LookbackInc, g.NShort+1)
		}
	}
	seen := make(map[MACDParams]struct{}, len(g.MACD))
	for _, m := range g.MACD {
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: duplicate macd triple %d/%d/%d", ErrInvalidGrid, m.Fast, m.Slow, m.Signal)
		}
		seen[m] = struct{}{}
	}
	return nil
}

// GenerateSpecs enumerates crossovers (per type, long then short), then RSI
// periods, then MACD triples. The order defines feature matrix columns.
func GenerateSpecs(g GridConfig) ([]models.IndicatorSpec, error) {
	if err := ValidateGrid(g); err != nil {
		return nil, err
	}
	specs := make([]models.IndicatorSpec, 0, g.ExpectedCount())
	for _, kind := range g.CrossoverTypes {
		for il := 0; il < g.NLong; il++ {
			long := (il + 1) * g.LookbackInc
			for is := 0; is < g.NShort; is++ {
				short := long * (is + 1) / (g.NShort + 1)
				if short < 1 {
					short = 1
				}
				spec, _ := models.Crossover(kind, short, long)
				specs = append(specs, spec)
			}
		}
	}
	for _, p := range g.RSIPeriods {
		specs = append(specs, models.RSI(p))
	}
	for _, m := range g.MACD {
		specs = append(specs, models.MACD(m.Fast, m.Slow, m.Signal))
	}
	return specs, nil
}

// MaxLookback is the largest lookback over specs, or 0 for none.
func MaxLookback(specs []models.IndicatorSpec) int {
	m := 0
	for _, s := range specs {
		if l := s.Lookback(); l > m {
			m = l
		}
	}
	return m
}

// Names returns the column labels of specs.
func Names(specs []models.IndicatorSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name()
	}
	return out
}
