package elasticnet

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// linearData draws x ~ N(0,1) and y = intercept + x*coef + noise*N(0,1).
func linearData(seed int64, n int, coef []float64, intercept, noise float64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	p := len(coef)
	x := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := intercept
		for j := 0; j < p; j++ {
			xij := rng.NormFloat64()
			x.Set(i, j, xij)
			v += coef[j] * xij
		}
		y[i] = v + noise*rng.NormFloat64()
	}
	return x, y
}

func standardizedDesign(x mat.Matrix, y []float64) (*Standardization, mat.Matrix, *Design, error) {
	std, err := FitStandardization(x)
	if err != nil {
		return nil, nil, nil, err
	}
	xs, err := std.Transform(x)
	if err != nil {
		return nil, nil, nil, err
	}
	d, err := NewDesign(xs, y, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return std, xs, d, nil
}
