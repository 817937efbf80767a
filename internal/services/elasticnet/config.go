package elasticnet

import (
	"fmt"
	"runtime"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Tie-breaking policies for lambda selection.
const (
	TieBreakMax      = "max"
	TieBreakSparsest = "sparsest"
)

var validate = validator.New()

// Config controls the coordinate-descent engine and the cross-validated path.
// Zero-valued fields take the defaults below when passed through Normalize.
type Config struct {
	// Alpha mixes the penalties: 1 is the lasso, values near 0 approach ridge.
	Alpha         float64 `yaml:"alpha" json:"alpha" validate:"gt=0,lte=1"`
	NFolds        int     `yaml:"n_folds" json:"n_folds" default:"10" validate:"gte=2"`
	NLambdas      int     `yaml:"n_lambdas" json:"n_lambdas" default:"50" validate:"gte=1"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations" default:"1000" validate:"gte=1"`
	Tolerance     float64 `yaml:"tolerance" json:"tolerance" default:"1e-9" validate:"gt=0"`
	// LambdaRatio is lambda_min / lambda_max.
	LambdaRatio  float64 `yaml:"lambda_ratio" json:"lambda_ratio" default:"1e-4" validate:"gt=0,lt=1"`
	TieBreak     string  `yaml:"tie_break" json:"tie_break" default:"max" validate:"oneof=max sparsest"`
	TieTolerance float64 `yaml:"tie_tolerance" json:"tie_tolerance" validate:"gte=0"`
	// Workers bounds concurrent fold jobs; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
}

// DefaultConfig returns a lasso configuration with every default applied.
func DefaultConfig() Config {
	c := Config{Alpha: 1}
	_ = defaults.Set(&c)
	return c
}

// Normalize fills defaults and validates the result.
func (c *Config) Normalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c.Validate()
}

// Validate checks the configuration without touching defaults.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
