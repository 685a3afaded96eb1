package opt

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// Variant selects the mayfly algorithm flavour.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantDESMA    Variant = "desma"
)

// MayflyAdapter wraps the external mayfly library behind the Optimizer
// interface.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
	variant  Variant
}

// NewMayfly creates a standard mayfly optimizer.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		variant:  VariantStandard,
	}
}

// NewMayflyVariant creates an optimizer running the named variant.
func NewMayflyVariant(variant Variant, maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		variant:  variant,
	}
}

// Run executes the mayfly optimization. Every dimension is bounded by
// lower[0] and upper[0]; the remaining entries of lower and upper are not
// read.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	var config *mayfly.Config
	switch m.variant {
	case VariantDESMA:
		config = mayfly.NewDESMAConfig()
	default:
		config = mayfly.NewDefaultConfig()
	}

	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		fallback := make([]float64, dim)
		return fallback, eval(fallback)
	}
	return result.GlobalBest.Position, result.GlobalBest.Cost
}
