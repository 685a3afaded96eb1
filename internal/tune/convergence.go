package tune

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls early stopping across tuning restarts.
type ConvergenceConfig struct {
	// Enabled turns the detection on.
	Enabled bool

	// Patience is the number of restarts without significant improvement
	// tolerated before stopping.
	Patience int

	// Threshold is the minimum relative improvement that counts as
	// progress, e.g. 0.01 for 1%.
	Threshold float64
}

// DefaultConvergenceConfig returns the defaults used by the tune command.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 0.01,
	}
}

// ConvergenceTracker records per-restart best costs and reports when the
// search has gone stale.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	bestCost        float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config.
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the best cost of a completed restart and returns true
// when the search should stop early.
func (c *ConvergenceTracker) Update(cost float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, cost)
	if cost < c.bestCost {
		c.bestCost = cost
	}

	if len(c.history) == 1 {
		c.lastSignificant = cost
		return false
	}

	improvement := (c.lastSignificant - cost) / c.lastSignificant
	if c.lastSignificant == 0 {
		improvement = 0
	}
	if improvement >= c.config.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		return false
	}

	c.staleCount++
	slog.Debug("No significant tuning improvement",
		"cost", cost,
		"last_significant", c.lastSignificant,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)
	if c.staleCount >= c.config.Patience {
		slog.Info("Tuning converged, stopping early",
			"restarts", len(c.history),
			"best_cost", c.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the best cost seen so far.
func (c *ConvergenceTracker) BestCost() float64 { return c.bestCost }

// History returns a copy of the per-restart cost history.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}
