package tune

import (
	"log/slog"

	"github.com/cwbudde/stereomatch/internal/opt"
)

// Config drives a tuning run.
type Config struct {
	Iterations int   // optimizer iterations per restart
	PopSize    int   // optimizer population per restart
	Seed       int64 // base seed; restart i uses Seed+i
	Restarts   int   // independent optimizer runs

	Convergence ConvergenceConfig
}

// DefaultConfig returns the tune command defaults.
func DefaultConfig() Config {
	return Config{
		Iterations:  60,
		PopSize:     20,
		Seed:        42,
		Restarts:    4,
		Convergence: DefaultConvergenceConfig(),
	}
}

// Result is the outcome of a tuning run.
type Result struct {
	BestVector  []float64
	BestCost    float64
	InitialCost float64
	Restarts    int
	Evaluations int
	History     []float64
}

// Trace receives the best cost after each restart. Used by the tune
// command to stream progress into a trace file; may be nil.
type Trace func(restart int, cost float64, vector []float64)

// OptimizerFactory builds the optimizer for one restart. The default is
// the standard mayfly adapter.
type OptimizerFactory func(maxIters, popSize int, seed int64) opt.Optimizer

// Run searches the evaluator's parameter space with independent optimizer
// restarts, keeping the best vector across all of them. The convergence
// tracker stops restarting once improvements go stale. factory may be
// nil to use the default optimizer.
func Run(e *Evaluator, cfg Config, factory OptimizerFactory, trace Trace) *Result {
	if factory == nil {
		factory = opt.NewMayfly
	}
	initial := e.Cost([]float64{0.5, 0.5, 0.5})
	slog.Info("Starting parameter tuning",
		"iterations", cfg.Iterations,
		"pop_size", cfg.PopSize,
		"restarts", cfg.Restarts,
		"initial_cost", initial,
	)

	tracker := NewConvergenceTracker(cfg.Convergence)
	result := &Result{
		BestVector:  []float64{0.5, 0.5, 0.5},
		BestCost:    initial,
		InitialCost: initial,
	}

	lower, upper := e.Bounds()
	for restart := 0; restart < cfg.Restarts; restart++ {
		optimizer := factory(cfg.Iterations, cfg.PopSize, cfg.Seed+int64(restart))
		vector, cost := optimizer.Run(e.Cost, lower, upper, e.Dim())

		slog.Info("Tuning restart complete",
			"restart", restart,
			"cost", cost,
			"best_cost", result.BestCost,
		)
		if cost < result.BestCost {
			result.BestCost = cost
			result.BestVector = vector
		}
		result.Restarts = restart + 1
		result.History = append(result.History, cost)
		if trace != nil {
			trace(restart, cost, vector)
		}

		if tracker.Update(cost) {
			break
		}
	}

	result.Evaluations = e.Evaluations()
	slog.Info("Tuning complete",
		"best_cost", result.BestCost,
		"initial_cost", result.InitialCost,
		"restarts", result.Restarts,
		"evaluations", result.Evaluations,
	)
	return result
}
