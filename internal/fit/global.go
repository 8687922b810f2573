package fit

import (
	"log/slog"
	"math"

	"github.com/tablefit/tablefit/internal/opt"
	"github.com/tablefit/tablefit/internal/pot"
)

// RunGlobal fits the table's free parameters with a bounded global-search
// engine instead of the least-squares loop, searching a box of the given
// half-width around the current values. Useful to escape a bad starting
// table before refining with Run.
func RunGlobal(table *pot.Table, im *pot.IndexMap, obj opt.Objective, optimizer opt.Optimizer, spread float64) (*FitResult, error) {
	dim := im.Len()
	base := table.CopyValues()

	initialCost, _ := obj.Evaluate(base)
	slog.Info("Starting global search", "free_parameters", dim, "spread", spread)

	if dim == 0 {
		return &FitResult{
			Table:       table,
			InitialCost: initialCost,
			FinalCost:   initialCost,
			Reason:      opt.Converged,
		}, nil
	}

	// The engine takes scalar bounds shared by all dimensions, so the box
	// must cover every free parameter's neighborhood.
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, idx := range im.Free {
		lo = math.Min(lo, base[idx]-spread)
		hi = math.Max(hi, base[idx]+spread)
	}
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = lo
		upper[i] = hi
	}

	// Each call gets its own snapshot so the engine may evaluate in
	// parallel without sharing mutable state.
	eval := func(free []float64) float64 {
		scratch := append([]float64(nil), base...)
		for i, idx := range im.Free {
			scratch[idx] = free[i]
		}
		cost, _ := obj.Evaluate(scratch)
		return cost
	}

	bestFree, bestCost := optimizer.Run(eval, lower, upper, dim)

	// Global search can end worse than it started; keep the better vector.
	final := append([]float64(nil), base...)
	finalCost := initialCost
	if bestCost < initialCost {
		for i, idx := range im.Free {
			final[idx] = bestFree[i]
		}
		finalCost = bestCost
	}
	table.SetValues(final)
	table.RebuildSplineCache()

	slog.Info("Global search complete", "initial_cost", initialCost, "final_cost", finalCost)

	return &FitResult{
		Table:       table,
		InitialCost: initialCost,
		FinalCost:   finalCost,
		Reason:      opt.BudgetExhausted,
	}, nil
}
