// Package fit orchestrates a potential fit: it hands the table's free
// parameters to an optimization engine, tracks progress, and writes the best
// parameter vector back into the table.
package fit

import (
	"log/slog"

	"github.com/tablefit/tablefit/internal/opt"
	"github.com/tablefit/tablefit/internal/pot"
)

// Options tunes a fit run.
type Options struct {
	// Budget caps the number of outer iterations.
	Budget int
	// Tolerance is the relative improvement threshold for convergence.
	Tolerance float64
	// Eps scales finite-difference perturbations.
	Eps float64
	// OnIteration, when set, observes each completed outer iteration with
	// the current cost and full parameter vector.
	OnIteration func(iter int, cost float64, params []float64)
}

// FitResult holds the outcome of a fit. Table is the input table updated in
// place with the best parameter vector found, whatever the termination
// reason.
type FitResult struct {
	Table       *pot.Table
	InitialCost float64
	FinalCost   float64
	Iterations  int
	Reason      opt.TerminationReason
	History     []float64
}

// Run fits the table's free parameters against the objective using the
// least-squares engine. The optimizer owns the only mutable view of the
// parameter vector; the objective sees value snapshots only. On return the
// table holds the best parameters with a fresh spline cache.
func Run(table *pot.Table, im *pot.IndexMap, obj opt.Objective, opts Options) (*FitResult, error) {
	slog.Info("Starting least-squares fit",
		"free_parameters", im.Len(),
		"residuals", obj.NumResiduals(),
		"budget", opts.Budget,
	)

	tracker := NewCostTracker(opts.Tolerance, 0)
	cfg := opt.PowellConfig{
		MaxIter:   opts.Budget,
		Tolerance: opts.Tolerance,
		Patience:  3,
		Eps:       opts.Eps,
		OnIteration: func(iter int, cost float64, params []float64) {
			tracker.Update(cost)
			slog.Info("Fit iteration", "iteration", iter, "cost", cost)
			if opts.OnIteration != nil {
				opts.OnIteration(iter, cost, params)
			}
		},
	}

	res, err := opt.RunPowell(obj, table.CopyValues(), im.Free, cfg)
	if err != nil {
		return nil, err
	}

	table.SetValues(res.Params)
	table.RebuildSplineCache()

	slog.Info("Fit complete",
		"initial_cost", res.InitialCost,
		"final_cost", res.Cost,
		"iterations", res.Iterations,
		"reason", res.Reason.String(),
	)

	return &FitResult{
		Table:       table,
		InitialCost: res.InitialCost,
		FinalCost:   res.Cost,
		Iterations:  res.Iterations,
		Reason:      res.Reason,
		History:     tracker.History(),
	}, nil
}
