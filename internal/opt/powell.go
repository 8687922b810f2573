package opt

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

// TerminationReason states why the least-squares loop stopped.
type TerminationReason int

const (
	// Converged: the relative cost improvement stayed below tolerance for
	// several consecutive iterations.
	Converged TerminationReason = iota
	// Stalled: no search direction admitted a decreasing step in a full
	// pass over the direction set. Reported, not retried.
	Stalled
	// BudgetExhausted: the outer-iteration cap was reached.
	BudgetExhausted
)

func (r TerminationReason) String() string {
	switch r {
	case Converged:
		return "converged"
	case Stalled:
		return "stalled"
	case BudgetExhausted:
		return "budget-exhausted"
	}
	return fmt.Sprintf("termination(%d)", int(r))
}

// PowellConfig tunes the least-squares loop.
type PowellConfig struct {
	// MaxIter caps the number of outer iterations.
	MaxIter int
	// Tolerance is the relative cost-improvement threshold below which an
	// iteration counts as stagnant.
	Tolerance float64
	// Patience is how many consecutive stagnant iterations declare
	// convergence.
	Patience int
	// Eps scales the finite-difference perturbation step.
	Eps float64
	// OnIteration, when set, observes every completed outer iteration.
	OnIteration func(iter int, cost float64, params []float64)
}

// DefaultPowellConfig returns the standard loop settings.
func DefaultPowellConfig() PowellConfig {
	return PowellConfig{
		MaxIter:   100,
		Tolerance: 1e-10,
		Patience:  3,
		Eps:       1e-6,
	}
}

// Result is the outcome of a least-squares run. Params is always the best
// parameter vector seen, whatever the termination reason: partial progress
// is never discarded.
type Result struct {
	Params      []float64
	Cost        float64
	InitialCost float64
	Iterations  int
	Reason      TerminationReason
}

// powellState carries the per-run working set: the current full parameter
// vector, the direction set over the free indices, and the sensitivity
// matrix filled by finite differences.
type powellState struct {
	obj     Objective
	freeIdx []int

	xi   []float64 // current full parameter vector
	res  []float64 // residuals at xi
	cost float64

	dirs  [][]float64 // n columns, each a direction over free indices
	gamma [][]float64 // m x n finite-difference sensitivities

	scratch []float64 // evaluation buffer for perturbed vectors
}

// RunPowell fits the free parameters of start against the objective using a
// conjugate-direction least-squares search: each outer iteration builds a
// finite-difference sensitivity matrix along the current direction set,
// solves the Gauss-Newton normal equations, line-minimizes along the
// proposed step, and folds the accepted step back into the direction set.
func RunPowell(obj Objective, start []float64, freeIdx []int, cfg PowellConfig) (*Result, error) {
	if cfg.MaxIter <= 0 {
		return nil, fmt.Errorf("powell: iteration budget must be positive, got %d", cfg.MaxIter)
	}
	if cfg.Patience <= 0 {
		cfg.Patience = 3
	}
	if cfg.Eps <= 0 {
		cfg.Eps = 1e-6
	}

	n := len(freeIdx)
	m := obj.NumResiduals()
	for _, idx := range freeIdx {
		if idx < 0 || idx >= len(start) {
			return nil, fmt.Errorf("powell: free index %d outside parameter vector of length %d", idx, len(start))
		}
	}

	st := &powellState{
		obj:     obj,
		freeIdx: freeIdx,
		xi:      append([]float64(nil), start...),
		scratch: make([]float64, len(start)),
	}
	st.cost, st.res = obj.Evaluate(st.xi)
	if len(st.res) != m {
		return nil, fmt.Errorf("powell: objective returned %d residuals, declared %d", len(st.res), m)
	}

	result := &Result{
		Params:      append([]float64(nil), st.xi...),
		Cost:        st.cost,
		InitialCost: st.cost,
		Reason:      Converged,
	}
	if n == 0 {
		slog.Info("No free parameters, nothing to fit", "cost", st.cost)
		return result, nil
	}

	st.dirs = identity(n)
	st.gamma = zeros(m, n)

	stale := 0
	for iter := 1; iter <= cfg.MaxIter; iter++ {
		prevCost := st.cost

		st.buildGamma(cfg.Eps)

		delta, dirSlot, err := st.proposeStep()
		if err != nil {
			return nil, err
		}

		moved := st.advance(delta)
		if !moved {
			// The Gauss-Newton step failed; sweep the direction set
			// before declaring a dead end.
			moved = st.sweepDirections()
			dirSlot = -1
		}
		if !moved {
			slog.Warn("No decreasing step along any direction, stopping",
				"iteration", iter, "cost", st.cost)
			result.Reason = Stalled
			result.Iterations = iter
			break
		}
		if dirSlot >= 0 {
			st.replaceDirection(dirSlot, delta)
		}

		if st.cost < result.Cost {
			result.Cost = st.cost
			copy(result.Params, st.xi)
		}
		result.Iterations = iter

		if cfg.OnIteration != nil {
			cfg.OnIteration(iter, st.cost, st.xi)
		}

		relImp := (prevCost - st.cost) / math.Max(prevCost, math.SmallestNonzeroFloat64)
		if relImp < cfg.Tolerance {
			stale++
		} else {
			stale = 0
		}
		slog.Debug("Outer iteration complete",
			"iteration", iter, "cost", st.cost, "relative_improvement", relImp)
		if stale >= cfg.Patience {
			result.Reason = Converged
			return result, nil
		}
		if iter == cfg.MaxIter {
			result.Reason = BudgetExhausted
		}
	}
	return result, nil
}

// buildGamma fills the sensitivity matrix: column k holds the
// finite-difference residual response to a small step along direction k.
func (st *powellState) buildGamma(eps float64) {
	m := len(st.gamma)
	for k := range st.dirs {
		h := eps * math.Max(scatterScale(st.xi, st.freeIdx, st.dirs[k]), 1.0)
		copy(st.scratch, st.xi)
		for j, idx := range st.freeIdx {
			st.scratch[idx] += h * st.dirs[k][j]
		}
		_, pres := st.obj.Evaluate(st.scratch)

		norm := 0.0
		for i := 0; i < m; i++ {
			st.gamma[i][k] = (pres[i] - st.res[i]) / h
			norm += st.gamma[i][k] * st.gamma[i][k]
		}
		if norm == 0 {
			slog.Warn("Search direction has no effect on residuals", "direction", k)
		}
	}
}

// proposeStep forms and solves the normal equations, returning the candidate
// step over the free indices and the direction-set slot carrying the largest
// solve coefficient, which an accepted step replaces. A singular system
// falls back to steepest descent along the single direction of largest
// sensitivity.
func (st *powellState) proposeStep() ([]float64, int, error) {
	n := len(st.dirs)
	m := len(st.gamma)

	lineqsys := zeros(n, n)
	p := make([]float64, n)
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			sum := 0.0
			for i := 0; i < m; i++ {
				sum += st.gamma[i][a] * st.gamma[i][b]
			}
			lineqsys[a][b] = sum
			lineqsys[b][a] = sum
		}
		for i := 0; i < m; i++ {
			p[a] -= st.gamma[i][a] * st.res[i]
		}
	}

	q, err := solveLinear(lineqsys, p)
	if err != nil {
		var sing *SingularMatrixError
		if !errors.As(err, &sing) {
			return nil, -1, err
		}
		slog.Warn("Normal equations are singular, falling back to steepest descent", "error", err)
		kbest := 0
		for k := 1; k < n; k++ {
			if math.Abs(p[k]) > math.Abs(p[kbest]) {
				kbest = k
			}
		}
		q = make([]float64, n)
		q[kbest] = math.Copysign(1.0, p[kbest])
	}

	// the slot to replace lives in direction-set coordinates, so it comes
	// from q rather than from the mixed step delta
	kmax := 0
	for k := 1; k < n; k++ {
		if math.Abs(q[k]) > math.Abs(q[kmax]) {
			kmax = k
		}
	}

	// candidate step in free-index space: delta = sum_k q_k * d_k
	delta := make([]float64, n)
	for k := range st.dirs {
		floats.AddScaled(delta, q[k], st.dirs[k])
	}
	return delta, kmax, nil
}

// advance line-minimizes the cost along delta and applies the step when it
// strictly decreases the cost.
func (st *powellState) advance(delta []float64) bool {
	dirFull := make([]float64, len(st.xi))
	for j, idx := range st.freeIdx {
		dirFull[idx] = delta[j]
	}

	smin, fmin, _, _, err := LineMin(st.evalCost, st.xi, dirFull, st.cost)
	if err != nil {
		slog.Warn("Line search found no minimum along proposed step", "error", err)
		return false
	}
	if fmin >= st.cost {
		return false
	}

	floats.AddScaled(st.xi, smin, dirFull)
	st.cost, st.res = st.obj.Evaluate(st.xi)
	return true
}

// sweepDirections tries each direction of the set in turn, taking the first
// one that admits a decreasing step. Used after the combined step failed;
// returning false means the loop is stalled.
func (st *powellState) sweepDirections() bool {
	dirFull := make([]float64, len(st.xi))
	for k := range st.dirs {
		for i := range dirFull {
			dirFull[i] = 0
		}
		for j, idx := range st.freeIdx {
			dirFull[idx] = st.dirs[k][j]
		}
		smin, fmin, _, _, err := LineMin(st.evalCost, st.xi, dirFull, st.cost)
		if err != nil || fmin >= st.cost {
			continue
		}
		floats.AddScaled(st.xi, smin, dirFull)
		st.cost, st.res = st.obj.Evaluate(st.xi)
		return true
	}
	return false
}

// replaceDirection swaps direction slot k for the normalized accepted step,
// keeping the set from drifting into linear dependence.
func (st *powellState) replaceDirection(k int, delta []float64) {
	norm := floats.Norm(delta, 2)
	if norm == 0 {
		return
	}
	d := st.dirs[k]
	for j := range d {
		d[j] = delta[j] / norm
	}
}

func (st *powellState) evalCost(p []float64) float64 {
	cost, _ := st.obj.Evaluate(p)
	return cost
}

// scatterScale returns the magnitude of the current parameters touched by
// the direction, used to keep finite-difference steps relative.
func scatterScale(xi []float64, freeIdx []int, dir []float64) float64 {
	scale := 0.0
	for j, idx := range freeIdx {
		if dir[j] != 0 {
			if v := math.Abs(xi[idx]); v > scale {
				scale = v
			}
		}
	}
	return scale
}

func identity(n int) [][]float64 {
	d := zeros(n, n)
	for i := 0; i < n; i++ {
		d[i][i] = 1
	}
	return d
}

func zeros(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
