package opt

// Optimizer defines a black-box scalar minimization algorithm
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// Objective is the least-squares objective contract: a pure function of the
// parameter vector returning the scalar weighted cost and the residual
// vector it is the sum of squares of. Repeated calls with identical input
// must return identical output; the caller relies on this for
// finite-difference correctness. Implementations may evaluate their
// residual components in parallel internally, but must never retain or
// mutate the parameter slice they are handed.
type Objective interface {
	Evaluate(params []float64) (cost float64, residuals []float64)
	NumResiduals() int
}
