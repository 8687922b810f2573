package opt

import (
	"gonum.org/v1/gonum/floats"
)

// lineTol is the relative tolerance for the 1-D refinement inside a line
// minimization; tighter than this wastes evaluator calls without moving the
// outer iteration.
const lineTol = 1e-10

// LineMin minimizes g(s) = f(p + s·dir) over the step length s, starting
// from the interval (0, 1) so a full Gauss-Newton step is the first
// candidate. Returns the best and second-best step lengths with their
// costs; the runner-up seeds the next bracketing pass. p and dir are left
// untouched. Fails with NoMinimumFoundError when no bracket exists along
// dir.
func LineMin(f func([]float64) float64, p, dir []float64, f0 float64) (smin, fmin, smin2, fmin2 float64, err error) {
	scratch := make([]float64, len(p))
	g := func(s float64) float64 {
		if s == 0 {
			return f0
		}
		floats.AddScaledTo(scratch, p, s, dir)
		return f(scratch)
	}

	a, b, c, _, fb, _, err := Bracket(g, 0, 1)
	if err != nil {
		return 0, f0, 0, f0, err
	}
	smin, fmin, smin2, fmin2 = Brent(g, a, b, c, fb, lineTol)
	return smin, fmin, smin2, fmin2, nil
}
