package opt

import (
	"fmt"
	"math"
)

// SingularMatrixError reports a (near-)singular normal-equation system.
// Recoverable: the optimizer falls back to a steepest-descent step.
type SingularMatrixError struct {
	Col int
}

func (e *SingularMatrixError) Error() string {
	if e.Col < 0 {
		return "singular matrix: iterative refinement failed to reduce the residual"
	}
	return fmt.Sprintf("singular matrix in LU decomposition (column %d)", e.Col)
}

func (e *SingularMatrixError) Is(target error) bool {
	_, ok := target.(*SingularMatrixError)
	return ok
}

const luTiny = 1e-20

// maxRefine bounds iterative refinement; more passes oscillate on
// ill-conditioned systems instead of improving the solution.
const maxRefine = 2

// luDecompose factorizes the square matrix a in place into its LU form with
// partial pivoting (Crout's method with implicit scaling). The returned
// permutation records the row interchanges for luSolve.
func luDecompose(a [][]float64) (perm []int, err error) {
	n := len(a)
	perm = make([]int, n)
	scale := make([]float64, n)

	for i := 0; i < n; i++ {
		big := 0.0
		for j := 0; j < n; j++ {
			if v := math.Abs(a[i][j]); v > big {
				big = v
			}
		}
		if big == 0 {
			return nil, &SingularMatrixError{Col: i}
		}
		scale[i] = 1.0 / big
	}

	for j := 0; j < n; j++ {
		for i := 0; i < j; i++ {
			sum := a[i][j]
			for k := 0; k < i; k++ {
				sum -= a[i][k] * a[k][j]
			}
			a[i][j] = sum
		}
		big := 0.0
		imax := j
		for i := j; i < n; i++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= a[i][k] * a[k][j]
			}
			a[i][j] = sum
			if v := scale[i] * math.Abs(sum); v >= big {
				big = v
				imax = i
			}
		}
		if j != imax {
			a[imax], a[j] = a[j], a[imax]
			scale[imax] = scale[j]
		}
		perm[j] = imax
		if a[j][j] == 0 {
			a[j][j] = luTiny
		}
		if j != n-1 {
			d := 1.0 / a[j][j]
			for i := j + 1; i < n; i++ {
				a[i][j] *= d
			}
		}
	}
	return perm, nil
}

// luSolve solves lu·x = b for a matrix factorized by luDecompose,
// overwriting b with the solution.
func luSolve(lu [][]float64, perm []int, b []float64) {
	n := len(lu)
	ii := -1
	for i := 0; i < n; i++ {
		ip := perm[i]
		sum := b[ip]
		b[ip] = b[i]
		if ii >= 0 {
			for j := ii; j < i; j++ {
				sum -= lu[i][j] * b[j]
			}
		} else if sum != 0 {
			ii = i
		}
		b[i] = sum
	}
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= lu[i][j] * b[j]
		}
		b[i] = sum / lu[i][i]
	}
}

// luRefine performs one pass of iterative improvement on the solution x of
// a·x = b. The residual is accumulated with fused multiply-adds plus Kahan
// compensation to recover the extra precision the correction step needs.
// Returns the max-norm of the computed residual.
func luRefine(a, lu [][]float64, perm []int, b, x []float64) float64 {
	n := len(a)
	r := make([]float64, n)
	norm := 0.0
	for i := 0; i < n; i++ {
		sum := -b[i]
		comp := 0.0
		for j := 0; j < n; j++ {
			y := math.FMA(a[i][j], x[j], -comp)
			t := sum + y
			comp = (t - sum) - y
			sum = t
		}
		r[i] = sum
		if v := math.Abs(sum); v > norm {
			norm = v
		}
	}
	luSolve(lu, perm, r)
	for i := 0; i < n; i++ {
		x[i] -= r[i]
	}
	return norm
}

// solveLinear solves a·x = b by LU decomposition with partial pivoting and
// bounded iterative refinement. a and b are left untouched. When refinement
// fails to reduce the residual the system is reported as singular so the
// caller can discard the step and fall back.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	lu := make([][]float64, n)
	for i := range a {
		lu[i] = append([]float64(nil), a[i]...)
	}
	perm, err := luDecompose(lu)
	if err != nil {
		return nil, err
	}

	x := append([]float64(nil), b...)
	luSolve(lu, perm, x)

	bnorm := 0.0
	for _, v := range b {
		if av := math.Abs(v); av > bnorm {
			bnorm = av
		}
	}
	// residuals at the rounding floor of b do not indicate trouble
	floor := 1e-12 * bnorm

	norm0 := luRefine(a, lu, perm, b, x)
	if norm0 <= floor {
		return x, nil
	}
	for pass := 1; pass < maxRefine; pass++ {
		norm := luRefine(a, lu, perm, b, x)
		if norm >= norm0 && norm > floor {
			return nil, &SingularMatrixError{Col: -1}
		}
		if norm <= floor {
			break
		}
		norm0 = norm
	}
	return x, nil
}
