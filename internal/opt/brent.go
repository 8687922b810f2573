package opt

import (
	"fmt"
	"math"
)

// NoMinimumFoundError reports a bracketing failure: the objective stayed
// monotone over the whole expansion range. Recoverable: the optimizer skips
// the offending search direction.
type NoMinimumFoundError struct {
	A, B float64
}

func (e *NoMinimumFoundError) Error() string {
	return fmt.Sprintf("no 1-D minimum bracketed from interval (%g, %g)", e.A, e.B)
}

func (e *NoMinimumFoundError) Is(target error) bool {
	_, ok := target.(*NoMinimumFoundError)
	return ok
}

const (
	gold          = 1.618034 // golden-ratio growth factor for bracket expansion
	glimit        = 100.0    // max parabolic-step magnification per expansion
	bracketTiny   = 1e-20
	maxBracketIts = 60
)

// Bracket expands the initial interval (ax, bx) downhill until it holds
// three points with f(bx) < f(ax) and f(bx) < f(cx), so a local minimum is
// guaranteed inside (ax, cx). Fails with NoMinimumFoundError if the function
// is still monotone after the expansion budget is spent.
func Bracket(f func(float64) float64, ax, bx float64) (a, b, c, fa, fb, fc float64, err error) {
	a, b = ax, bx
	fa, fb = f(a), f(b)
	if fb > fa {
		// swap so we walk downhill from a to b
		a, b = b, a
		fa, fb = fb, fa
	}
	c = b + gold*(b-a)
	fc = f(c)

	for it := 0; fb >= fc; it++ {
		if it >= maxBracketIts {
			return 0, 0, 0, 0, 0, 0, &NoMinimumFoundError{A: ax, B: bx}
		}
		// parabolic extrapolation through a, b, c
		r := (b - a) * (fb - fc)
		q := (b - c) * (fb - fa)
		denom := q - r
		if math.Abs(denom) < bracketTiny {
			denom = math.Copysign(bracketTiny, denom)
		}
		u := b - ((b-c)*q-(b-a)*r)/(2.0*denom)
		ulim := b + glimit*(c-b)
		var fu float64

		switch {
		case (b-u)*(u-c) > 0: // u between b and c
			fu = f(u)
			if fu < fc {
				return b, u, c, fb, fu, fc, nil
			} else if fu > fb {
				return a, b, u, fa, fb, fu, nil
			}
			u = c + gold*(c-b)
			fu = f(u)
		case (c-u)*(u-ulim) > 0: // u between c and the step limit
			fu = f(u)
			if fu < fc {
				b, c, u = c, u, u+gold*(u-c)
				fb, fc, fu = fc, fu, f(u)
			}
		case (u-ulim)*(ulim-c) >= 0: // clamp to the step limit
			u = ulim
			fu = f(u)
		default:
			u = c + gold*(c-b)
			fu = f(u)
		}
		a, b, c = b, c, u
		fa, fb, fc = fb, fc, fu
	}
	return a, b, c, fa, fb, fc, nil
}

const (
	brentIts  = 100
	cgold     = 0.3819660 // golden-section ratio
	brentZeps = 1e-12
)

// Brent locates the minimum of f inside the bracket (ax, bx, cx) by
// parabolic interpolation with golden-section fallback. tol is relative,
// scaled by the magnitude of the search variable. It returns the best point
// and the runner-up, which callers use to seed the next bracketing pass.
func Brent(f func(float64) float64, ax, bx, cx, fbx, tol float64) (xmin, fmin, xmin2, fmin2 float64) {
	a := math.Min(ax, cx)
	b := math.Max(ax, cx)

	x, w, v := bx, bx, bx
	fx, fw, fv := fbx, fbx, fbx
	var d, e float64

	for it := 0; it < brentIts; it++ {
		xm := 0.5 * (a + b)
		tol1 := tol*math.Abs(x) + brentZeps
		tol2 := 2.0 * tol1
		if math.Abs(x-xm) <= tol2-0.5*(b-a) {
			break
		}
		if math.Abs(e) > tol1 {
			// fit a parabola through x, v, w
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2.0 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			etemp := e
			e = d
			if math.Abs(p) >= math.Abs(0.5*q*etemp) || p <= q*(a-x) || p >= q*(b-x) {
				if x >= xm {
					e = a - x
				} else {
					e = b - x
				}
				d = cgold * e
			} else {
				d = p / q
				u := x + d
				if u-a < tol2 || b-u < tol2 {
					d = math.Copysign(tol1, xm-x)
				}
			}
		} else {
			if x >= xm {
				e = a - x
			} else {
				e = b - x
			}
			d = cgold * e
		}
		var u float64
		if math.Abs(d) >= tol1 {
			u = x + d
		} else {
			u = x + math.Copysign(tol1, d)
		}
		fu := f(u)
		if fu <= fx {
			if u >= x {
				a = x
			} else {
				b = x
			}
			v, w, x = w, x, u
			fv, fw, fx = fw, fx, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, w = w, u
				fv, fw = fw, fu
			} else if fu <= fv || v == x || v == w {
				v = u
				fv = fu
			}
		}
	}
	// a bracket already tight on entry leaves w at x, which would hand
	// callers a degenerate interval to seed the next pass from
	if w == x {
		tol1 := tol*math.Abs(x) + brentZeps
		w = x + tol1
		if w >= b {
			w = x - tol1
		}
		fw = f(w)
	}
	return x, fx, w, fw
}
