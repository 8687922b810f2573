package pot

// splineEqDist computes natural-cubic-spline second derivatives for samples y
// on an equidistant grid with spacing step. yp1 and ypn are the boundary
// first derivatives; a value >= naturalGradient selects a natural boundary
// (zero second derivative) instead. The result is written into y2.
func splineEqDist(step float64, y []float64, yp1, ypn float64, y2 []float64) {
	n := len(y)
	if n < 2 {
		panic("pot: spline needs at least 2 samples")
	}
	u := make([]float64, n)

	if yp1 >= naturalGradient {
		y2[0] = 0
		u[0] = 0
	} else {
		y2[0] = -0.5
		u[0] = (3.0 / step) * ((y[1]-y[0])/step - yp1)
	}

	for i := 1; i < n-1; i++ {
		p := 0.5*y2[i-1] + 2.0
		y2[i] = -0.5 / p
		u[i] = (y[i+1] - 2.0*y[i] + y[i-1]) / step
		u[i] = (3.0*u[i]/step - 0.5*u[i-1]) / p
	}

	var qn, un float64
	if ypn >= naturalGradient {
		qn = 0
		un = 0
	} else {
		qn = 0.5
		un = (3.0 / step) * (ypn - (y[n-1]-y[n-2])/step)
	}
	y2[n-1] = (un - qn*u[n-2]) / (qn*y2[n-2] + 1.0)
	for i := n - 2; i >= 0; i-- {
		y2[i] = y2[i]*y2[i+1] + u[i]
	}
}

// SplineInto computes second derivatives for every function of the table,
// reading sample values and boundary gradients from values and writing the
// result into d2. Both buffers use the table's flat layout; passing external
// buffers lets evaluator snapshots keep their own cache without touching the
// live table.
func (t *Table) SplineInto(values, d2 []float64) {
	if len(values) != len(t.Values) || len(d2) != len(t.Values) {
		panic("pot: snapshot buffer length does not match table length")
	}
	for i := range t.First {
		first, last := t.First[i], t.Last[i]
		splineEqDist(t.Step[i], values[first:last+1], values[first-2], values[first-1], d2[first:last+1])
	}
}

// RebuildSplineCache recomputes the table's second-derivative cache from its
// current values. Must be called after any value mutation and before any
// interpolated evaluation.
func (t *Table) RebuildSplineCache() {
	t.SplineInto(t.Values, t.D2Tab)
	t.splineFresh = true
}

// SplintWith evaluates function fn at x by cubic-spline interpolation over
// the given snapshot buffers.
func (t *Table) SplintWith(values, d2 []float64, fn int, x float64) float64 {
	first := t.First[fn]
	rr := (x - t.Begin[fn]) * t.InvStep[fn]
	k := int(rr)
	if k < 0 {
		k = 0
	}
	if max := t.Last[fn] - first - 1; k > max {
		k = max
	}
	b := rr - float64(k)
	a := 1.0 - b
	step2 := t.Step[fn] * t.Step[fn]
	y0, y1 := values[first+k], values[first+k+1]
	d0, d1 := d2[first+k], d2[first+k+1]
	return a*y0 + b*y1 + ((a*a*a-a)*d0+(b*b*b-b)*d1)*step2/6.0
}

// SplintGradWith evaluates function fn and its first derivative at x over
// the given snapshot buffers.
func (t *Table) SplintGradWith(values, d2 []float64, fn int, x float64) (val, grad float64) {
	first := t.First[fn]
	rr := (x - t.Begin[fn]) * t.InvStep[fn]
	k := int(rr)
	if k < 0 {
		k = 0
	}
	if max := t.Last[fn] - first - 1; k > max {
		k = max
	}
	b := rr - float64(k)
	a := 1.0 - b
	step2 := t.Step[fn] * t.Step[fn]
	y0, y1 := values[first+k], values[first+k+1]
	d0, d1 := d2[first+k], d2[first+k+1]
	val = a*y0 + b*y1 + ((a*a*a-a)*d0+(b*b*b-b)*d1)*step2/6.0
	grad = (y1-y0)*t.InvStep[fn] + ((3.0*b*b-1.0)*d1-(3.0*a*a-1.0)*d0)*t.Step[fn]/6.0
	return val, grad
}

// Eval evaluates function fn at x using the table's own spline cache.
// The cache must be fresh; callers mutating values must call
// RebuildSplineCache first.
func (t *Table) Eval(fn int, x float64) float64 {
	if !t.splineFresh {
		panic("pot: spline cache is stale, call RebuildSplineCache after mutating values")
	}
	return t.SplintWith(t.Values, t.D2Tab, fn, x)
}

// EvalDeriv evaluates function fn and its first derivative at x using the
// table's own spline cache.
func (t *Table) EvalDeriv(fn int, x float64) (float64, float64) {
	if !t.splineFresh {
		panic("pot: spline cache is stale, call RebuildSplineCache after mutating values")
	}
	return t.SplintGradWith(t.Values, t.D2Tab, fn, x)
}
