package pot

import (
	"fmt"
)

// naturalGradient marks a boundary-gradient slot as "no gradient given";
// the spline setup then uses a natural boundary (zero second derivative).
const naturalGradient = 1e30

// gradSlots is the number of boundary-gradient slots reserved immediately
// before each function's first sample in the flat value buffer.
const gradSlots = 2

// GridSpec declares one function's sampling grid: N equally spaced points
// on [Begin, End].
type GridSpec struct {
	Begin float64
	End   float64
	N     int
}

// Table stores several independently gridded 1-D functions in one flat value
// buffer so the whole parameter vector can be optimized as a single array.
// Each function occupies Values[First[i]-2 : Last[i]+1]: two boundary-gradient
// slots followed by the sampled values. XCoord and D2Tab run parallel to
// Values; D2Tab holds the cached natural-cubic-spline second derivatives and
// is only meaningful after RebuildSplineCache.
type Table struct {
	Begin   []float64
	End     []float64
	Step    []float64
	InvStep []float64
	First   []int
	Last    []int

	Values []float64
	XCoord []float64
	D2Tab  []float64

	roles       []Role
	splineFresh bool
}

// New allocates a table for the given schema and grids. Sample values start
// at zero; gradient slots get their role defaults (natural left boundary and
// a clamped zero right gradient, both natural for embedding functions).
func New(schema Schema, grids []GridSpec) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	nfn := schema.NumFunctions()
	if len(grids) != nfn {
		return nil, &MalformedTableError{
			Function: -1,
			Reason:   fmt.Sprintf("schema declares %d functions but %d grids given", nfn, len(grids)),
		}
	}

	t := &Table{
		Begin:   make([]float64, nfn),
		End:     make([]float64, nfn),
		Step:    make([]float64, nfn),
		InvStep: make([]float64, nfn),
		First:   make([]int, nfn),
		Last:    make([]int, nfn),
		roles:   schema.Roles(),
	}

	length := 0
	for i, g := range grids {
		if g.N < 2 {
			return nil, &MalformedTableError{
				Function: i,
				Reason:   fmt.Sprintf("need at least 2 samples, got %d", g.N),
			}
		}
		if g.End <= g.Begin {
			return nil, &MalformedTableError{
				Function: i,
				Reason:   fmt.Sprintf("domain [%g, %g] has non-positive extent", g.Begin, g.End),
			}
		}
		t.Begin[i] = g.Begin
		t.End[i] = g.End
		t.Step[i] = (g.End - g.Begin) / float64(g.N-1)
		t.InvStep[i] = 1.0 / t.Step[i]

		if i == 0 {
			t.First[i] = gradSlots
		} else {
			t.First[i] = t.Last[i-1] + gradSlots + 1
		}
		t.Last[i] = t.First[i] + g.N - 1
		length = t.Last[i] + 1
	}

	t.Values = make([]float64, length)
	t.XCoord = make([]float64, length)
	t.D2Tab = make([]float64, length)

	for i := range grids {
		t.Values[t.First[i]-2] = naturalGradient
		if t.roles[i] == RoleEmbedding {
			t.Values[t.First[i]-1] = naturalGradient
		}
		for j := t.First[i]; j <= t.Last[i]; j++ {
			t.XCoord[j] = t.Begin[i] + float64(j-t.First[i])*t.Step[i]
		}
	}

	return t, nil
}

// Load constructs a table and fills in sample values (one slice per function)
// and, when hasGradients is true, the boundary-gradient pairs.
func Load(schema Schema, grids []GridSpec, values [][]float64, gradients [][2]float64, hasGradients bool) (*Table, error) {
	t, err := New(schema, grids)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumFunctions() {
		return nil, &MalformedTableError{
			Function: -1,
			Reason:   fmt.Sprintf("got value blocks for %d functions, table has %d", len(values), t.NumFunctions()),
		}
	}
	for i, vals := range values {
		n := t.NumSamples(i)
		if len(vals) != n {
			return nil, &MalformedTableError{
				Function: i,
				Reason:   fmt.Sprintf("declared %d samples but %d values given", n, len(vals)),
			}
		}
		copy(t.Values[t.First[i]:t.Last[i]+1], vals)
		if hasGradients {
			if len(gradients) != t.NumFunctions() {
				return nil, &MalformedTableError{
					Function: i,
					Reason:   "gradients requested but no gradient pair given",
				}
			}
			t.Values[t.First[i]-2] = gradients[i][0]
			t.Values[t.First[i]-1] = gradients[i][1]
		}
	}
	t.RebuildSplineCache()
	return t, nil
}

// NumFunctions returns the number of sampled functions.
func (t *Table) NumFunctions() int { return len(t.First) }

// NumSamples returns function i's sample count.
func (t *Table) NumSamples(i int) int { return t.Last[i] - t.First[i] + 1 }

// Len returns the flat buffer length (samples plus gradient slots).
func (t *Table) Len() int { return len(t.Values) }

// Role returns function i's role.
func (t *Table) Role(i int) Role { return t.roles[i] }

// Roles returns one role per function, in table order.
func (t *Table) Roles() []Role { return append([]Role(nil), t.roles...) }

func (t *Table) checkSlot(fn, slot int) {
	if fn < 0 || fn >= len(t.First) {
		panic(fmt.Sprintf("pot: function index %d out of range [0, %d)", fn, len(t.First)))
	}
	if slot < 0 || slot >= t.NumSamples(fn) {
		panic(fmt.Sprintf("pot: slot %d out of range [0, %d) for function %d", slot, t.NumSamples(fn), fn))
	}
}

// ValueAt returns function fn's sampled value at the given slot.
// Panics if fn or slot is out of range.
func (t *Table) ValueAt(fn, slot int) float64 {
	t.checkSlot(fn, slot)
	return t.Values[t.First[fn]+slot]
}

// SetValue overwrites one sampled value and invalidates the spline cache.
// Panics if fn or slot is out of range.
func (t *Table) SetValue(fn, slot int, v float64) {
	t.checkSlot(fn, slot)
	t.Values[t.First[fn]+slot] = v
	t.splineFresh = false
}

// GradLeft returns function fn's left boundary gradient slot.
func (t *Table) GradLeft(fn int) float64 { return t.Values[t.First[fn]-2] }

// GradRight returns function fn's right boundary gradient slot.
func (t *Table) GradRight(fn int) float64 { return t.Values[t.First[fn]-1] }

// SetValues replaces the whole flat buffer (gradient slots included) and
// invalidates the spline cache. The source length must match the table.
func (t *Table) SetValues(src []float64) {
	if len(src) != len(t.Values) {
		panic(fmt.Sprintf("pot: value vector length %d does not match table length %d", len(src), len(t.Values)))
	}
	copy(t.Values, src)
	t.splineFresh = false
}

// CopyValues returns an independent copy of the flat value buffer, suitable
// as an optimizer parameter vector or an evaluator snapshot.
func (t *Table) CopyValues() []float64 {
	return append([]float64(nil), t.Values...)
}

// Clone returns a deep copy sharing no storage with the receiver.
func (t *Table) Clone() *Table {
	c := &Table{
		Begin:       append([]float64(nil), t.Begin...),
		End:         append([]float64(nil), t.End...),
		Step:        append([]float64(nil), t.Step...),
		InvStep:     append([]float64(nil), t.InvStep...),
		First:       append([]int(nil), t.First...),
		Last:        append([]int(nil), t.Last...),
		Values:      append([]float64(nil), t.Values...),
		XCoord:      append([]float64(nil), t.XCoord...),
		D2Tab:       append([]float64(nil), t.D2Tab...),
		roles:       append([]Role(nil), t.roles...),
		splineFresh: t.splineFresh,
	}
	return c
}

// Validate asserts the layout invariants: positive steps, ordered slot
// ranges, and exactly two gradient slots between consecutive functions.
func (t *Table) Validate() error {
	for i := range t.First {
		if t.Step[i] <= 0 {
			return &MalformedTableError{Function: i, Reason: fmt.Sprintf("non-positive step %g", t.Step[i])}
		}
		if t.First[i] >= t.Last[i] {
			return &MalformedTableError{Function: i, Reason: fmt.Sprintf("slot range [%d, %d] holds fewer than 2 samples", t.First[i], t.Last[i])}
		}
		if i == 0 {
			if t.First[i] != gradSlots {
				return &MalformedTableError{Function: i, Reason: fmt.Sprintf("first function must start at slot %d, got %d", gradSlots, t.First[i])}
			}
		} else if t.First[i] != t.Last[i-1]+gradSlots+1 {
			return &MalformedTableError{Function: i, Reason: fmt.Sprintf("slot range overlaps or leaves a gap after function %d", i-1)}
		}
	}
	if n := len(t.First); n > 0 && t.Last[n-1]+1 != len(t.Values) {
		return &MalformedTableError{Function: -1, Reason: "buffer length does not match final slot range"}
	}
	return nil
}
