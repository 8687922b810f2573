package pot

import "fmt"

// PinPolicy controls which table slots are withheld from the free-parameter
// set beyond the per-function invariant flags. The defaults reproduce the
// gauge fixing required by coupled transfer/embedding layouts; models with
// different degeneracies can supply their own policy.
type PinPolicy struct {
	// PinCutoff fixes the last sample of every non-embedding function, so
	// the optimizer cannot move the value at the cutoff radius.
	PinCutoff bool
	// ClampFirst fixes the first sample of one designated coupling
	// function to remove the scale degeneracy between a coupled function
	// pair (f -> f/b, g -> b^2*g leaves the product invariant).
	// Negative means no function is clamped.
	ClampFirst int
	// RequireEmbeddingUnit rejects tables whose embedding functions do not
	// sample the point 1.0; fixing the remaining gauge freedom needs F'(1).
	RequireEmbeddingUnit bool
}

// DefaultPinPolicy returns the standard policy: cutoff samples pinned,
// embedding domains must contain 1.0, no coupling clamp.
func DefaultPinPolicy() PinPolicy {
	return PinPolicy{
		PinCutoff:            true,
		ClampFirst:           -1,
		RequireEmbeddingUnit: true,
	}
}

// GradBoth and friends are per-function gradient flags: bit 1 frees the left
// boundary-gradient slot for optimization, bit 0 the right one.
const (
	GradNone  = 0
	GradRight = 1
	GradLeft  = 2
	GradBoth  = 3
)

// IndexMap enumerates exactly the flat-buffer offsets that are free to vary
// during optimization. The order is deterministic: functions in table order,
// each function's gradient slots before its sample slots.
type IndexMap struct {
	Free []int
}

// Len returns the number of free parameters.
func (m *IndexMap) Len() int { return len(m.Free) }

// BuildIndexMap scans the table and collects the optimizable slots.
// invariant marks whole functions as fixed; gradient gives each function's
// gradient flags (ignored unless hasGradients); policy supplies the
// edge-pinning rules. Passing nil invariant or gradient slices treats every
// function as variable with no free gradient slots.
func BuildIndexMap(t *Table, invariant []bool, gradient []int, hasGradients bool, policy PinPolicy) (*IndexMap, error) {
	nfn := t.NumFunctions()
	if invariant == nil {
		invariant = make([]bool, nfn)
	}
	if gradient == nil {
		gradient = make([]int, nfn)
	}
	if len(invariant) != nfn || len(gradient) != nfn {
		return nil, fmt.Errorf("index map: got %d invariant and %d gradient flags for %d functions",
			len(invariant), len(gradient), nfn)
	}

	if policy.RequireEmbeddingUnit {
		for i := 0; i < nfn; i++ {
			if t.Role(i) != RoleEmbedding {
				continue
			}
			if t.Begin[i] > 1.0 || t.End[i] < 1.0 {
				return nil, &MalformedTableError{
					Function: i,
					Reason: fmt.Sprintf("embedding domain [%g, %g] must contain 1.0 to fix the gauge degrees of freedom",
						t.Begin[i], t.End[i]),
				}
			}
		}
	}

	m := &IndexMap{}
	for i := 0; i < nfn; i++ {
		if hasGradients && !invariant[i] {
			if gradient[i]&GradLeft != 0 {
				m.Free = append(m.Free, t.First[i]-2)
			}
			if gradient[i]&GradRight != 0 {
				m.Free = append(m.Free, t.First[i]-1)
			}
		}
		if invariant[i] {
			continue
		}
		n := t.NumSamples(i)
		for j := 0; j < n; j++ {
			if policy.PinCutoff && t.Role(i) != RoleEmbedding && j == n-1 {
				continue
			}
			if i == policy.ClampFirst && j == 0 {
				continue
			}
			m.Free = append(m.Free, t.First[i]+j)
		}
	}
	return m, nil
}
