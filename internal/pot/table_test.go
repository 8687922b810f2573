package pot

import (
	"errors"
	"math"
	"testing"
)

func TestTableLayout(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		grids   []GridSpec
		wantLen int
	}{
		{
			name:    "single function",
			schema:  PairSchema(1),
			grids:   []GridSpec{{Begin: 1, End: 5, N: 5}},
			wantLen: 7, // 2 gradient slots + 5 samples
		},
		{
			name:   "two functions",
			schema: Schema{{RolePair, 2}},
			grids: []GridSpec{
				{Begin: 1, End: 5, N: 5},
				{Begin: 0.5, End: 4.1, N: 4},
			},
			wantLen: 13,
		},
		{
			name:    "minimum two-point function",
			schema:  PairSchema(1),
			grids:   []GridSpec{{Begin: 0, End: 1, N: 2}},
			wantLen: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := New(tt.schema, tt.grids)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if table.Len() != tt.wantLen {
				t.Errorf("Len = %d, want %d", table.Len(), tt.wantLen)
			}
			if err := table.Validate(); err != nil {
				t.Errorf("Validate failed: %v", err)
			}

			// slot ranges are ordered and separated by exactly two gradient slots
			if table.First[0] != 2 {
				t.Errorf("First[0] = %d, want 2", table.First[0])
			}
			for i := 1; i < table.NumFunctions(); i++ {
				if table.First[i] != table.Last[i-1]+3 {
					t.Errorf("First[%d] = %d, want Last[%d]+3 = %d",
						i, table.First[i], i-1, table.Last[i-1]+3)
				}
			}

			for i, g := range tt.grids {
				wantStep := (g.End - g.Begin) / float64(g.N-1)
				if math.Abs(table.Step[i]-wantStep) > 1e-15 {
					t.Errorf("Step[%d] = %g, want %g", i, table.Step[i], wantStep)
				}
				if table.Step[i] <= 0 {
					t.Errorf("Step[%d] = %g, want positive", i, table.Step[i])
				}
			}
		})
	}
}

func TestTableXCoord(t *testing.T) {
	table, err := New(PairSchema(1), []GridSpec{{Begin: 2, End: 4, N: 5}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	want := []float64{2, 2.5, 3, 3.5, 4}
	for j := 0; j < 5; j++ {
		if got := table.XCoord[table.First[0]+j]; math.Abs(got-want[j]) > 1e-15 {
			t.Errorf("XCoord[%d] = %g, want %g", j, got, want[j])
		}
	}
}

func TestNewRejectsMalformedGrids(t *testing.T) {
	tests := []struct {
		name  string
		grids []GridSpec
	}{
		{"one sample", []GridSpec{{Begin: 0, End: 1, N: 1}}},
		{"zero samples", []GridSpec{{Begin: 0, End: 1, N: 0}}},
		{"reversed domain", []GridSpec{{Begin: 2, End: 1, N: 5}}},
		{"empty domain", []GridSpec{{Begin: 1, End: 1, N: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(PairSchema(1), tt.grids)
			if !errors.Is(err, &MalformedTableError{}) {
				t.Errorf("expected MalformedTableError, got %v", err)
			}
		})
	}
}

func TestValueAccess(t *testing.T) {
	table, err := New(PairSchema(1), []GridSpec{{Begin: 0, End: 4, N: 5}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	table.SetValue(0, 3, 1.25)
	if got := table.ValueAt(0, 3); got != 1.25 {
		t.Errorf("ValueAt(0,3) = %g, want 1.25", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range slot")
		}
	}()
	table.ValueAt(0, 5)
}

func TestMutationInvalidatesSplineCache(t *testing.T) {
	table, err := New(PairSchema(1), []GridSpec{{Begin: 0, End: 4, N: 5}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	table.RebuildSplineCache()
	table.Eval(0, 1.5) // fresh cache, must not panic

	table.SetValue(0, 2, 7)
	defer func() {
		if recover() == nil {
			t.Error("expected panic when evaluating with a stale spline cache")
		}
	}()
	table.Eval(0, 1.5)
}

func TestCloneIsIndependent(t *testing.T) {
	table, err := New(PairSchema(1), []GridSpec{{Begin: 0, End: 4, N: 5}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	table.SetValue(0, 1, 3)
	clone := table.Clone()
	clone.SetValue(0, 1, -3)
	if table.ValueAt(0, 1) != 3 {
		t.Errorf("mutating the clone changed the original: %g", table.ValueAt(0, 1))
	}
}
