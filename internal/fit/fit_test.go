package fit

import (
	"math"
	"testing"

	"github.com/tablefit/tablefit/internal/pot"
)

// slotTargetObjective pulls selected table slots toward fixed targets, a
// stand-in for the force-matching objective with a known analytic minimum.
type slotTargetObjective struct {
	slots   []int
	targets []float64
}

func (o *slotTargetObjective) NumResiduals() int { return len(o.slots) }

func (o *slotTargetObjective) Evaluate(p []float64) (float64, []float64) {
	res := make([]float64, len(o.slots))
	cost := 0.0
	for i, slot := range o.slots {
		res[i] = p[slot] - o.targets[i]
		cost += res[i] * res[i]
	}
	return cost, res
}

func buildFitScenario(t *testing.T) (*pot.Table, *pot.IndexMap, *slotTargetObjective) {
	t.Helper()
	table, err := pot.New(pot.Schema{{Role: pot.RolePair, Count: 2}}, []pot.GridSpec{
		{Begin: 1, End: 5, N: 5},
		{Begin: 1, End: 4, N: 4},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	table.Values[table.First[0]-2] = -1
	table.Values[table.First[0]-1] = 0
	table.Values[table.First[1]-2] = -2
	table.Values[table.First[1]-1] = 0.5
	table.RebuildSplineCache()

	flags := []int{pot.GradBoth, pot.GradBoth}
	im, err := pot.BuildIndexMap(table, nil, flags, true, pot.DefaultPinPolicy())
	if err != nil {
		t.Fatalf("BuildIndexMap failed: %v", err)
	}

	obj := &slotTargetObjective{slots: im.Free}
	for i := range im.Free {
		obj.targets = append(obj.targets, 0.1*float64(i)-0.5)
	}
	return table, im, obj
}

func TestRunReachesTargets(t *testing.T) {
	table, im, obj := buildFitScenario(t)

	res, err := Run(table, im, obj, Options{Budget: 50, Tolerance: 1e-12, Eps: 1e-6})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.FinalCost > 1e-10 {
		t.Errorf("final cost %g, want < 1e-10", res.FinalCost)
	}
	if res.Iterations > 50 {
		t.Errorf("took %d iterations, budget was 50", res.Iterations)
	}
	for i, slot := range im.Free {
		if math.Abs(table.Values[slot]-obj.targets[i]) > 1e-5 {
			t.Errorf("slot %d = %g, want %g", slot, table.Values[slot], obj.targets[i])
		}
	}

	// pinned cutoff samples must not move
	if table.Values[table.Last[0]] != 0 || table.Values[table.Last[1]] != 0 {
		t.Error("pinned cutoff samples moved during the fit")
	}

	// the table comes back with a usable spline cache
	table.Eval(0, 2.0)
}

func TestRunRecordsHistory(t *testing.T) {
	table, im, obj := buildFitScenario(t)

	var observed int
	res, err := Run(table, im, obj, Options{
		Budget:    50,
		Tolerance: 1e-12,
		OnIteration: func(iter int, cost float64, params []float64) {
			observed++
			if len(params) != table.Len() {
				t.Errorf("observer got %d params, want %d", len(params), table.Len())
			}
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if observed == 0 {
		t.Fatal("observer saw no iterations")
	}
	if len(res.History) != observed {
		t.Errorf("history has %d entries, observer saw %d", len(res.History), observed)
	}
	if res.FinalCost > res.InitialCost {
		t.Errorf("cost rose from %g to %g", res.InitialCost, res.FinalCost)
	}
}

// fakeGlobal is a canned global-search engine for exercising RunGlobal's
// keep-the-better-vector behavior without a stochastic run.
type fakeGlobal struct {
	params []float64
	cost   float64
}

func (f *fakeGlobal) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	eval(f.params) // engines evaluate candidates; make sure that is safe
	return append([]float64(nil), f.params...), f.cost
}

func TestRunGlobalAppliesImprovement(t *testing.T) {
	table, im, obj := buildFitScenario(t)

	engine := &fakeGlobal{params: append([]float64(nil), obj.targets...), cost: 0}
	res, err := RunGlobal(table, im, obj, engine, 1.0)
	if err != nil {
		t.Fatalf("RunGlobal failed: %v", err)
	}
	if res.FinalCost != 0 {
		t.Errorf("final cost %g, want 0", res.FinalCost)
	}
	for i, slot := range im.Free {
		if table.Values[slot] != obj.targets[i] {
			t.Errorf("slot %d = %g, want %g", slot, table.Values[slot], obj.targets[i])
		}
	}
}

func TestRunGlobalDiscardsRegression(t *testing.T) {
	table, im, obj := buildFitScenario(t)
	before := table.CopyValues()

	bad := make([]float64, im.Len())
	for i := range bad {
		bad[i] = 1e6
	}
	initialCost, _ := obj.Evaluate(before)

	engine := &fakeGlobal{params: bad, cost: 1e12}
	res, err := RunGlobal(table, im, obj, engine, 1.0)
	if err != nil {
		t.Fatalf("RunGlobal failed: %v", err)
	}
	if res.FinalCost != initialCost {
		t.Errorf("final cost %g, want initial %g", res.FinalCost, initialCost)
	}
	for i, v := range table.Values {
		if v != before[i] {
			t.Fatalf("table slot %d changed despite a worse search result", i)
		}
	}
}

func TestRunGlobalNoFreeParams(t *testing.T) {
	table, _, obj := buildFitScenario(t)
	im := &pot.IndexMap{}

	res, err := RunGlobal(table, im, obj, &fakeGlobal{}, 1.0)
	if err != nil {
		t.Fatalf("RunGlobal failed: %v", err)
	}
	if res.FinalCost != res.InitialCost {
		t.Errorf("cost changed with nothing to fit: %g -> %g", res.InitialCost, res.FinalCost)
	}
}
