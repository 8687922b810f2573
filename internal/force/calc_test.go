package force

import (
	"math"
	"testing"

	"github.com/tablefit/tablefit/internal/config"
	"github.com/tablefit/tablefit/internal/pot"
)

// quadraticPairTable samples phi(r) = r^2 on [1, 6] with exact boundary
// derivatives, so the cubic spline reproduces phi and phi' everywhere.
func quadraticPairTable(t *testing.T) *pot.Table {
	t.Helper()
	table, err := pot.New(pot.PairSchema(1), []pot.GridSpec{{Begin: 1, End: 6, N: 11}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for j := 0; j < 11; j++ {
		x := table.XCoord[table.First[0]+j]
		table.SetValue(0, j, x*x)
	}
	table.Values[table.First[0]-2] = 2  // phi'(1)
	table.Values[table.First[0]-1] = 12 // phi'(6)
	table.RebuildSplineCache()
	return table
}

func dimer(r float64, stressed bool) config.Configuration {
	c := config.Configuration{
		Elements: []string{"Cu"},
		Box: [3]config.Vec3{
			{100, 0, 0},
			{0, 100, 0},
			{0, 0, 100},
		},
		Energy: 0,
		Atoms: []config.Atom{
			{Type: 0, Pos: config.Vec3{0, 0, 0}},
			{Type: 0, Pos: config.Vec3{r, 0, 0}},
		},
	}
	c.HasStress = stressed
	return c
}

func TestDimerForcesAndEnergy(t *testing.T) {
	table := quadraticPairTable(t)
	r := 2.5
	calc, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{dimer(r, false)}, 1.0, 1.0, 1)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	if got, want := calc.NumResiduals(), 3*2+1; got != want {
		t.Fatalf("NumResiduals = %d, want %d", got, want)
	}

	cost, res := calc.Evaluate(table.Values)

	// phi(r) = r^2, phi'(r) = 2r; reference forces and energy are zero, so
	// the residuals are the computed values themselves
	grad := 2 * r
	wantForces := []float64{grad, 0, 0, -grad, 0, 0}
	for k, want := range wantForces {
		if math.Abs(res[k]-want) > 1e-9 {
			t.Errorf("force residual %d = %g, want %g", k, res[k], want)
		}
	}

	wantEnergy := r * r / 2 // cohesive energy per atom
	if math.Abs(res[6]-wantEnergy) > 1e-9 {
		t.Errorf("energy residual = %g, want %g", res[6], wantEnergy)
	}

	wantCost := 0.0
	for _, v := range res {
		wantCost += v * v
	}
	if math.Abs(cost-wantCost) > 1e-12 {
		t.Errorf("cost %g does not match sum of squared residuals %g", cost, wantCost)
	}
}

func TestDimerActionReaction(t *testing.T) {
	table := quadraticPairTable(t)
	calc, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{dimer(3.1, false)}, 1.0, 1.0, 2)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	_, res := calc.Evaluate(table.Values)
	for k := 0; k < 3; k++ {
		if math.Abs(res[k]+res[3+k]) > 1e-9 {
			t.Errorf("net force component %d = %g, want 0", k, res[k]+res[3+k])
		}
	}
}

func TestDimerStress(t *testing.T) {
	table := quadraticPairTable(t)
	r := 2.5
	calc, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{dimer(r, true)}, 1.0, 1.0, 1)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	if got, want := calc.NumResiduals(), 3*2+1+6; got != want {
		t.Fatalf("NumResiduals = %d, want %d", got, want)
	}
	_, res := calc.Evaluate(table.Values)

	// virial of a dimer along x: -r * phi'(r), scaled by the box volume
	vol := 100.0 * 100.0 * 100.0
	wantXX := -r * 2 * r / vol
	if math.Abs(res[7]-wantXX) > 1e-12 {
		t.Errorf("stress xx residual = %g, want %g", res[7], wantXX)
	}
	for k := 8; k < 13; k++ {
		if math.Abs(res[k]) > 1e-12 {
			t.Errorf("stress residual %d = %g, want 0", k, res[k])
		}
	}
}

func TestEvaluateIsPure(t *testing.T) {
	table := quadraticPairTable(t)
	configs := []config.Configuration{dimer(2.5, true), dimer(3.7, false)}
	calc, err := NewCalculator(table, []string{"Cu"}, configs, 10.0, 10.0, 4)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	params := append([]float64(nil), table.Values...)
	snapshot := append([]float64(nil), params...)

	cost1, res1 := calc.Evaluate(params)
	cost2, res2 := calc.Evaluate(params)

	if cost1 != cost2 {
		t.Errorf("cost differs between identical calls: %g vs %g", cost1, cost2)
	}
	for i := range res1 {
		if res1[i] != res2[i] {
			t.Errorf("residual %d differs between identical calls", i)
		}
	}
	for i := range params {
		if params[i] != snapshot[i] {
			t.Fatalf("Evaluate mutated the parameter vector at %d", i)
		}
	}
}

func TestPeriodicImages(t *testing.T) {
	table := quadraticPairTable(t)
	// one atom in a 4x100x100 box interacts with its own x images at r=4,
	// which lies inside the sampling domain
	cfg := config.Configuration{
		Elements: []string{"Cu"},
		Box: [3]config.Vec3{
			{4, 0, 0},
			{0, 100, 0},
			{0, 0, 100},
		},
		Atoms: []config.Atom{{Type: 0, Pos: config.Vec3{0, 0, 0}}},
	}
	calc, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{cfg}, 1.0, 1.0, 1)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	_, res := calc.Evaluate(table.Values)

	// the two image interactions cancel by symmetry
	for k := 0; k < 3; k++ {
		if math.Abs(res[k]) > 1e-9 {
			t.Errorf("force component %d = %g, want 0 by symmetry", k, res[k])
		}
	}
	// energy per atom: two half-counted image pairs at r=4
	want := 4.0 * 4.0
	if math.Abs(res[3]-want) > 1e-9 {
		t.Errorf("energy residual = %g, want %g", res[3], want)
	}
}

func TestSecondShellImages(t *testing.T) {
	table := quadraticPairTable(t)
	// a 2 A cell along x is much smaller than the 6 A cutoff, so the images
	// at r=4 sit in the second shell of cells and must not be dropped
	cfg := config.Configuration{
		Elements: []string{"Cu"},
		Box: [3]config.Vec3{
			{2, 0, 0},
			{0, 100, 0},
			{0, 0, 100},
		},
		Atoms: []config.Atom{{Type: 0, Pos: config.Vec3{0, 0, 0}}},
	}
	calc, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{cfg}, 1.0, 1.0, 1)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	_, res := calc.Evaluate(table.Values)

	for k := 0; k < 3; k++ {
		if math.Abs(res[k]) > 1e-9 {
			t.Errorf("force component %d = %g, want 0 by symmetry", k, res[k])
		}
	}
	// half-counted image pairs at r=2 and r=4 on both sides; r=6 lies at the
	// sampling end and is excluded
	want := 2.0*2.0 + 4.0*4.0
	if math.Abs(res[3]-want) > 1e-9 {
		t.Errorf("energy residual = %g, want %g", res[3], want)
	}
}

func TestImageShellRange(t *testing.T) {
	box := [3]config.Vec3{{2, 0, 0}, {0, 100, 0}, {0, 0, 100}}
	vol := math.Abs(det3(box))
	shells := imageShells(box, vol, 6.0)
	if want := [3]int{3, 1, 1}; shells != want {
		t.Errorf("imageShells = %v, want %v", shells, want)
	}
}

func TestNewCalculatorRejectsCloseAtoms(t *testing.T) {
	table := quadraticPairTable(t)
	if _, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{dimer(0.5, false)}, 1, 1, 1); err == nil {
		t.Error("expected error for separation below the sampling start")
	}
}

func TestNewCalculatorRejectsUnknownElement(t *testing.T) {
	table := quadraticPairTable(t)
	cfg := dimer(2.5, false)
	cfg.Elements = []string{"Ni"}
	if _, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{cfg}, 1, 1, 1); err == nil {
		t.Error("expected error for unknown element")
	}
}

func TestReportSummarizesForces(t *testing.T) {
	table := quadraticPairTable(t)
	calc, err := NewCalculator(table, []string{"Cu"}, []config.Configuration{dimer(2.5, false)}, 1.0, 1.0, 1)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	rep := calc.Report(table.Values)
	if rep.ForceComps != 6 {
		t.Errorf("ForceComps = %d, want 6", rep.ForceComps)
	}
	if rep.Cost <= 0 {
		t.Errorf("Cost = %g, want positive for a nonzero potential", rep.Cost)
	}
	if rep.MaxForceDev < rep.MinForceDev {
		t.Errorf("MaxForceDev %g below MinForceDev %g", rep.MaxForceDev, rep.MinForceDev)
	}
	if rep.AvgForceDev < rep.MinForceDev || rep.AvgForceDev > rep.MaxForceDev {
		t.Errorf("AvgForceDev %g outside [%g, %g]", rep.AvgForceDev, rep.MinForceDev, rep.MaxForceDev)
	}
}
