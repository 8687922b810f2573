// Package force implements the objective evaluator for tabulated pair
// potentials: given a full parameter vector it computes energies, forces and
// stresses on every reference configuration and returns the weighted
// residual vector and its sum of squares.
package force

import (
	"fmt"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/tablefit/tablefit/internal/config"
	"github.com/tablefit/tablefit/internal/pot"
)

// neighbor is one precomputed interacting pair within a configuration. The
// geometry never changes during a fit, so distances and direction vectors
// are computed once and Evaluate reduces to spline lookups.
type neighbor struct {
	i, j int
	col  int     // pair-function column for the two types
	r    float64 // separation
	dir  config.Vec3
	dist config.Vec3 // full separation vector, for the virial
}

type confData struct {
	neighbors []neighbor
	forceOff  int // offset of this config's force residuals
	energyOff int
	stressOff int // -1 when the config carries no stress tensor
	volume    float64
}

// Calculator evaluates the pair-potential objective. It is safe for
// concurrent Evaluate calls: the table is only read for layout metadata and
// every call works on the parameter snapshot it is handed.
type Calculator struct {
	table   *pot.Table
	ntypes  int
	configs []config.Configuration
	conf    []confData

	EnergyWeight float64
	StressWeight float64

	workers int
	total   int // residual vector length
}

// NewCalculator precomputes neighbor lists for every configuration and lays
// out the residual vector: all force components first, then one energy
// residual per configuration, then six stress residuals per configuration
// that carries a stress tensor.
func NewCalculator(t *pot.Table, elements []string, configs []config.Configuration, energyWeight, stressWeight float64, workers int) (*Calculator, error) {
	ntypes := len(elements)
	paircol := pot.PairCols(ntypes)
	if t.NumFunctions() < paircol {
		return nil, fmt.Errorf("table has %d functions, %d element types need %d pair columns",
			t.NumFunctions(), ntypes, paircol)
	}
	for col := 0; col < paircol; col++ {
		if t.Role(col) != pot.RolePair {
			return nil, fmt.Errorf("table function %d has role %s, expected %s", col, t.Role(col), pot.RolePair)
		}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	c := &Calculator{
		table:        t,
		ntypes:       ntypes,
		configs:      configs,
		conf:         make([]confData, len(configs)),
		EnergyWeight: energyWeight,
		StressWeight: stressWeight,
		workers:      workers,
	}

	cutoff := 0.0
	for col := 0; col < paircol; col++ {
		cutoff = math.Max(cutoff, t.End[col])
	}

	forceOff := 0
	for h := range configs {
		if err := configs[h].Validate(elements, h); err != nil {
			return nil, err
		}
		c.conf[h].forceOff = forceOff
		forceOff += 3 * configs[h].NumAtoms()
	}
	energyOff := forceOff
	stressOff := energyOff + len(configs)
	for h := range configs {
		c.conf[h].energyOff = energyOff + h
		if configs[h].HasStress {
			c.conf[h].stressOff = stressOff
			stressOff += 6
		} else {
			c.conf[h].stressOff = -1
		}
	}
	c.total = stressOff

	for h := range configs {
		if err := c.buildNeighbors(h, cutoff); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// buildNeighbors enumerates ordered atom pairs including the periodic images
// of as many surrounding cells as the cutoff sphere reaches. Each ordered
// pair contributes half its energy, so interactions end up counted exactly
// once.
func (c *Calculator) buildNeighbors(h int, cutoff float64) error {
	cfg := &c.configs[h]
	box := cfg.Box
	vol := math.Abs(det3(box))
	if vol == 0 {
		return fmt.Errorf("configuration %d has a degenerate box", h)
	}
	c.conf[h].volume = vol
	shells := imageShells(box, vol, cutoff)

	for i := range cfg.Atoms {
		for j := range cfg.Atoms {
			for sx := -shells[0]; sx <= shells[0]; sx++ {
				for sy := -shells[1]; sy <= shells[1]; sy++ {
					for sz := -shells[2]; sz <= shells[2]; sz++ {
						if i == j && sx == 0 && sy == 0 && sz == 0 {
							continue
						}
						var d config.Vec3
						for a := 0; a < 3; a++ {
							d[a] = cfg.Atoms[j].Pos[a] - cfg.Atoms[i].Pos[a] +
								float64(sx)*box[0][a] + float64(sy)*box[1][a] + float64(sz)*box[2][a]
						}
						r := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
						if r >= cutoff {
							continue
						}
						col := pot.PairCol(cfg.Atoms[i].Type, cfg.Atoms[j].Type, c.ntypes)
						if r >= c.table.End[col] {
							continue
						}
						if r < c.table.Begin[col] {
							return fmt.Errorf("configuration %d: atoms %d and %d are %g apart, below the sampling start %g of pair column %d",
								h, i, j, r, c.table.Begin[col], col)
						}
						c.conf[h].neighbors = append(c.conf[h].neighbors, neighbor{
							i: i, j: j, col: col, r: r,
							dir:  config.Vec3{d[0] / r, d[1] / r, d[2] / r},
							dist: d,
						})
					}
				}
			}
		}
	}
	return nil
}

// NumResiduals returns the residual vector length.
func (c *Calculator) NumResiduals() int { return c.total }

// Evaluate computes the weighted residual vector for the given parameter
// vector (the table's flat value buffer) and the scalar cost, the sum of
// squared residuals. Configurations are evaluated in parallel; each worker
// writes a disjoint residual segment, and the parameter snapshot plus its
// locally computed spline cache are shared read-only.
func (c *Calculator) Evaluate(params []float64) (float64, []float64) {
	if len(params) != c.table.Len() {
		panic(fmt.Sprintf("force: parameter vector length %d does not match table length %d", len(params), c.table.Len()))
	}
	d2 := make([]float64, len(params))
	c.table.SplineInto(params, d2)

	res := make([]float64, c.total)
	p := pool.New().WithMaxGoroutines(c.workers)
	for h := range c.configs {
		p.Go(func() {
			c.evalConfig(h, params, d2, res)
		})
	}
	p.Wait()

	cost := 0.0
	for _, r := range res {
		cost += r * r
	}
	return cost, res
}

// evalConfig fills one configuration's residual slots: per-atom force
// deviations, the weighted per-atom energy deviation, and the weighted
// virial stress deviation when reference stresses exist.
func (c *Calculator) evalConfig(h int, params, d2 []float64, res []float64) {
	cfg := &c.configs[h]
	cd := &c.conf[h]

	forces := res[cd.forceOff : cd.forceOff+3*len(cfg.Atoms)]
	for i := range cfg.Atoms {
		forces[3*i+0] = -cfg.Atoms[i].Force[0]
		forces[3*i+1] = -cfg.Atoms[i].Force[1]
		forces[3*i+2] = -cfg.Atoms[i].Force[2]
	}

	energy := 0.0
	var stress [6]float64

	for _, nb := range cd.neighbors {
		phi, grad := c.table.SplintGradWith(params, d2, nb.col, nb.r)
		// ordered pairs double-count the energy and the virial, but each
		// atom sees every unordered pair exactly once in the force sum
		energy += 0.5 * phi

		fx, fy, fz := grad*nb.dir[0], grad*nb.dir[1], grad*nb.dir[2]
		forces[3*nb.i+0] += fx
		forces[3*nb.i+1] += fy
		forces[3*nb.i+2] += fz

		if cd.stressOff >= 0 {
			stress[0] -= 0.5 * nb.dist[0] * fx
			stress[1] -= 0.5 * nb.dist[1] * fy
			stress[2] -= 0.5 * nb.dist[2] * fz
			stress[3] -= 0.5 * nb.dist[0] * fy
			stress[4] -= 0.5 * nb.dist[1] * fz
			stress[5] -= 0.5 * nb.dist[2] * fx
		}
	}

	res[cd.energyOff] = c.EnergyWeight * (energy/float64(len(cfg.Atoms)) - cfg.Energy)
	if cd.stressOff >= 0 {
		for k := 0; k < 6; k++ {
			res[cd.stressOff+k] = c.StressWeight * (stress[k]/cd.volume - cfg.Stress[k])
		}
	}
}

// imageShells returns, per lattice direction, how many whole-cell shifts are
// needed so every periodic image within the cutoff sphere is enumerated. The
// perpendicular height of the cell slab along direction a is vol divided by
// the area of the face spanned by the other two lattice vectors; cells
// smaller than the cutoff need more than one shell.
func imageShells(box [3]config.Vec3, vol, cutoff float64) [3]int {
	var shells [3]int
	for a := 0; a < 3; a++ {
		u, w := box[(a+1)%3], box[(a+2)%3]
		cross := config.Vec3{
			u[1]*w[2] - u[2]*w[1],
			u[2]*w[0] - u[0]*w[2],
			u[0]*w[1] - u[1]*w[0],
		}
		area := math.Sqrt(cross[0]*cross[0] + cross[1]*cross[1] + cross[2]*cross[2])
		shells[a] = int(math.Ceil(cutoff * area / vol))
	}
	return shells
}

func det3(b [3]config.Vec3) float64 {
	return b[0][0]*(b[1][1]*b[2][2]-b[1][2]*b[2][1]) -
		b[0][1]*(b[1][0]*b[2][2]-b[1][2]*b[2][0]) +
		b[0][2]*(b[1][0]*b[2][1]-b[1][1]*b[2][0])
}
