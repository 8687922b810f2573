package force

import "math"

// Report summarizes how well a parameter vector reproduces the reference
// forces: the total weighted cost plus the average, smallest and largest
// squared force deviation over all atoms.
type Report struct {
	Cost        float64
	ForceComps  int
	AvgForceDev float64
	MinForceDev float64
	MaxForceDev float64
}

// Report evaluates the objective once and condenses the force residuals
// into a deviation summary, typically printed after a fit.
func (c *Calculator) Report(params []float64) Report {
	cost, res := c.Evaluate(params)

	rep := Report{
		Cost:        cost,
		MinForceDev: math.Inf(1),
	}

	nforce := 0
	for h := range c.configs {
		nforce += 3 * c.configs[h].NumAtoms()
	}
	rep.ForceComps = nforce

	sum := 0.0
	for _, r := range res[:nforce] {
		sqr := r * r
		sum += sqr
		if sqr < rep.MinForceDev {
			rep.MinForceDev = sqr
		}
		if sqr > rep.MaxForceDev {
			rep.MaxForceDev = sqr
		}
	}
	if nforce > 0 {
		rep.AvgForceDev = sum / float64(nforce)
	} else {
		rep.MinForceDev = 0
	}
	return rep
}
