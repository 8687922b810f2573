// Package params reads the run-parameter file: which elements and files a
// fit uses, which table values stay fixed, how residuals are weighted, and
// how the optimization engine is tuned.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tablefit/tablefit/internal/pot"
)

// Pinning exposes the edge-pinning policy in the parameter file. The exact
// pinned slots depend on the physical model's gauge degeneracies, so they
// are configuration, not code; unset fields keep the standard policy.
type Pinning struct {
	PinCutoff            *bool `yaml:"pin_cutoff"`
	ClampFirst           *int  `yaml:"clamp_first"`
	RequireEmbeddingUnit *bool `yaml:"require_embedding_unit"`
}

// Params is the fit specification loaded from YAML.
type Params struct {
	Elements  []string `yaml:"elements"`
	Model     string   `yaml:"model"`     // pair or eam
	Potential string   `yaml:"potential"` // table file to fit
	Configs   string   `yaml:"configs"`   // training configurations
	Output    string   `yaml:"output"`    // fitted table destination

	Gradients     bool   `yaml:"gradients"`      // table files carry gradient lines
	GradientFlags []int  `yaml:"gradient_flags"` // per function, bits free the boundary gradients
	Invariant     []bool `yaml:"invariant"`      // per function, true keeps it fixed

	EnergyWeight float64 `yaml:"energy_weight"`
	StressWeight float64 `yaml:"stress_weight"`

	Engine        string  `yaml:"engine"` // powell or mayfly
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	FDStep        float64 `yaml:"fd_step"`
	Workers       int     `yaml:"workers"`
	Seed          int64   `yaml:"seed"`

	// mayfly engine only
	Population int     `yaml:"population"`
	Spread     float64 `yaml:"spread"`

	CheckpointInterval int `yaml:"checkpoint_interval"` // seconds, 0 disables

	Pinning Pinning `yaml:"pinning"`
}

// defaults returns a parameter set with every tunable at its standard value.
func defaults() *Params {
	return &Params{
		Model:         "pair",
		Output:        "fitted.pot",
		EnergyWeight:  10,
		StressWeight:  10,
		Engine:        "powell",
		MaxIterations: 100,
		Tolerance:     1e-10,
		FDStep:        1e-6,
		Seed:          42,
		Population:    30,
		Spread:        1.0,
	}
}

// Load reads and validates a parameter file.
func Load(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	p := defaults()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameter file %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the cross-field constraints a YAML schema cannot express.
func (p *Params) Validate() error {
	if len(p.Elements) == 0 {
		return fmt.Errorf("elements list is empty")
	}
	if p.Potential == "" {
		return fmt.Errorf("potential file is not set")
	}
	if p.Configs == "" {
		return fmt.Errorf("configs file is not set")
	}
	switch p.Model {
	case "pair", "eam":
	default:
		return fmt.Errorf("unknown model %q (want pair or eam)", p.Model)
	}
	switch p.Engine {
	case "powell", "mayfly":
	default:
		return fmt.Errorf("unknown engine %q (want powell or mayfly)", p.Engine)
	}
	if p.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", p.MaxIterations)
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", p.Tolerance)
	}
	nfn := p.Schema().NumFunctions()
	if p.Invariant != nil && len(p.Invariant) != nfn {
		return fmt.Errorf("invariant lists %d functions, model %s with %d elements has %d",
			len(p.Invariant), p.Model, len(p.Elements), nfn)
	}
	if p.GradientFlags != nil && len(p.GradientFlags) != nfn {
		return fmt.Errorf("gradient_flags lists %d functions, model %s with %d elements has %d",
			len(p.GradientFlags), p.Model, len(p.Elements), nfn)
	}
	for i, g := range p.GradientFlags {
		if g < pot.GradNone || g > pot.GradBoth {
			return fmt.Errorf("gradient_flags[%d] = %d out of range [0, 3]", i, g)
		}
	}
	return nil
}

// Schema returns the table layout for the configured model and element count.
func (p *Params) Schema() pot.Schema {
	if p.Model == "eam" {
		return pot.EAMSchema(len(p.Elements))
	}
	return pot.PairSchema(len(p.Elements))
}

// PinPolicy resolves the configured pinning overrides against the defaults.
func (p *Params) PinPolicy() pot.PinPolicy {
	pol := pot.DefaultPinPolicy()
	if p.Pinning.PinCutoff != nil {
		pol.PinCutoff = *p.Pinning.PinCutoff
	}
	if p.Pinning.ClampFirst != nil {
		pol.ClampFirst = *p.Pinning.ClampFirst
	}
	if p.Pinning.RequireEmbeddingUnit != nil {
		pol.RequireEmbeddingUnit = *p.Pinning.RequireEmbeddingUnit
	}
	return pol
}
