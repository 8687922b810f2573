// Package config holds reference configurations: atomic arrangements with
// first-principles energies, forces and optionally stresses that the fit
// treats as targets. The records are produced by an external conversion
// utility; this package only parses, validates and re-emits them.
package config

import "fmt"

// Vec3 is a cartesian vector.
type Vec3 [3]float64

// Atom is one atom of a configuration: its element type index and reference
// position and force.
type Atom struct {
	Type  int
	Pos   Vec3
	Force Vec3
}

// Configuration is one fitting target: a periodic box of atoms with a
// reference cohesive energy per atom, reference forces, and an optional
// six-component symmetric stress tensor (xx yy zz xy yz zx).
type Configuration struct {
	Elements  []string
	Box       [3]Vec3
	Energy    float64
	HasStress bool
	Stress    [6]float64
	Atoms     []Atom
}

// NumAtoms returns the atom count.
func (c *Configuration) NumAtoms() int { return len(c.Atoms) }

// Validate checks the configuration against the fitted element set: every
// element symbol and every atom type index must resolve to a known element.
// A mismatch is fatal since the objective cannot be evaluated consistently.
func (c *Configuration) Validate(elements []string, index int) error {
	known := make(map[string]bool, len(elements))
	for _, el := range elements {
		known[el] = true
	}
	for _, el := range c.Elements {
		if !known[el] {
			return &MissingReferenceDataError{Element: el, Config: index}
		}
	}
	for i, a := range c.Atoms {
		if a.Type < 0 || a.Type >= len(elements) {
			return &MissingReferenceDataError{
				Element: fmt.Sprintf("type %d (atom %d)", a.Type, i),
				Config:  index,
			}
		}
	}
	return nil
}

// MissingReferenceDataError reports a configuration referencing an element
// absent from the fitted element set. Fatal: the objective cannot be
// evaluated consistently without it.
type MissingReferenceDataError struct {
	Element string
	Config  int
}

func (e *MissingReferenceDataError) Error() string {
	return fmt.Sprintf("configuration %d references unknown element %s", e.Config, e.Element)
}

func (e *MissingReferenceDataError) Is(target error) bool {
	_, ok := target.(*MissingReferenceDataError)
	return ok
}
