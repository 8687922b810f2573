package pot

import "fmt"

// Role classifies what a sampled function contributes to the potential model.
// The table and index-map code treat all roles uniformly except where noted:
// embedding functions keep their cutoff sample free, everything else has it
// pinned (see PinPolicy).
type Role int

const (
	// RolePair is a pair interaction phi(r).
	RolePair Role = iota
	// RoleTransfer is a density/transfer function rho(r).
	RoleTransfer
	// RoleEmbedding is an embedding function F(n) evaluated on the
	// accumulated density rather than on a distance.
	RoleEmbedding
	// RoleDipole is a dipole distortion function u(r).
	RoleDipole
	// RoleQuadrupole is a quadrupole distortion function w(r).
	RoleQuadrupole
)

func (r Role) String() string {
	switch r {
	case RolePair:
		return "pair"
	case RoleTransfer:
		return "transfer"
	case RoleEmbedding:
		return "embedding"
	case RoleDipole:
		return "dipole"
	case RoleQuadrupole:
		return "quadrupole"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Block declares a run of consecutive functions sharing one role.
type Block struct {
	Role  Role
	Count int
}

// Schema is the ordered layout of sampled functions in a table, built once
// from the model configuration and consumed uniformly by table construction
// and index-map building.
type Schema []Block

// PairCols returns the number of independent pair columns for ntypes
// element types.
func PairCols(ntypes int) int {
	return ntypes * (ntypes + 1) / 2
}

// PairSchema lays out a plain pair potential: one phi column per type pair.
func PairSchema(ntypes int) Schema {
	return Schema{{RolePair, PairCols(ntypes)}}
}

// EAMSchema lays out an embedded-atom potential: pair columns, one transfer
// function per type and one embedding function per type.
func EAMSchema(ntypes int) Schema {
	return Schema{
		{RolePair, PairCols(ntypes)},
		{RoleTransfer, ntypes},
		{RoleEmbedding, ntypes},
	}
}

// NumFunctions returns the total function count across all blocks.
func (s Schema) NumFunctions() int {
	n := 0
	for _, b := range s {
		n += b.Count
	}
	return n
}

// Roles flattens the schema into one role per function, in table order.
func (s Schema) Roles() []Role {
	roles := make([]Role, 0, s.NumFunctions())
	for _, b := range s {
		for i := 0; i < b.Count; i++ {
			roles = append(roles, b.Role)
		}
	}
	return roles
}

// Validate checks that every block is well formed.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no function blocks")
	}
	for i, b := range s {
		if b.Count <= 0 {
			return fmt.Errorf("schema block %d (%s): count must be positive, got %d", i, b.Role, b.Count)
		}
	}
	return nil
}

// PairCol maps an unordered type pair (ti, tj) to its pair-function column,
// matching the table ordering used by the reader.
func PairCol(ti, tj, ntypes int) int {
	if ti <= tj {
		return ti*ntypes + tj - (ti*(ti+1))/2
	}
	return tj*ntypes + ti - (tj*(tj+1))/2
}
