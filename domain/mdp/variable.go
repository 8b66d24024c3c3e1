// Package mdp holds the factored Markov Decision Process data model: discrete
// state and action variables, reward factors, and conditional probability
// tables over them. Models are assembled through a Builder and frozen by
// Finalize; a finalized Model is never mutated, so it is safe to share across
// goroutines without locking. Construction itself is single-threaded.
package mdp

// VarID identifies a state or action variable. Ids are small positive
// integers and must be unique across both namespaces within one model, since
// factor domains reference variables through a single flat id space.
type VarID int32

// VarKind tells which namespace a variable was registered in. The zero value
// means "unspecified" and only appears in lookup errors.
type VarKind uint8

const (
	KindState VarKind = iota + 1
	KindAction
)

func (k VarKind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindAction:
		return "action"
	default:
		return "unspecified"
	}
}

// Variable is a discrete variable taking values 0..Size-1. Immutable once
// added to a Registry.
type Variable struct {
	ID   VarID `json:"id"`
	Size int   `json:"size"`
}

// NewVariable validates id and cardinality.
func NewVariable(id VarID, size int) (Variable, error) {
	if id <= 0 {
		return Variable{}, &InvalidVariableError{ID: id, Reason: "id must be a positive integer"}
	}
	if size <= 0 {
		return Variable{}, &InvalidVariableError{ID: id, Reason: "cardinality must be a positive integer"}
	}
	return Variable{ID: id, Size: size}, nil
}
