package mdp

import (
	"errors"
	"fmt"
)

// Validation failure categories. The typed errors below wrap these so
// callers can branch with errors.Is without holding the concrete type.
var (
	ErrDuplicateID     = errors.New("duplicate id")
	ErrInvalidVariable = errors.New("invalid variable")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrShapeMismatch   = errors.New("shape mismatch")
	ErrNotNormalized   = errors.New("distribution not normalized")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidModel    = errors.New("invalid model")
)

// DuplicateIDError reports an identifier already taken within the model.
// Variable ids share one id space across the state and action namespaces,
// so Kind names the namespace of the existing entry.
type DuplicateIDError struct {
	ID   int32
	What string // "state variable", "action variable", "reward factor", "transition target"
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id %d", e.What, e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// InvalidVariableError reports a variable definition that can never be valid.
type InvalidVariableError struct {
	ID     VarID
	Reason string
}

func (e *InvalidVariableError) Error() string {
	return fmt.Sprintf("invalid variable %d: %s", e.ID, e.Reason)
}

func (e *InvalidVariableError) Unwrap() error { return ErrInvalidVariable }

// UnknownVariableError reports a domain reference that does not resolve in
// the registry. Want narrows the lookup to one namespace when set.
type UnknownVariableError struct {
	ID   VarID
	Want VarKind // zero when either namespace would have matched
}

func (e *UnknownVariableError) Error() string {
	if e.Want != 0 {
		return fmt.Sprintf("unknown %s variable id %d", e.Want, e.ID)
	}
	return fmt.Sprintf("unknown variable id %d", e.ID)
}

func (e *UnknownVariableError) Unwrap() error { return ErrUnknownVariable }

// ShapeMismatchError reports a flat array whose length disagrees with the
// size computed from its domain.
type ShapeMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s needs %d values but %d are specified", e.What, e.Want, e.Got)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// NotNormalizedError reports a conditional distribution block that does not
// sum to 1 within NormTolerance. Block is the conditioning index of the
// offending block.
type NotNormalizedError struct {
	Target VarID
	Block  int
	Sum    float64
}

func (e *NotNormalizedError) Error() string {
	return fmt.Sprintf("transition factor for variable %d: block %d sums to %v, want 1 within %v",
		e.Target, e.Block, e.Sum, NormTolerance)
}

func (e *NotNormalizedError) Unwrap() error { return ErrNotNormalized }

// IndexOutOfRangeError reports an assignment value outside its variable's
// cardinality, or a flat index outside the domain's size. Variable is zero
// for the flat-index case.
type IndexOutOfRangeError struct {
	Variable VarID
	Value    int
	Size     int
}

func (e *IndexOutOfRangeError) Error() string {
	if e.Variable != 0 {
		return fmt.Sprintf("value %d for variable %d outside [0,%d)", e.Value, e.Variable, e.Size)
	}
	return fmt.Sprintf("flat index %d outside [0,%d)", e.Value, e.Size)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }
