package mdp

import (
	"fmt"
	"math"
)

// NormTolerance is the absolute tolerance used when checking that each
// conditional distribution block of a transition factor sums to 1. Checked
// once at build time; queries never revalidate.
const NormTolerance = 1e-6

// TransitionFactor is the conditional probability table for one target state
// variable: P(target' = t | conditions = c). Values holds conditionSize
// contiguous blocks of targetSize probabilities; block k is the distribution
// over the target's next value given the conditioning assignment whose flat
// index is k. Immutable once built.
type TransitionFactor struct {
	Target     VarID     `json:"target"`
	Conditions Domain    `json:"conditions"`
	Values     []float64 `json:"values"`
}

// NewTransitionFactor validates shape and normalization against the registry
// and copies its inputs. The target must be a state variable.
func NewTransitionFactor(reg *Registry, target VarID, conditions Domain, values []float64) (TransitionFactor, error) {
	f := TransitionFactor{
		Target:     target,
		Conditions: append(Domain(nil), conditions...),
		Values:     append([]float64(nil), values...),
	}
	if err := f.validate(reg); err != nil {
		return TransitionFactor{}, err
	}
	return f, nil
}

// TargetSize returns the cardinality of the target variable.
func (f TransitionFactor) TargetSize(reg *Registry) (int, error) {
	v, err := reg.StateVariable(f.Target)
	if err != nil {
		return 0, err
	}
	return v.Size, nil
}

// Probability returns P(target' = next | conditions = conditioning). No
// validation beyond index bounds: normalization was established at build.
func (f TransitionFactor) Probability(reg *Registry, next int, conditioning []int) (float64, error) {
	targetSize, err := f.TargetSize(reg)
	if err != nil {
		return 0, err
	}
	if next < 0 || next >= targetSize {
		return 0, &IndexOutOfRangeError{Variable: f.Target, Value: next, Size: targetSize}
	}
	k, err := f.Conditions.FlatIndex(reg, conditioning)
	if err != nil {
		return 0, err
	}
	return f.Values[k*targetSize+next], nil
}

// Distribution returns a copy of the probability block for one conditioning
// assignment, indexed by the target's next value.
func (f TransitionFactor) Distribution(reg *Registry, conditioning []int) ([]float64, error) {
	targetSize, err := f.TargetSize(reg)
	if err != nil {
		return nil, err
	}
	k, err := f.Conditions.FlatIndex(reg, conditioning)
	if err != nil {
		return nil, err
	}
	block := make([]float64, targetSize)
	copy(block, f.Values[k*targetSize:(k+1)*targetSize])
	return block, nil
}

// validate checks target resolution, value count, and per-block
// normalization. Fails on the first offending block.
func (f TransitionFactor) validate(reg *Registry) error {
	targetVar, err := reg.StateVariable(f.Target)
	if err != nil {
		return err
	}
	condSize, err := f.Conditions.Size(reg)
	if err != nil {
		return fmt.Errorf("transition factor for variable %d: %w", f.Target, err)
	}
	want := targetVar.Size * condSize
	if len(f.Values) != want {
		return &ShapeMismatchError{
			What: fmt.Sprintf("transition factor for variable %d", f.Target),
			Want: want,
			Got:  len(f.Values),
		}
	}
	for k := 0; k < condSize; k++ {
		sum := 0.0
		for _, p := range f.Values[k*targetVar.Size : (k+1)*targetVar.Size] {
			sum += p
		}
		if math.Abs(sum-1) > NormTolerance {
			return &NotNormalizedError{Target: f.Target, Block: k, Sum: sum}
		}
	}
	return nil
}
