package mdp

import "fmt"

// RewardFactor assigns an expected reward and an uncertainty to every joint
// assignment of its scope. Values are arbitrary scalars, not a distribution;
// no normalization applies. Immutable once built.
type RewardFactor struct {
	ID     int32     `json:"id"`
	Scope  Domain    `json:"domain"`
	Values []float64 `json:"values"`
	StdDev []float64 `json:"std_dev"`
}

// NewRewardFactor validates the factor against the registry and copies its
// inputs so the factor owns them exclusively. An empty stdDev is accepted as
// shorthand for zero uncertainty everywhere.
func NewRewardFactor(reg *Registry, id int32, scope Domain, values, stdDev []float64) (RewardFactor, error) {
	size, err := scope.Size(reg)
	if err != nil {
		return RewardFactor{}, fmt.Errorf("reward factor %d: %w", id, err)
	}
	if len(values) != size {
		return RewardFactor{}, &ShapeMismatchError{
			What: fmt.Sprintf("reward factor %d", id),
			Want: size,
			Got:  len(values),
		}
	}
	if len(stdDev) == 0 {
		stdDev = make([]float64, size)
	} else if len(stdDev) != size {
		return RewardFactor{}, &ShapeMismatchError{
			What: fmt.Sprintf("reward factor %d std_dev", id),
			Want: size,
			Got:  len(stdDev),
		}
	}
	return RewardFactor{
		ID:     id,
		Scope:  append(Domain(nil), scope...),
		Values: append([]float64(nil), values...),
		StdDev: append([]float64(nil), stdDev...),
	}, nil
}

// Value returns the expected reward for a joint assignment of the scope.
func (f RewardFactor) Value(reg *Registry, assignment []int) (float64, error) {
	idx, err := f.Scope.FlatIndex(reg, assignment)
	if err != nil {
		return 0, err
	}
	return f.Values[idx], nil
}

// Deviation returns the reward standard deviation for a joint assignment.
func (f RewardFactor) Deviation(reg *Registry, assignment []int) (float64, error) {
	idx, err := f.Scope.FlatIndex(reg, assignment)
	if err != nil {
		return 0, err
	}
	return f.StdDev[idx], nil
}

// validate re-checks the factor against a registry. Used by Finalize for the
// whole-model pass.
func (f RewardFactor) validate(reg *Registry) error {
	size, err := f.Scope.Size(reg)
	if err != nil {
		return fmt.Errorf("reward factor %d: %w", f.ID, err)
	}
	if len(f.Values) != size {
		return &ShapeMismatchError{What: fmt.Sprintf("reward factor %d", f.ID), Want: size, Got: len(f.Values)}
	}
	if len(f.StdDev) != size {
		return &ShapeMismatchError{What: fmt.Sprintf("reward factor %d std_dev", f.ID), Want: size, Got: len(f.StdDev)}
	}
	return nil
}
