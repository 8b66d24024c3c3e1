package mdp

import (
	"fmt"
	"math"
)

// DefaultGamma is the discount factor used by generators when a model does
// not specify one.
const DefaultGamma = 0.95

// Model is a complete factored MDP: metadata, variables, reward factors, and
// one transition factor per state variable. Fields are read-only once
// Finalize returns; mutating them discards the guarantees established at
// build time. A finalized model is safe for concurrent readers.
type Model struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Gamma       float64            `json:"gamma"`
	Variables   *Registry          `json:"-"`
	Rewards     []RewardFactor     `json:"rewards"`
	Transitions []TransitionFactor `json:"transitions"`
}

// TransitionFor returns the transition factor whose target is the given
// state variable.
func (m *Model) TransitionFor(target VarID) (TransitionFactor, bool) {
	for _, t := range m.Transitions {
		if t.Target == target {
			return t, true
		}
	}
	return TransitionFactor{}, false
}

// RewardFor returns the reward factor with the given id.
func (m *Model) RewardFor(id int32) (RewardFactor, bool) {
	for _, r := range m.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return RewardFactor{}, false
}

// Builder assembles a Model incrementally: variables first, then factors
// referencing them. Factor validation happens eagerly at each Add against
// the registry built so far, and again as a whole in Finalize. A Builder is
// owned by a single goroutine and is not reusable after Finalize succeeds.
type Builder struct {
	name        string
	description string
	gamma       float64
	gammaSet    bool
	registry    *Registry
	rewards     []RewardFactor
	transitions []TransitionFactor
	rewardIDs   map[int32]struct{}
	targets     map[VarID]struct{}
}

// NewBuilder returns an empty model builder.
func NewBuilder() *Builder {
	return &Builder{
		registry:  NewRegistry(),
		rewardIDs: make(map[int32]struct{}),
		targets:   make(map[VarID]struct{}),
	}
}

// SetName sets the model name.
func (b *Builder) SetName(name string) { b.name = name }

// SetDescription sets the model description.
func (b *Builder) SetDescription(desc string) { b.description = desc }

// SetGamma sets the discount factor. The bound check happens in Finalize.
func (b *Builder) SetGamma(gamma float64) {
	b.gamma = gamma
	b.gammaSet = true
}

// AddStateVariable registers a state variable.
func (b *Builder) AddStateVariable(id VarID, size int) error {
	return b.registry.AddStateVariable(id, size)
}

// AddActionVariable registers an action variable.
func (b *Builder) AddActionVariable(id VarID, size int) error {
	return b.registry.AddActionVariable(id, size)
}

// AddReward builds and appends a reward factor over variables already
// registered. An empty stdDev means zero uncertainty everywhere.
func (b *Builder) AddReward(id int32, scope Domain, values, stdDev []float64) error {
	if _, ok := b.rewardIDs[id]; ok {
		return &DuplicateIDError{ID: id, What: "reward factor"}
	}
	f, err := NewRewardFactor(b.registry, id, scope, values, stdDev)
	if err != nil {
		return err
	}
	b.rewards = append(b.rewards, f)
	b.rewardIDs[id] = struct{}{}
	return nil
}

// AddTransition builds and appends the transition factor for one target
// state variable. Each state variable takes at most one transition factor.
func (b *Builder) AddTransition(target VarID, conditions Domain, values []float64) error {
	if _, ok := b.targets[target]; ok {
		return &DuplicateIDError{ID: int32(target), What: "transition target"}
	}
	f, err := NewTransitionFactor(b.registry, target, conditions, values)
	if err != nil {
		return err
	}
	b.transitions = append(b.transitions, f)
	b.targets[target] = struct{}{}
	return nil
}

// Finalize runs the whole-model validation pass and freezes the result. It
// fails fast on the first problem: gamma unset or outside [0,1), a missing
// variable/factor, a factor whose domain no longer resolves, a denormalized
// CPT block, or a state variable with no transition factor. The returned
// Model owns deep copies of the registry and factor lists.
func (b *Builder) Finalize() (*Model, error) {
	if !b.gammaSet || math.IsNaN(b.gamma) {
		return nil, fmt.Errorf("%w: gamma is not specified", ErrInvalidModel)
	}
	if b.gamma < 0 || b.gamma >= 1 {
		return nil, fmt.Errorf("%w: gamma must be in [0,1), got %v", ErrInvalidModel, b.gamma)
	}
	if b.registry.NumState() == 0 {
		return nil, fmt.Errorf("%w: no state variables", ErrInvalidModel)
	}
	if b.registry.NumAction() == 0 {
		return nil, fmt.Errorf("%w: no action variables", ErrInvalidModel)
	}
	if len(b.rewards) == 0 {
		return nil, fmt.Errorf("%w: no reward factors", ErrInvalidModel)
	}
	for _, f := range b.rewards {
		if err := f.validate(b.registry); err != nil {
			return nil, err
		}
	}
	for _, f := range b.transitions {
		if err := f.validate(b.registry); err != nil {
			return nil, err
		}
	}
	// Every state variable must be the target of exactly one CPT; AddTransition
	// already rejects duplicates, so only coverage remains.
	for _, v := range b.registry.StateVariables() {
		if _, ok := b.targets[v.ID]; !ok {
			return nil, fmt.Errorf("%w: state variable %d has no transition factor", ErrInvalidModel, v.ID)
		}
	}

	return &Model{
		Name:        b.name,
		Description: b.description,
		Gamma:       b.gamma,
		Variables:   b.registry.clone(),
		Rewards:     append([]RewardFactor(nil), b.rewards...),
		Transitions: append([]TransitionFactor(nil), b.transitions...),
	}, nil
}
