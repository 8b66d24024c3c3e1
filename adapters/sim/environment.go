// Package sim samples frozen models: it advances a joint state one
// transition draw per step, evaluates the reward factors, and adds Gaussian
// noise where a factor declares uncertainty. All randomness flows through
// one seeded stream per environment, so a run replays exactly from its seed.
package sim

import (
	"fmt"
	"math/rand"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
	"gomdp/ports"
)

// minStdDev is the floor below which a reward factor's uncertainty is
// treated as zero and no noise is drawn.
const minStdDev = 1e-10

// Simulator is a sampling environment over one frozen model. Not safe for
// concurrent use; each run gets its own instance.
type Simulator struct {
	model *mdp.Model
	rng   *rand.Rand
	cur   map[mdp.VarID]int
	prev  map[mdp.VarID]int
	acts  map[mdp.VarID]int
}

// New builds a simulator positioned at the all-zero state.
func New(model *mdp.Model, rng *rand.Rand) (*Simulator, error) {
	if model == nil || model.Variables == nil {
		return nil, fmt.Errorf("sim: model is nil or not finalized")
	}
	if rng == nil {
		return nil, fmt.Errorf("sim: rng is required")
	}
	s := &Simulator{
		model: model,
		rng:   rng,
		cur:   make(map[mdp.VarID]int),
		prev:  make(map[mdp.VarID]int),
		acts:  make(map[mdp.VarID]int),
	}
	if err := s.Reset(nil); err != nil {
		return nil, err
	}
	return s, nil
}

// NewEnvironment adapts New to the environment factory signature.
func NewEnvironment(model *mdp.Model, rng *rand.Rand) (ports.Environment, error) {
	return New(model, rng)
}

// Reset returns the simulator to the all-zero state, then applies the given
// overrides. Unknown variables and out-of-range values are rejected.
func (s *Simulator) Reset(assignment []experiment.VarSetting) error {
	reg := s.model.Variables
	for _, v := range reg.StateVariables() {
		s.cur[v.ID] = 0
		s.prev[v.ID] = 0
	}
	for _, a := range assignment {
		v, err := reg.StateVariable(a.ID)
		if err != nil {
			return err
		}
		if a.Value < 0 || a.Value >= v.Size {
			return &mdp.IndexOutOfRangeError{Variable: a.ID, Value: a.Value, Size: v.Size}
		}
		s.cur[a.ID] = a.Value
		s.prev[a.ID] = a.Value
	}
	return nil
}

// State returns the current joint state in registry order.
func (s *Simulator) State() []experiment.VarSetting {
	return s.snapshot(s.cur)
}

// Act applies a joint action and samples one step. Every transition factor
// draws its target's next value from the block selected by the pre-step
// state and the actions; every reward factor is evaluated at the same
// pre-step assignment. The returned result carries the state acted in, the
// state reached, and the factored rewards.
func (s *Simulator) Act(actions []experiment.VarSetting) (*ports.StepResult, error) {
	reg := s.model.Variables
	if err := s.setActions(actions); err != nil {
		return nil, err
	}

	// The step reads the pre-step state throughout, so targets can update
	// in any order without feeding back into this step's draws.
	s.cur, s.prev = s.prev, s.cur

	for _, f := range s.model.Transitions {
		conditioning, err := s.values(f.Conditions)
		if err != nil {
			return nil, err
		}
		block, err := f.Distribution(reg, conditioning)
		if err != nil {
			return nil, err
		}
		s.cur[f.Target] = drawIndex(s.rng, block)
	}

	rewards := make([]experiment.FactorReward, 0, len(s.model.Rewards))
	for _, f := range s.model.Rewards {
		assignment, err := s.values(f.Scope)
		if err != nil {
			return nil, err
		}
		value, err := f.Value(reg, assignment)
		if err != nil {
			return nil, err
		}
		stdDev, err := f.Deviation(reg, assignment)
		if err != nil {
			return nil, err
		}
		if stdDev > minStdDev {
			value += stdDev * s.rng.NormFloat64()
		}
		rewards = append(rewards, experiment.FactorReward{ID: f.ID, Value: value})
	}

	return &ports.StepResult{
		State:     s.snapshot(s.prev),
		NextState: s.snapshot(s.cur),
		Rewards:   rewards,
	}, nil
}

// setActions validates the joint action and stores it for this step. Every
// action variable must appear exactly once with an in-range value.
func (s *Simulator) setActions(actions []experiment.VarSetting) error {
	reg := s.model.Variables
	if len(actions) != reg.NumAction() {
		return &mdp.ShapeMismatchError{What: "joint action", Want: reg.NumAction(), Got: len(actions)}
	}
	for id := range s.acts {
		delete(s.acts, id)
	}
	for _, a := range actions {
		v, err := reg.ActionVariable(a.ID)
		if err != nil {
			return err
		}
		if a.Value < 0 || a.Value >= v.Size {
			return &mdp.IndexOutOfRangeError{Variable: a.ID, Value: a.Value, Size: v.Size}
		}
		if _, dup := s.acts[a.ID]; dup {
			return &mdp.DuplicateIDError{ID: int32(a.ID), What: "joint action variable"}
		}
		s.acts[a.ID] = a.Value
	}
	return nil
}

// values resolves a factor domain against the pre-step state and the current
// actions, in domain order.
func (s *Simulator) values(d mdp.Domain) ([]int, error) {
	out := make([]int, len(d))
	for i, id := range d {
		if v, ok := s.acts[id]; ok {
			out[i] = v
			continue
		}
		if v, ok := s.prev[id]; ok {
			out[i] = v
			continue
		}
		return nil, &mdp.UnknownVariableError{ID: id}
	}
	return out, nil
}

func (s *Simulator) snapshot(state map[mdp.VarID]int) []experiment.VarSetting {
	vars := s.model.Variables.StateVariables()
	out := make([]experiment.VarSetting, 0, len(vars))
	for _, v := range vars {
		out = append(out, experiment.VarSetting{ID: v.ID, Value: state[v.ID]})
	}
	return out
}

// drawIndex inverts the CDF of one probability block: cell i is selected
// when the draw lands in [sum(p[:i]), sum(p[:i+1])). Zero-probability cells
// can never be selected. The final cell absorbs any rounding shortfall in
// the block sum.
func drawIndex(rng *rand.Rand, block []float64) int {
	draw := rng.Float64()
	cdf := 0.0
	for i, p := range block {
		cdf += p
		if draw < cdf {
			return i
		}
	}
	return len(block) - 1
}
