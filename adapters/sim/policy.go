package sim

import (
	"fmt"
	"math/rand"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
	"gomdp/ports"
)

// RandomPolicy chooses every action variable uniformly at random. It is the
// baseline learner: stateless, with nothing to update between steps.
type RandomPolicy struct {
	rng *rand.Rand
}

// NewRandomPolicy builds a random policy over the given stream.
func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	return &RandomPolicy{rng: rng}
}

// ChooseActions returns one uniform draw per action variable, in registry
// order.
func (p *RandomPolicy) ChooseActions(reg *mdp.Registry) []experiment.VarSetting {
	vars := reg.ActionVariables()
	actions := make([]experiment.VarSetting, 0, len(vars))
	for _, v := range vars {
		actions = append(actions, experiment.VarSetting{ID: v.ID, Value: p.rng.Intn(v.Size)})
	}
	return actions
}

// Observe is a no-op; a random policy learns nothing.
func (p *RandomPolicy) Observe(*ports.StepResult) error {
	return nil
}

// PolicyFor builds the policy implementing one learner kind. Kinds without
// an implementation fail loudly rather than degrade to random.
func PolicyFor(kind experiment.LearnerKind, rng *rand.Rand) (ports.Policy, error) {
	switch kind {
	case experiment.LearnerRandom:
		return NewRandomPolicy(rng), nil
	default:
		return nil, fmt.Errorf("sim: learner %s is not implemented", kind)
	}
}
