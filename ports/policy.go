package ports

import (
	"math/rand"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

// Policy chooses joint actions and learns from step results. Implementations
// are not safe for concurrent use; each run gets its own instance.
type Policy interface {
	// ChooseActions returns one value per action variable in the registry.
	ChooseActions(reg *mdp.Registry) []experiment.VarSetting

	// Observe feeds the result of the last step back to the learner.
	Observe(result *StepResult) error
}

// PolicyFactory builds the policy implementing one learner kind, drawing
// randomness from the given stream. Kinds without an implementation yet
// must return an error rather than a degraded policy.
type PolicyFactory func(kind experiment.LearnerKind, rng *rand.Rand) (Policy, error)
