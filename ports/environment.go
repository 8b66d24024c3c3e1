package ports

import (
	"math/rand"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

// StepResult carries everything one environment step produces. State is the
// joint state the actions were applied in, NextState the state the
// environment moved to, and Rewards the factored rewards for acting in State.
type StepResult struct {
	State     []experiment.VarSetting
	NextState []experiment.VarSetting
	Rewards   []experiment.FactorReward
}

// Environment is a sampling view of a model: it holds a current joint state
// and advances it one transition per Act. Implementations are not safe for
// concurrent use; each run gets its own instance.
type Environment interface {
	// Reset returns the environment to the given joint state. A nil
	// assignment resets every state variable to zero. Partial assignments
	// override zero for the variables they name.
	Reset(assignment []experiment.VarSetting) error

	// Act applies a joint action, samples every transition factor once, and
	// returns the step result. Every action variable must be assigned
	// exactly once and in range.
	Act(actions []experiment.VarSetting) (*StepResult, error)

	// State returns the current joint state in registry order.
	State() []experiment.VarSetting
}

// EnvironmentFactory builds a fresh environment over a frozen model, drawing
// randomness from the given stream.
type EnvironmentFactory func(model *mdp.Model, rng *rand.Rand) (Environment, error)
