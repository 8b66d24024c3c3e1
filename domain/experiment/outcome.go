package experiment

import (
	"time"

	"gomdp/domain/mdp"
)

// VarSetting assigns one value to one variable. Slices of settings carry
// joint states and joint actions through the run pipeline.
type VarSetting struct {
	ID    mdp.VarID `json:"id"`
	Value int       `json:"value"`
}

// FactorReward is the reward emitted by a single factor during one step.
type FactorReward struct {
	ID    int32   `json:"id"`
	Value float64 `json:"value"`
}

// Outcome records everything observed during a single timestep: the state
// the agent acted in, the joint action it chose, the factored rewards it
// received, and how long acting and learning took.
type Outcome struct {
	Episode    int            `json:"episode"`
	Timestep   int            `json:"timestep"`
	ActTime    time.Duration  `json:"act_ns"`
	UpdateTime time.Duration  `json:"update_ns"`
	Actions    []VarSetting   `json:"actions"`
	States     []VarSetting   `json:"states"`
	Rewards    []FactorReward `json:"rewards"`
}

// TotalReward sums the factored rewards of the step.
func (o *Outcome) TotalReward() float64 {
	var total float64
	for _, r := range o.Rewards {
		total += r.Value
	}
	return total
}

// Setting returns the recorded value for one variable, scanning actions
// first, then states. The bool reports whether the variable was recorded.
func (o *Outcome) Setting(id mdp.VarID) (int, bool) {
	for _, a := range o.Actions {
		if a.ID == id {
			return a.Value, true
		}
	}
	for _, s := range o.States {
		if s.ID == id {
			return s.Value, true
		}
	}
	return 0, false
}
