package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

// fitModel builds a single-variable model: one binary state, one binary
// action, the given CPT over the state alone, and a reward over the state
// alone with values {1, 2} and the given uncertainty.
func fitModel(t *testing.T, cpt []float64, rewardStdDev float64) *mdp.Model {
	t.Helper()

	b := mdp.NewBuilder()
	b.SetName("fit fixture")
	b.SetGamma(0.9)
	require.NoError(t, b.AddStateVariable(1, 2))
	require.NoError(t, b.AddActionVariable(2, 2))
	require.NoError(t, b.AddReward(1, mdp.Domain{1}, []float64{1, 2}, []float64{rewardStdDev, rewardStdDev}))
	require.NoError(t, b.AddTransition(1, mdp.Domain{1}, cpt))

	model, err := b.Finalize()
	require.NoError(t, err)
	return model
}

func step(episode, timestep, state int, reward float64) experiment.Outcome {
	return experiment.Outcome{
		Episode:  episode,
		Timestep: timestep,
		Actions:  []experiment.VarSetting{{ID: 2, Value: 0}},
		States:   []experiment.VarSetting{{ID: 1, Value: state}},
		Rewards:  []experiment.FactorReward{{ID: 1, Value: reward}},
	}
}

// statesToOutcomes renders one episode's state trajectory with exact
// deterministic rewards (state 0 pays 1, state 1 pays 2).
func statesToOutcomes(episode int, states []int) []experiment.Outcome {
	outcomes := make([]experiment.Outcome, len(states))
	for i, s := range states {
		outcomes[i] = step(episode, i, s, float64(s+1))
	}
	return outcomes
}

func TestCheckPassesMatchingRun(t *testing.T) {
	model := fitModel(t, []float64{0.5, 0.5, 0.5, 0.5}, 0)

	// Period-four trajectory: every block sees both successors equally, the
	// exact frequencies a fair coin predicts.
	states := make([]int, 80)
	for i := range states {
		states[i] = []int{0, 0, 1, 1}[i%4]
	}
	report, err := NewModelFit(0).Check(model, statesToOutcomes(0, states))
	require.NoError(t, err)

	assert.True(t, report.Passed)
	require.Len(t, report.Transitions, 1)
	assert.True(t, report.Transitions[0].Passed)
	assert.Greater(t, report.Transitions[0].Samples, 0)
	assert.InDelta(t, 1.0, report.Transitions[0].PValue, 0.2)
	require.Len(t, report.Rewards, 1)
	assert.True(t, report.Rewards[0].Passed)
	assert.Equal(t, 80, report.Steps)
}

func TestCheckFailsSkewedTransitions(t *testing.T) {
	model := fitModel(t, []float64{0.5, 0.5, 0.5, 0.5}, 0)

	// A strict alternation is maximally far from a fair coin: every visit to
	// each block lands on the same successor.
	states := make([]int, 60)
	for i := range states {
		states[i] = i % 2
	}
	report, err := NewModelFit(0).Check(model, statesToOutcomes(0, states))
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.Transitions, 1)
	assert.False(t, report.Transitions[0].Passed)
	assert.Less(t, report.Transitions[0].PValue, 0.001)
	assert.Zero(t, report.Transitions[0].Impossible)
}

func TestCheckFlagsImpossibleTransition(t *testing.T) {
	// The model says each state is absorbing, yet the run flips once.
	model := fitModel(t, []float64{1, 0, 0, 1}, 0)

	states := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	report, err := NewModelFit(0).Check(model, statesToOutcomes(0, states))
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.Transitions, 1)
	assert.Equal(t, 1, report.Transitions[0].Impossible)
	assert.Zero(t, report.Transitions[0].PValue)
}

func TestCheckIgnoresEpisodeBoundaries(t *testing.T) {
	// Absorbing chains, but episode 1 starts in the other state. The jump
	// across the boundary must not count as a transition sample.
	model := fitModel(t, []float64{1, 0, 0, 1}, 0)

	outcomes := statesToOutcomes(0, []int{0, 0, 0, 0, 0, 0})
	outcomes = append(outcomes, statesToOutcomes(1, []int{1, 1, 1, 1, 1, 1})...)

	report, err := NewModelFit(0).Check(model, outcomes)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Zero(t, report.Transitions[0].Impossible)
}

func TestCheckDeterministicRewardMismatch(t *testing.T) {
	model := fitModel(t, []float64{1, 0, 0, 1}, 0)

	outcomes := statesToOutcomes(0, []int{0, 0, 0, 0, 0, 0})
	outcomes[3].Rewards[0].Value = 1.5 // model says exactly 1

	report, err := NewModelFit(0).Check(model, outcomes)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.Rewards, 1)
	assert.False(t, report.Rewards[0].Passed)
	assert.True(t, math.IsInf(report.Rewards[0].WorstZ, 1))
}

func TestCheckNoisyRewards(t *testing.T) {
	model := fitModel(t, []float64{1, 0, 0, 1}, 1.0)

	t.Run("on-target mean passes", func(t *testing.T) {
		outcomes := statesToOutcomes(0, []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
		// Symmetric noise around the expectation keeps the mean exact.
		for i := range outcomes {
			outcomes[i].Rewards[0].Value = 1 + []float64{0.5, -0.5}[i%2]
		}
		report, err := NewModelFit(0).Check(model, outcomes)
		require.NoError(t, err)
		assert.True(t, report.Rewards[0].Passed)
	})

	t.Run("shifted mean fails", func(t *testing.T) {
		outcomes := statesToOutcomes(0, []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
		for i := range outcomes {
			outcomes[i].Rewards[0].Value = 6 // five standard deviations high
		}
		report, err := NewModelFit(0).Check(model, outcomes)
		require.NoError(t, err)
		assert.False(t, report.Rewards[0].Passed)
		assert.Greater(t, math.Abs(report.Rewards[0].WorstZ), 5.0)
	})
}

func TestCheckSparseDataIsInconclusive(t *testing.T) {
	model := fitModel(t, []float64{0.5, 0.5, 0.5, 0.5}, 0)

	report, err := NewModelFit(0).Check(model, statesToOutcomes(0, []int{0, 1, 0}))
	require.NoError(t, err)

	// Two samples per block is below the testable threshold.
	assert.True(t, report.Passed)
	assert.Equal(t, 1.0, report.Transitions[0].PValue)
}

func TestCheckRejectsIncompleteOutcomes(t *testing.T) {
	model := fitModel(t, []float64{0.5, 0.5, 0.5, 0.5}, 0)

	outcomes := statesToOutcomes(0, []int{0, 1, 0, 1, 0, 1})
	outcomes[2].States = nil

	_, err := NewModelFit(0).Check(model, outcomes)
	assert.Error(t, err)
}
