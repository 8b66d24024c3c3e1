package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomdp/domain/mdp"
)

func TestModelGeneratorDefaultConfig(t *testing.T) {
	model, err := NewModelGenerator(DefaultGeneratorConfig()).Generate()
	require.NoError(t, err)

	assert.Equal(t, 4, model.Variables.NumState())
	assert.Equal(t, 4, model.Variables.NumAction())
	assert.Len(t, model.Rewards, 4)
	assert.Len(t, model.Transitions, 4)

	// Machine 0 couples to machine 1's state.
	assert.Equal(t, mdp.Domain{1, 2, 5}, model.Transitions[0].Conditions)
	// The last machine wraps around to the first.
	assert.Equal(t, mdp.Domain{4, 1, 8}, model.Transitions[3].Conditions)

	for _, f := range model.Rewards {
		for _, sd := range f.StdDev {
			assert.Equal(t, 0.5, sd)
		}
	}
}

func TestModelGeneratorDeterministic(t *testing.T) {
	cfg := DefaultGeneratorConfig()

	a, err := NewModelGenerator(cfg).Generate()
	require.NoError(t, err)
	b, err := NewModelGenerator(cfg).Generate()
	require.NoError(t, err)
	assert.Equal(t, a.Rewards, b.Rewards)
	assert.Equal(t, a.Transitions, b.Transitions)

	cfg.Seed = 7
	c, err := NewModelGenerator(cfg).Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a.Rewards[0].Values, c.Rewards[0].Values)
}

func TestModelGeneratorSingleMachine(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Machines = 1

	model, err := NewModelGenerator(cfg).Generate()
	require.NoError(t, err)

	// With no neighbour the CPT conditions on own state and action only.
	require.Len(t, model.Transitions, 1)
	assert.Equal(t, mdp.Domain{1, 2}, model.Transitions[0].Conditions)
}

func TestModelGeneratorRejectsBadConfig(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Machines = 0
	_, err := NewModelGenerator(cfg).Generate()
	assert.Error(t, err)

	cfg = DefaultGeneratorConfig()
	cfg.StateSize = 1
	_, err = NewModelGenerator(cfg).Generate()
	assert.Error(t, err)
}

func TestModelGeneratorScalesUp(t *testing.T) {
	cfg := ModelGeneratorConfig{
		Machines:     8,
		StateSize:    3,
		ActionSize:   2,
		RewardScale:  5,
		RewardStdDev: 0,
		Gamma:        0.99,
		Seed:         1,
	}
	model, err := NewModelGenerator(cfg).Generate()
	require.NoError(t, err)
	assert.Equal(t, 8, model.Variables.NumState())

	// Blocks of every generated CPT pass the builder's normalization check,
	// so finalization succeeding is the real assertion; spot-check one block
	// anyway.
	f := model.Transitions[2]
	sum := 0.0
	for v := 0; v < 3; v++ {
		sum += f.Values[v]
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestCanonicalModelShape(t *testing.T) {
	model, err := CanonicalModel()
	require.NoError(t, err)

	assert.Equal(t, "Simple Test MDP", model.Name)
	assert.Equal(t, 0.9, model.Gamma)

	s1, err := model.Variables.StateVariable(1)
	require.NoError(t, err)
	assert.Equal(t, 2, s1.Size)
	s2, err := model.Variables.StateVariable(2)
	require.NoError(t, err)
	assert.Equal(t, 3, s2.Size)
	a4, err := model.Variables.ActionVariable(4)
	require.NoError(t, err)
	assert.Equal(t, 3, a4.Size)

	// Reward 1 spans state 1 and action 3 with a 0..3 ramp.
	require.Len(t, model.Rewards, 2)
	assert.Equal(t, mdp.Domain{1, 3}, model.Rewards[0].Scope)
	assert.Equal(t, []float64{0, 1, 2, 3}, model.Rewards[0].Values)

	// First conditioning block of state 1's CPT is the degenerate {0, 1}.
	require.Len(t, model.Transitions, 2)
	assert.Equal(t, 0.0, model.Transitions[0].Values[0])
	assert.Equal(t, 1.0, model.Transitions[0].Values[1])
}

func TestCanonicalSetupValidates(t *testing.T) {
	setup, err := CanonicalSetup()
	require.NoError(t, err)
	require.NoError(t, setup.Validate())
	assert.Equal(t, 1000, setup.Steps())
}
