package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomdp/domain/mdp"
)

func tinyProblem(t *testing.T) *mdp.Model {
	t.Helper()

	b := mdp.NewBuilder()
	b.SetName("tiny")
	b.SetGamma(0.9)
	require.NoError(t, b.AddStateVariable(1, 2))
	require.NoError(t, b.AddActionVariable(2, 2))
	require.NoError(t, b.AddReward(1, mdp.Domain{1, 2}, []float64{0, 1, 2, 3}, nil))
	require.NoError(t, b.AddTransition(1, mdp.Domain{1, 2}, []float64{
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
	}))

	model, err := b.Finalize()
	require.NoError(t, err)
	return model
}

func TestSetupValidate(t *testing.T) {
	valid := func(t *testing.T) *Setup {
		return &Setup{
			Name:      "smoke",
			Learner:   LearnerRandom,
			Episodes:  3,
			Timesteps: 10,
			Problem:   tinyProblem(t),
		}
	}

	t.Run("valid setup passes", func(t *testing.T) {
		assert.NoError(t, valid(t).Validate())
	})

	t.Run("empty name rejected", func(t *testing.T) {
		s := valid(t)
		s.Name = ""
		assert.Error(t, s.Validate())
	})

	t.Run("unknown learner rejected", func(t *testing.T) {
		s := valid(t)
		s.Learner = LearnerKind(99)
		assert.Error(t, s.Validate())
	})

	t.Run("zero episodes rejected", func(t *testing.T) {
		s := valid(t)
		s.Episodes = 0
		assert.Error(t, s.Validate())
	})

	t.Run("negative timesteps rejected", func(t *testing.T) {
		s := valid(t)
		s.Timesteps = -1
		assert.Error(t, s.Validate())
	})

	t.Run("missing problem rejected", func(t *testing.T) {
		s := valid(t)
		s.Problem = nil
		assert.Error(t, s.Validate())
	})
}

func TestSetupSteps(t *testing.T) {
	s := &Setup{Episodes: 4, Timesteps: 25}
	assert.Equal(t, 100, s.Steps())
}

func TestParseLearner(t *testing.T) {
	tests := []struct {
		input   string
		want    LearnerKind
		wantErr bool
	}{
		{"random", LearnerRandom, false},
		{"Random", LearnerRandom, false},
		{"  q  ", LearnerQ, false},
		{"bayes-q", LearnerBayesQ, false},
		{"bayes-model", LearnerBayesModel, false},
		{"sarsa", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLearner(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		assert.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestLearnerRoundTrip(t *testing.T) {
	for _, kind := range []LearnerKind{LearnerRandom, LearnerQ, LearnerBayesQ, LearnerBayesModel} {
		parsed, err := ParseLearner(kind.String())
		assert.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
}

func TestOutcomeTotalReward(t *testing.T) {
	o := Outcome{
		Rewards: []FactorReward{
			{ID: 1, Value: 1.5},
			{ID: 2, Value: -0.5},
			{ID: 3, Value: 2.0},
		},
	}
	assert.InDelta(t, 3.0, o.TotalReward(), 1e-12)

	empty := Outcome{}
	assert.Zero(t, empty.TotalReward())
}

func TestOutcomeSetting(t *testing.T) {
	o := Outcome{
		Actions: []VarSetting{{ID: 3, Value: 1}},
		States:  []VarSetting{{ID: 1, Value: 0}, {ID: 2, Value: 2}},
	}

	v, ok := o.Setting(3)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = o.Setting(2)
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = o.Setting(9)
	assert.False(t, ok)
}
