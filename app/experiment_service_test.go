package app

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/internal/testkit"
	"gomdp/ports"
)

func newTestService(t *testing.T) *ExperimentService {
	t.Helper()
	kit := testkit.NewTestKit()
	return NewExperimentService(kit.EnvironmentFactory(), kit.PolicyFactory(), kit.RNGAdapter())
}

func smallSetup(t *testing.T) *experiment.Setup {
	t.Helper()
	setup, err := testkit.CanonicalSetup()
	require.NoError(t, err)
	setup.Episodes = 2
	setup.Timesteps = 5
	return setup
}

// stripTimes zeroes the wall-clock fields so trajectories compare by
// content.
func stripTimes(outcomes []experiment.Outcome) []experiment.Outcome {
	out := make([]experiment.Outcome, len(outcomes))
	for i, o := range outcomes {
		o.ActTime, o.UpdateTime = 0, 0
		out[i] = o
	}
	return out
}

func TestRunProducesConfiguredSteps(t *testing.T) {
	service := newTestService(t)
	setup := smallSetup(t)

	report, err := service.Run(context.Background(), RunRequest{
		Setup:       setup,
		Seed:        42,
		ModelHash:   core.NewModelHash([]byte("payload")),
		CodeVersion: "test",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Outcomes, setup.Steps())

	// Outcomes arrive in episode/timestep order and restart per episode.
	i := 0
	for episode := 0; episode < setup.Episodes; episode++ {
		for timestep := 0; timestep < setup.Timesteps; timestep++ {
			assert.Equal(t, episode, report.Outcomes[i].Episode)
			assert.Equal(t, timestep, report.Outcomes[i].Timestep)
			i++
		}
	}

	// Every outcome carries one setting per variable and one reward per
	// factor.
	reg := setup.Problem.Variables
	for _, o := range report.Outcomes {
		assert.Len(t, o.Actions, reg.NumAction())
		assert.Len(t, o.States, reg.NumState())
		assert.Len(t, o.Rewards, len(setup.Problem.Rewards))
	}

	require.NotNil(t, report.Manifest)
	assert.Equal(t, report.RunID, report.Manifest.RunID)
	assert.Equal(t, int64(42), report.Manifest.Seed)
	assert.NoError(t, report.Manifest.Verify())
}

func TestRunSameSeedSameTrajectory(t *testing.T) {
	service := newTestService(t)
	setup := smallSetup(t)

	first, err := service.Run(context.Background(), RunRequest{Setup: setup, Seed: 7, ModelHash: core.NewModelHash([]byte("p")), CodeVersion: "test"})
	require.NoError(t, err)
	second, err := service.Run(context.Background(), RunRequest{Setup: setup, Seed: 7, ModelHash: core.NewModelHash([]byte("p")), CodeVersion: "test"})
	require.NoError(t, err)

	assert.Equal(t, stripTimes(first.Outcomes), stripTimes(second.Outcomes))
	assert.Equal(t, first.TotalReward, second.TotalReward)

	third, err := service.Run(context.Background(), RunRequest{Setup: setup, Seed: 8, ModelHash: core.NewModelHash([]byte("p")), CodeVersion: "test"})
	require.NoError(t, err)
	assert.NotEqual(t, stripTimes(first.Outcomes), stripTimes(third.Outcomes))
}

func TestRunWritesSink(t *testing.T) {
	service := newTestService(t)
	setup := smallSetup(t)
	sink := testkit.NewMemoryResultSink()

	report, err := service.Run(context.Background(), RunRequest{
		Setup:       setup,
		Seed:        3,
		ModelHash:   core.NewModelHash([]byte("p")),
		CodeVersion: "test",
		Sink:        sink,
	})
	require.NoError(t, err)

	assert.Same(t, setup, sink.Setup())
	assert.Equal(t, report.Outcomes, sink.Outcomes())
	assert.False(t, sink.Closed(), "the caller owns the sink lifecycle")
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	service := newTestService(t)

	_, err := service.Run(context.Background(), RunRequest{Seed: 1})
	assert.Error(t, err)

	setup := smallSetup(t)
	setup.Episodes = 0
	_, err = service.Run(context.Background(), RunRequest{Setup: setup, Seed: 1})
	assert.Error(t, err)
}

func TestRunUnimplementedLearner(t *testing.T) {
	service := newTestService(t)
	setup := smallSetup(t)
	setup.Learner = experiment.LearnerBayesQ

	_, err := service.Run(context.Background(), RunRequest{Setup: setup, Seed: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestRunHonorsCancellation(t *testing.T) {
	service := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Run(ctx, RunRequest{Setup: smallSetup(t), Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBatchReportsInSeedOrder(t *testing.T) {
	service := newTestService(t)
	setup := smallSetup(t)

	reports, err := service.RunBatch(context.Background(), BatchRequest{
		Setup:       setup,
		Seeds:       []int64{11, 12, 11},
		ModelHash:   core.NewModelHash([]byte("p")),
		CodeVersion: "test",
		Concurrency: 2,
	})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	for i, report := range reports {
		require.NotNil(t, report, "report %d", i)
		assert.Len(t, report.Outcomes, setup.Steps())
	}
	assert.Equal(t, int64(11), reports[0].Manifest.Seed)
	assert.Equal(t, int64(12), reports[1].Manifest.Seed)

	// Runs of the same seed replay the same trajectory even under a
	// concurrent batch.
	assert.Equal(t, stripTimes(reports[0].Outcomes), stripTimes(reports[2].Outcomes))
	assert.NotEqual(t, stripTimes(reports[0].Outcomes), stripTimes(reports[1].Outcomes))
}

func TestRunBatchJoinsFailures(t *testing.T) {
	kit := testkit.NewTestKit()
	failing := func(kind experiment.LearnerKind, rng *rand.Rand) (ports.Policy, error) {
		return nil, fmt.Errorf("policy construction broke")
	}
	service := NewExperimentService(kit.EnvironmentFactory(), failing, kit.RNGAdapter())

	reports, err := service.RunBatch(context.Background(), BatchRequest{
		Setup: smallSetup(t),
		Seeds: []int64{1, 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed 1")
	assert.Contains(t, err.Error(), "seed 2")
	for _, report := range reports {
		assert.Nil(t, report)
	}
}

func TestRunBatchRejectsEmptySeedList(t *testing.T) {
	service := newTestService(t)
	_, err := service.RunBatch(context.Background(), BatchRequest{Setup: smallSetup(t)})
	assert.Error(t, err)
}
