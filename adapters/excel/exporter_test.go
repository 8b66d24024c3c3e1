package excel

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

func exportSetup(t *testing.T) *experiment.Setup {
	t.Helper()

	b := mdp.NewBuilder()
	b.SetName("export fixture")
	b.SetGamma(0.95)
	require.NoError(t, b.AddStateVariable(1, 3))
	require.NoError(t, b.AddActionVariable(2, 2))
	require.NoError(t, b.AddReward(7, mdp.Domain{1}, []float64{0, 1.5, 3}, nil))
	require.NoError(t, b.AddTransition(1, mdp.Domain{1}, []float64{
		0, 1, 0,
		0, 0, 1,
		1, 0, 0,
	}))
	problem, err := b.Finalize()
	require.NoError(t, err)

	return &experiment.Setup{
		Name:      "export fixture",
		Learner:   experiment.LearnerRandom,
		Episodes:  1,
		Timesteps: 2,
		Problem:   problem,
	}
}

func exportOutcomes() []experiment.Outcome {
	return []experiment.Outcome{
		{
			Episode:    0,
			Timestep:   0,
			ActTime:    1500 * time.Microsecond,
			UpdateTime: 250 * time.Microsecond,
			Actions:    []experiment.VarSetting{{ID: 2, Value: 1}},
			States:     []experiment.VarSetting{{ID: 1, Value: 0}},
			Rewards:    []experiment.FactorReward{{ID: 7, Value: 0}},
		},
		{
			Episode:    0,
			Timestep:   1,
			ActTime:    2 * time.Millisecond,
			UpdateTime: time.Millisecond,
			Actions:    []experiment.VarSetting{{ID: 2, Value: 0}},
			States:     []experiment.VarSetting{{ID: 1, Value: 1}},
			Rewards:    []experiment.FactorReward{{ID: 7, Value: 1.5}},
		},
	}
}

func TestHeadersFollowRegistryOrder(t *testing.T) {
	setup := exportSetup(t)

	headers := Headers(setup.Problem)
	assert.Equal(t, []string{
		"episode", "timestep", "act_ms", "update_ms",
		"action_2", "state_1", "reward_7", "total_reward",
	}, headers)
}

func TestExportCSVRoundTrip(t *testing.T) {
	setup := exportSetup(t)
	path := filepath.Join(t.TempDir(), "run.csv")

	require.NoError(t, NewRunExporter(path).Export(setup, exportOutcomes()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Headers(setup.Problem), rows[0])
	assert.Equal(t, []string{"0", "0", "1.500", "0.250", "1", "0", "0.000000", "0.000000"}, rows[1])
	assert.Equal(t, []string{"0", "1", "2.000", "1.000", "0", "1", "1.500000", "1.500000"}, rows[2])
}

func TestExportXLSXRoundTrip(t *testing.T) {
	setup := exportSetup(t)
	path := filepath.Join(t.TempDir(), "run.xlsx")

	require.NoError(t, NewRunExporter(path).Export(setup, exportOutcomes()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers(setup.Problem), rows[0])
	assert.Equal(t, "1.500000", rows[2][6])
}

func TestExportRejectsIncompleteOutcome(t *testing.T) {
	setup := exportSetup(t)
	outcomes := exportOutcomes()
	outcomes[1].States = nil

	err := NewRunExporter(filepath.Join(t.TempDir(), "run.csv")).Export(setup, outcomes)
	assert.ErrorContains(t, err, "does not record variable")
}

func TestExportRejectsNilProblem(t *testing.T) {
	err := NewRunExporter(filepath.Join(t.TempDir(), "run.xlsx")).Export(&experiment.Setup{}, nil)
	assert.Error(t, err)
}
