package wire

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomdp/domain/experiment"
)

func referenceSetup(t *testing.T) *experiment.Setup {
	t.Helper()
	return &experiment.Setup{
		Name:        "smoke run",
		Description: "reference setup for codec tests",
		Learner:     experiment.LearnerRandom,
		Episodes:    5,
		Timesteps:   100,
		Problem:     referenceModel(t),
	}
}

func TestSetupRoundTrip(t *testing.T) {
	original := referenceSetup(t)

	payload, err := EncodeSetup(original)
	require.NoError(t, err)

	decoded, err := DecodeSetup(payload)
	require.NoError(t, err)

	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.Description, decoded.Description)
	assert.Equal(t, original.Learner, decoded.Learner)
	assert.Equal(t, original.Episodes, decoded.Episodes)
	assert.Equal(t, original.Timesteps, decoded.Timesteps)
	assert.Equal(t, original.Problem, decoded.Problem)
}

func TestEncodeSetupRejectsInvalid(t *testing.T) {
	s := referenceSetup(t)
	s.Episodes = 0
	_, err := EncodeSetup(s)
	assert.Error(t, err)
}

func TestDecodeSetupRejectsEveryTruncation(t *testing.T) {
	payload, err := EncodeSetup(referenceSetup(t))
	require.NoError(t, err)

	for i := 0; i < len(payload); i++ {
		_, err := DecodeSetup(payload[:i])
		require.Error(t, err, "prefix of %d bytes decoded", i)
	}
}

func TestDecodeSetupRejectsUnknownLearner(t *testing.T) {
	s := referenceSetup(t)
	payload, err := EncodeSetup(s)
	require.NoError(t, err)

	// The learner field sits after magic, version, and both strings.
	off := len(setupMagic) + 2 + 4 + len(s.Name) + 4 + len(s.Description)
	binary.LittleEndian.PutUint32(payload[off:], 99)

	_, err = DecodeSetup(payload)
	assert.Error(t, err)
}

func TestOutcomeRoundTrip(t *testing.T) {
	original := experiment.Outcome{
		Episode:    3,
		Timestep:   41,
		ActTime:    1234 * time.Nanosecond,
		UpdateTime: 98765 * time.Nanosecond,
		Actions:    []experiment.VarSetting{{ID: 3, Value: 1}, {ID: 4, Value: 2}},
		States:     []experiment.VarSetting{{ID: 1, Value: 0}, {ID: 2, Value: 2}},
		Rewards:    []experiment.FactorReward{{ID: 1, Value: 1.5}, {ID: 2, Value: -0.125}},
	}

	decoded, err := DecodeOutcome(EncodeOutcome(original))
	require.NoError(t, err)
	assert.Equal(t, original, *decoded)
}

func TestDecodeOutcomeRejectsEveryTruncation(t *testing.T) {
	payload := EncodeOutcome(experiment.Outcome{
		Episode:  1,
		Timestep: 2,
		Actions:  []experiment.VarSetting{{ID: 3, Value: 1}},
		States:   []experiment.VarSetting{{ID: 1, Value: 0}},
		Rewards:  []experiment.FactorReward{{ID: 1, Value: 0.5}},
	})

	for i := 0; i < len(payload); i++ {
		_, err := DecodeOutcome(payload[:i])
		require.Error(t, err, "prefix of %d bytes decoded", i)
	}
}

func TestDecodeOutcomeRejectsTrailingBytes(t *testing.T) {
	payload := EncodeOutcome(experiment.Outcome{
		Actions: []experiment.VarSetting{{ID: 3, Value: 0}},
		States:  []experiment.VarSetting{{ID: 1, Value: 0}},
		Rewards: []experiment.FactorReward{{ID: 1, Value: 0}},
	})
	payload = append(payload, 0x00)

	_, err := DecodeOutcome(payload)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.What, "trailing")
}
