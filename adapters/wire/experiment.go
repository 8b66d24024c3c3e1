package wire

import (
	"bytes"
	"fmt"
	"time"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

var setupMagic = []byte("FEXP")

// EncodeSetup serializes an experiment setup with its problem model embedded
// as a self-contained model payload, so the model half can be extracted and
// decoded on its own.
func EncodeSetup(s *experiment.Setup) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	problem, err := EncodeModel(s.Problem)
	if err != nil {
		return nil, err
	}

	w := &buffer{}
	w.b = append(w.b, setupMagic...)
	w.u16(formatVersion)
	w.str(s.Name)
	w.str(s.Description)
	w.u32(uint32(s.Learner))
	w.u32(uint32(s.Episodes))
	w.u32(uint32(s.Timesteps))
	w.bytes(problem)
	return w.b, nil
}

// DecodeSetup parses an experiment setup, rebuilding the embedded model
// through its builder.
func DecodeSetup(payload []byte) (*experiment.Setup, error) {
	s := &scanner{buf: payload}

	head, err := s.take(len(setupMagic), "magic")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(head, setupMagic) {
		return nil, &DecodeError{Offset: 0, What: fmt.Sprintf("bad magic %q", head)}
	}
	version, err := s.u16("version")
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, &DecodeError{Offset: len(setupMagic), What: fmt.Sprintf("unsupported version %d", version)}
	}

	setup := &experiment.Setup{}
	if setup.Name, err = s.str("name"); err != nil {
		return nil, err
	}
	if setup.Description, err = s.str("description"); err != nil {
		return nil, err
	}
	learner, err := s.u32("learner")
	if err != nil {
		return nil, err
	}
	setup.Learner = experiment.LearnerKind(learner)
	episodes, err := s.u32("episodes")
	if err != nil {
		return nil, err
	}
	setup.Episodes = int(episodes)
	timesteps, err := s.u32("timesteps")
	if err != nil {
		return nil, err
	}
	setup.Timesteps = int(timesteps)

	problem, err := s.bytes("problem")
	if err != nil {
		return nil, err
	}
	if err := s.done(); err != nil {
		return nil, err
	}
	if setup.Problem, err = DecodeModel(problem); err != nil {
		return nil, err
	}
	if err := setup.Validate(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return setup, nil
}

// EncodeOutcome serializes one step outcome. Outcome payloads carry no magic
// of their own; the result stream frames and types its records.
func EncodeOutcome(o experiment.Outcome) []byte {
	w := &buffer{}
	w.u32(uint32(o.Episode))
	w.u32(uint32(o.Timestep))
	w.u64(uint64(o.ActTime.Nanoseconds()))
	w.u64(uint64(o.UpdateTime.Nanoseconds()))
	writeSettings(w, o.Actions)
	writeSettings(w, o.States)
	w.u32(uint32(len(o.Rewards)))
	for _, r := range o.Rewards {
		w.u32(uint32(r.ID))
		w.f64(r.Value)
	}
	return w.b
}

// DecodeOutcome parses one step outcome payload.
func DecodeOutcome(payload []byte) (*experiment.Outcome, error) {
	s := &scanner{buf: payload}
	o := &experiment.Outcome{}

	episode, err := s.u32("episode")
	if err != nil {
		return nil, err
	}
	o.Episode = int(episode)
	timestep, err := s.u32("timestep")
	if err != nil {
		return nil, err
	}
	o.Timestep = int(timestep)

	actNanos, err := s.u64("act time")
	if err != nil {
		return nil, err
	}
	o.ActTime = time.Duration(actNanos)
	updateNanos, err := s.u64("update time")
	if err != nil {
		return nil, err
	}
	o.UpdateTime = time.Duration(updateNanos)

	if o.Actions, err = readSettings(s, "actions"); err != nil {
		return nil, err
	}
	if o.States, err = readSettings(s, "states"); err != nil {
		return nil, err
	}

	rewards, err := s.count("rewards", 12)
	if err != nil {
		return nil, err
	}
	o.Rewards = make([]experiment.FactorReward, rewards)
	for i := range o.Rewards {
		id, err := s.u32("reward id")
		if err != nil {
			return nil, err
		}
		value, err := s.f64("reward value")
		if err != nil {
			return nil, err
		}
		o.Rewards[i] = experiment.FactorReward{ID: int32(id), Value: value}
	}

	if err := s.done(); err != nil {
		return nil, err
	}
	return o, nil
}

func writeSettings(w *buffer, settings []experiment.VarSetting) {
	w.u32(uint32(len(settings)))
	for _, v := range settings {
		w.u32(uint32(v.ID))
		w.u32(uint32(v.Value))
	}
}

func readSettings(s *scanner, what string) ([]experiment.VarSetting, error) {
	n, err := s.count(what, 8)
	if err != nil {
		return nil, err
	}
	settings := make([]experiment.VarSetting, n)
	for i := range settings {
		id, err := s.u32(what + " id")
		if err != nil {
			return nil, err
		}
		value, err := s.u32(what + " value")
		if err != nil {
			return nil, err
		}
		settings[i] = experiment.VarSetting{ID: mdp.VarID(id), Value: int(value)}
	}
	return settings, nil
}
