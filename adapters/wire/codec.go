// Package wire implements the binary encoding for models, experiment setups,
// and step outcomes. The format is deterministic: encoding the same value
// twice yields identical bytes, so payload hashes identify content. All
// integers are little-endian; floats travel as raw IEEE-754 bits and
// round-trip exactly.
//
// Decoding is structural first, semantic second: malformed or truncated
// bytes fail with a DecodeError naming the offset, while well-formed
// payloads that describe an invalid model fail with the model's own build
// errors, because every decoded model passes through Builder.Finalize.
package wire

import (
	"bytes"
	"fmt"

	"gomdp/domain/mdp"
	"gomdp/ports"
)

const formatVersion = 1

var modelMagic = []byte("FMDP")

// Codec exposes the model encoding behind ports.ModelCodec so services can
// stay free of wire-format details.
type Codec struct{}

var _ ports.ModelCodec = (*Codec)(nil)

// NewCodec creates a model codec.
func NewCodec() *Codec {
	return &Codec{}
}

func (*Codec) Encode(m *mdp.Model) ([]byte, error) {
	return EncodeModel(m)
}

func (*Codec) Decode(payload []byte) (*mdp.Model, error) {
	return DecodeModel(payload)
}

// EncodeModel serializes a finalized model.
func EncodeModel(m *mdp.Model) ([]byte, error) {
	if m == nil || m.Variables == nil {
		return nil, fmt.Errorf("encode: model is nil or not finalized")
	}

	w := &buffer{}
	w.b = append(w.b, modelMagic...)
	w.u16(formatVersion)
	w.str(m.Name)
	w.str(m.Description)
	w.f64(m.Gamma)

	writeVars := func(vars []mdp.Variable) {
		w.u32(uint32(len(vars)))
		for _, v := range vars {
			w.u32(uint32(v.ID))
			w.u32(uint32(v.Size))
		}
	}
	writeVars(m.Variables.StateVariables())
	writeVars(m.Variables.ActionVariables())

	w.u32(uint32(len(m.Rewards)))
	for _, f := range m.Rewards {
		w.u32(uint32(f.ID))
		writeDomain(w, f.Scope)
		w.floats(f.Values)
		w.floats(f.StdDev)
	}

	w.u32(uint32(len(m.Transitions)))
	for _, f := range m.Transitions {
		w.u32(uint32(f.Target))
		writeDomain(w, f.Conditions)
		w.floats(f.Values)
	}

	return w.b, nil
}

// DecodeModel parses and rebuilds a model from its encoded form. The decoded
// payload is replayed through a Builder, so the returned model carries the
// same guarantees as one built in process: validated shapes, normalized CPT
// blocks, full transition coverage.
func DecodeModel(payload []byte) (*mdp.Model, error) {
	s := &scanner{buf: payload}
	b, err := decodeInto(s)
	if err != nil {
		return nil, err
	}
	if err := s.done(); err != nil {
		return nil, err
	}
	return finalize(b)
}

// decodeInto parses one model payload from the scanner's current position
// into a fresh Builder, leaving the scanner just past the payload.
func decodeInto(s *scanner) (*mdp.Builder, error) {
	head, err := s.take(len(modelMagic), "magic")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(head, modelMagic) {
		return nil, &DecodeError{Offset: 0, What: fmt.Sprintf("bad magic %q", head)}
	}
	version, err := s.u16("version")
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, &DecodeError{Offset: len(modelMagic), What: fmt.Sprintf("unsupported version %d", version)}
	}

	b := mdp.NewBuilder()

	name, err := s.str("name")
	if err != nil {
		return nil, err
	}
	b.SetName(name)

	desc, err := s.str("description")
	if err != nil {
		return nil, err
	}
	b.SetDescription(desc)

	gamma, err := s.f64("gamma")
	if err != nil {
		return nil, err
	}
	b.SetGamma(gamma)

	readVars := func(what string, add func(mdp.VarID, int) error) error {
		n, err := s.count(what, 8)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			id, err := s.u32(what + " id")
			if err != nil {
				return err
			}
			size, err := s.u32(what + " size")
			if err != nil {
				return err
			}
			if err := add(mdp.VarID(id), int(size)); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
		}
		return nil
	}
	if err := readVars("state variable", b.AddStateVariable); err != nil {
		return nil, err
	}
	if err := readVars("action variable", b.AddActionVariable); err != nil {
		return nil, err
	}

	rewards, err := s.count("reward factor", 4)
	if err != nil {
		return nil, err
	}
	for i := 0; i < rewards; i++ {
		id, err := s.u32("reward id")
		if err != nil {
			return nil, err
		}
		scope, err := readDomain(s, "reward scope")
		if err != nil {
			return nil, err
		}
		values, err := s.floats("reward values")
		if err != nil {
			return nil, err
		}
		stdDev, err := s.floats("reward std_dev")
		if err != nil {
			return nil, err
		}
		if err := b.AddReward(int32(id), scope, values, stdDev); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
	}

	transitions, err := s.count("transition factor", 4)
	if err != nil {
		return nil, err
	}
	for i := 0; i < transitions; i++ {
		target, err := s.u32("transition target")
		if err != nil {
			return nil, err
		}
		conditions, err := readDomain(s, "transition conditions")
		if err != nil {
			return nil, err
		}
		values, err := s.floats("transition values")
		if err != nil {
			return nil, err
		}
		if err := b.AddTransition(mdp.VarID(target), conditions, values); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
	}

	return b, nil
}

func finalize(b *mdp.Builder) (*mdp.Model, error) {
	m, err := b.Finalize()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return m, nil
}

func writeDomain(w *buffer, d mdp.Domain) {
	w.u32(uint32(len(d)))
	for _, id := range d {
		w.u32(uint32(id))
	}
}

func readDomain(s *scanner, what string) (mdp.Domain, error) {
	n, err := s.count(what, 4)
	if err != nil {
		return nil, err
	}
	d := make(mdp.Domain, n)
	for i := range d {
		id, err := s.u32(what + " id")
		if err != nil {
			return nil, err
		}
		d[i] = mdp.VarID(id)
	}
	return d, nil
}
