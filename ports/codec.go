package ports

import (
	"gomdp/domain/mdp"
)

// ModelCodec translates between finalized models and their wire payloads.
// Decode must reject payloads that do not describe a valid model, so a
// decoded model carries the same guarantees as a freshly finalized one.
type ModelCodec interface {
	Encode(m *mdp.Model) ([]byte, error)
	Decode(payload []byte) (*mdp.Model, error)
}
