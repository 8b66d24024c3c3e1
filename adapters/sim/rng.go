package sim

import (
	"context"
	"math/rand"

	"gomdp/ports"
)

var _ ports.RNG = (*SeededStreams)(nil)

// SeededStreams derives deterministic random streams by folding the consumer
// name into the base seed, so separate consumers of one run never share a
// stream and replay never depends on scheduling.
type SeededStreams struct{}

// NewSeededStreams returns the standard stream deriver.
func NewSeededStreams() *SeededStreams {
	return &SeededStreams{}
}

// SeededStream creates a deterministic generator for a named consumer.
func (s *SeededStreams) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(deriveSeed(seed, name))), nil
}

// deriveSeed folds the name into the seed with a djb2 hash. Cheap, stable
// across processes, and good enough to separate streams.
func deriveSeed(seed int64, name string) int64 {
	if name == "" {
		return seed
	}
	return seed + int64(hashLabel(name))
}

func hashLabel(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c)
	}
	return hash
}
