package ports

import (
	"context"
	"math/rand"
)

// RNG provides seeded random streams so runs replay deterministically.
// Separate consumers (environment sampling, action selection) get
// independently named streams so adding draws to one never shifts the other.
type RNG interface {
	// SeededStream creates a deterministic generator for a named consumer.
	// The same name and seed always yield the same draw sequence.
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
