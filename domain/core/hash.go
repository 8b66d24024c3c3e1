package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Short returns a truncated form for display
func (h Hash) Short() string {
	s := string(h)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// Domain-specific hash types
type (
	ModelHash   Hash
	ResultsHash Hash
)

// Constructors
func NewModelHash(data []byte) ModelHash     { return ModelHash(NewHash(data)) }
func NewResultsHash(data []byte) ResultsHash { return ResultsHash(NewHash(data)) }

// String conversions
func (h ModelHash) String() string   { return Hash(h).String() }
func (h ResultsHash) String() string { return Hash(h).String() }

func (h ModelHash) Short() string   { return Hash(h).Short() }
func (h ResultsHash) Short() string { return Hash(h).Short() }
