package experiment

import (
	"crypto/sha256"
	"fmt"

	"gomdp/domain/core"
)

// Manifest pins down everything a run depends on. It is written before the
// first outcome so a finished stream can always be traced back to the exact
// model bytes, learner, budget, and seed that produced it.
type Manifest struct {
	RunID       core.RunID     `json:"run_id"`
	ModelHash   core.ModelHash `json:"model_hash"`
	Learner     LearnerKind    `json:"learner"`
	Episodes    int            `json:"episodes"`
	Timesteps   int            `json:"timesteps"`
	Seed        int64          `json:"seed"`
	CodeVersion string         `json:"code_version"`
	Fingerprint core.Hash      `json:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// NewManifest computes the determinism fingerprint and stamps the manifest.
func NewManifest(runID core.RunID, modelHash core.ModelHash, setup *Setup, seed int64, codeVersion string) *Manifest {
	fingerprint := computeFingerprint(modelHash, setup.Learner, setup.Episodes, setup.Timesteps, seed, codeVersion)

	return &Manifest{
		RunID:       runID,
		ModelHash:   modelHash,
		Learner:     setup.Learner,
		Episodes:    setup.Episodes,
		Timesteps:   setup.Timesteps,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: fingerprint,
		CreatedAt:   core.Now(),
	}
}

// computeFingerprint hashes every determinism parameter into one value.
// Two runs with equal fingerprints must replay identically.
func computeFingerprint(modelHash core.ModelHash, learner LearnerKind,
	episodes, timesteps int, seed int64, codeVersion string) core.Hash {

	data := fmt.Sprintf("model:%s|learner:%s|episodes:%d|timesteps:%d|seed:%d|code:%s",
		modelHash, learner, episodes, timesteps, seed, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// Verify recomputes the fingerprint and compares it to the stored one.
func (m *Manifest) Verify() error {
	want := computeFingerprint(m.ModelHash, m.Learner, m.Episodes, m.Timesteps, m.Seed, m.CodeVersion)
	if want != m.Fingerprint {
		return fmt.Errorf("%w: manifest fingerprint %s, recomputed %s",
			core.ErrHashMismatch, m.Fingerprint.Short(), want.Short())
	}
	return nil
}

// Validate checks the manifest is complete.
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("manifest", "run_id cannot be empty")
	}
	if m.ModelHash == "" {
		return core.NewValidationError("manifest", "model_hash cannot be empty")
	}
	if m.Episodes <= 0 || m.Timesteps <= 0 {
		return core.NewValidationError("manifest", "episode and timestep budgets must be positive")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("manifest", "code_version cannot be empty")
	}
	return nil
}
