package testkit

import (
	"fmt"
	"math/rand"

	"gomdp/domain/mdp"
)

// ModelGeneratorConfig configures the synthetic model generator.
type ModelGeneratorConfig struct {
	Machines     int     `json:"machines"`       // state/action pairs in the ring
	StateSize    int     `json:"state_size"`     // cardinality of each state variable
	ActionSize   int     `json:"action_size"`    // cardinality of each action variable
	RewardScale  float64 `json:"reward_scale"`   // rewards drawn from [0, scale)
	RewardStdDev float64 `json:"reward_std_dev"` // uncertainty on every reward cell
	Gamma        float64 `json:"gamma"`
	Seed         int64   `json:"seed"`
}

// DefaultGeneratorConfig returns a small ring that still exercises factored
// structure: every CPT couples two neighbouring machines.
func DefaultGeneratorConfig() ModelGeneratorConfig {
	return ModelGeneratorConfig{
		Machines:     4,
		StateSize:    2,
		ActionSize:   2,
		RewardScale:  10,
		RewardStdDev: 0.5,
		Gamma:        0.9,
		Seed:         42,
	}
}

// ModelGenerator builds synthetic ring-of-machines models. Machine i owns
// one state and one action variable; its state transitions depend on its own
// state, its right neighbour's state, and its own action, so factors overlap
// the way multi-agent problems do.
type ModelGenerator struct {
	config ModelGeneratorConfig
	rng    *rand.Rand
}

// NewModelGenerator creates a generator. The same config always generates
// the same model.
func NewModelGenerator(config ModelGeneratorConfig) *ModelGenerator {
	return &ModelGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds and finalizes one model.
func (g *ModelGenerator) Generate() (*mdp.Model, error) {
	cfg := g.config
	if cfg.Machines < 1 {
		return nil, fmt.Errorf("generator needs at least one machine, got %d", cfg.Machines)
	}
	if cfg.StateSize < 2 || cfg.ActionSize < 2 {
		return nil, fmt.Errorf("generator needs variable cardinalities of at least 2, got state %d action %d",
			cfg.StateSize, cfg.ActionSize)
	}

	b := mdp.NewBuilder()
	b.SetName(fmt.Sprintf("Ring of %d machines", cfg.Machines))
	b.SetDescription(fmt.Sprintf("Synthetic ring model (%d machines, seed %d)", cfg.Machines, cfg.Seed))
	b.SetGamma(cfg.Gamma)

	// State ids 1..M, action ids M+1..2M.
	stateID := func(i int) mdp.VarID { return mdp.VarID(i + 1) }
	actionID := func(i int) mdp.VarID { return mdp.VarID(cfg.Machines + i + 1) }

	for i := 0; i < cfg.Machines; i++ {
		if err := b.AddStateVariable(stateID(i), cfg.StateSize); err != nil {
			return nil, err
		}
	}
	for i := 0; i < cfg.Machines; i++ {
		if err := b.AddActionVariable(actionID(i), cfg.ActionSize); err != nil {
			return nil, err
		}
	}

	for i := 0; i < cfg.Machines; i++ {
		scope := mdp.Domain{stateID(i), actionID(i)}
		size := cfg.StateSize * cfg.ActionSize
		values := make([]float64, size)
		stdDev := make([]float64, size)
		for v := range values {
			values[v] = g.rng.Float64() * cfg.RewardScale
			stdDev[v] = cfg.RewardStdDev
		}
		if err := b.AddReward(int32(i+1), scope, values, stdDev); err != nil {
			return nil, err
		}
	}

	for i := 0; i < cfg.Machines; i++ {
		conditions := mdp.Domain{stateID(i), actionID(i)}
		if cfg.Machines > 1 {
			right := stateID((i + 1) % cfg.Machines)
			conditions = mdp.Domain{stateID(i), right, actionID(i)}
		}
		condSize := cfg.StateSize * cfg.ActionSize
		if cfg.Machines > 1 {
			condSize *= cfg.StateSize
		}
		if err := b.AddTransition(stateID(i), conditions, g.randomCPT(condSize, cfg.StateSize)); err != nil {
			return nil, err
		}
	}

	return b.Finalize()
}

// randomCPT draws one distribution per conditioning assignment. The last
// cell of each block absorbs the normalization residue so every block sums
// to one within floating point.
func (g *ModelGenerator) randomCPT(condSize, targetSize int) []float64 {
	values := make([]float64, condSize*targetSize)
	block := make([]float64, targetSize)
	for k := 0; k < condSize; k++ {
		sum := 0.0
		for v := range block {
			block[v] = g.rng.Float64() + 0.01
			sum += block[v]
		}
		acc := 0.0
		for v := 0; v < targetSize-1; v++ {
			p := block[v] / sum
			values[k*targetSize+v] = p
			acc += p
		}
		values[k*targetSize+targetSize-1] = 1 - acc
	}
	return values
}
