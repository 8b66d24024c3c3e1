// Package stats checks recorded runs against the model that generated them:
// a goodness-of-fit pass over every transition factor and a mean test over
// every reward factor. Its job is catching a simulator, codec, or storage
// layer that silently disagrees with the model it claims to implement.
package stats

import (
	"fmt"
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

// DefaultAlpha is the significance level below which a fit check fails.
const DefaultAlpha = 0.05

// minBlockSamples is the smallest number of observations of one conditioning
// assignment worth testing; sparser blocks are skipped rather than fed into
// an asymptotic test they would break.
const minBlockSamples = 5

// minStdDev mirrors the simulator's noise floor: factors at or below it are
// expected to reproduce their values exactly.
const minStdDev = 1e-10

// ModelFit runs the fit checks at a fixed significance level.
type ModelFit struct {
	alpha float64
}

// NewModelFit creates a checker. Alpha at or below zero selects DefaultAlpha.
func NewModelFit(alpha float64) *ModelFit {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	return &ModelFit{alpha: alpha}
}

// TransitionFit is the verdict for one transition factor.
type TransitionFit struct {
	Target           mdp.VarID `json:"target"`
	Samples          int       `json:"samples"`
	Statistic        float64   `json:"statistic"`
	DegreesOfFreedom int       `json:"degrees_of_freedom"`
	PValue           float64   `json:"p_value"`
	Impossible       int       `json:"impossible"`
	Passed           bool      `json:"passed"`
}

// RewardFit is the verdict for one reward factor. PValue carries the worst
// per-assignment result.
type RewardFit struct {
	FactorID int32   `json:"factor_id"`
	Samples  int     `json:"samples"`
	WorstZ   float64 `json:"worst_z"`
	PValue   float64 `json:"p_value"`
	Passed   bool    `json:"passed"`
}

// Report aggregates the per-factor verdicts of one check.
type Report struct {
	Steps       int             `json:"steps"`
	Transitions []TransitionFit `json:"transitions"`
	Rewards     []RewardFit     `json:"rewards"`
	Passed      bool            `json:"passed"`
}

// Check tests a recorded outcome sequence against the model. Outcomes must
// be in episode/timestep order; consecutive steps of one episode supply the
// transition samples, and every step supplies reward samples.
func (f *ModelFit) Check(model *mdp.Model, outcomes []experiment.Outcome) (*Report, error) {
	if model == nil || model.Variables == nil {
		return nil, fmt.Errorf("stats: model is nil or not finalized")
	}

	report := &Report{Steps: len(outcomes), Passed: true}

	for _, t := range model.Transitions {
		fit, err := f.checkTransition(model, t, outcomes)
		if err != nil {
			return nil, err
		}
		report.Transitions = append(report.Transitions, *fit)
		if !fit.Passed {
			report.Passed = false
		}
	}

	for _, r := range model.Rewards {
		fit, err := f.checkReward(model, r, outcomes)
		if err != nil {
			return nil, err
		}
		report.Rewards = append(report.Rewards, *fit)
		if !fit.Passed {
			report.Passed = false
		}
	}

	return report, nil
}

// checkTransition pools the observed next values per conditioning assignment
// and runs a chi-square goodness-of-fit test against the factor's blocks.
func (f *ModelFit) checkTransition(model *mdp.Model, factor mdp.TransitionFactor, outcomes []experiment.Outcome) (*TransitionFit, error) {
	reg := model.Variables
	targetSize, err := factor.TargetSize(reg)
	if err != nil {
		return nil, err
	}

	counts := make(map[int][]int)
	samples := 0
	for i := 1; i < len(outcomes); i++ {
		prev, cur := &outcomes[i-1], &outcomes[i]
		if cur.Episode != prev.Episode || cur.Timestep != prev.Timestep+1 {
			continue
		}
		assignment, err := settingsFor(prev, factor.Conditions)
		if err != nil {
			return nil, err
		}
		k, err := factor.Conditions.FlatIndex(reg, assignment)
		if err != nil {
			return nil, err
		}
		next, ok := cur.Setting(factor.Target)
		if !ok {
			return nil, fmt.Errorf("stats: outcome %d/%d does not record variable %d", cur.Episode, cur.Timestep, factor.Target)
		}
		if next < 0 || next >= targetSize {
			return nil, &mdp.IndexOutOfRangeError{Variable: factor.Target, Value: next, Size: targetSize}
		}
		if counts[k] == nil {
			counts[k] = make([]int, targetSize)
		}
		counts[k][next]++
		samples++
	}

	fit := &TransitionFit{Target: factor.Target, Samples: samples}

	statistic := 0.0
	df := 0
	for k, observed := range counts {
		n := 0
		for _, c := range observed {
			n += c
		}
		if n < minBlockSamples {
			continue
		}
		cells := 0
		for next, c := range observed {
			p := factor.Values[k*targetSize+next]
			if p == 0 {
				if c > 0 {
					fit.Impossible += c
				}
				continue
			}
			cells++
			expected := float64(n) * p
			diff := float64(c) - expected
			statistic += diff * diff / expected
		}
		if cells > 1 {
			df += cells - 1
		}
	}

	fit.Statistic = statistic
	fit.DegreesOfFreedom = df
	switch {
	case fit.Impossible > 0:
		// The run visited transitions the model says cannot happen; no test
		// statistic is needed to call that a failure.
		fit.PValue = 0
		fit.Passed = false
	case df == 0:
		// Nothing testable: too few samples or single-valued blocks.
		fit.PValue = 1
		fit.Passed = true
	default:
		chiDist := distuv.ChiSquared{K: float64(df)}
		fit.PValue = 1 - chiDist.CDF(statistic)
		fit.Passed = fit.PValue >= f.alpha
	}
	return fit, nil
}

// checkReward groups reward samples per scope assignment and z-tests each
// group's mean against the factor's expectation. Deterministic assignments
// must reproduce their values exactly.
func (f *ModelFit) checkReward(model *mdp.Model, factor mdp.RewardFactor, outcomes []experiment.Outcome) (*RewardFit, error) {
	reg := model.Variables
	groups := make(map[int][]float64)
	samples := 0

	for i := range outcomes {
		o := &outcomes[i]
		value, ok := rewardFor(o, factor.ID)
		if !ok {
			continue
		}
		assignment, err := settingsFor(o, factor.Scope)
		if err != nil {
			return nil, err
		}
		k, err := factor.Scope.FlatIndex(reg, assignment)
		if err != nil {
			return nil, err
		}
		groups[k] = append(groups[k], value)
		samples++
	}

	fit := &RewardFit{FactorID: factor.ID, Samples: samples, PValue: 1, Passed: true}
	normal := distuv.Normal{Mu: 0, Sigma: 1}

	for k, values := range groups {
		expected := factor.Values[k]
		stdDev := factor.StdDev[k]

		if stdDev <= minStdDev {
			for _, v := range values {
				if math.Abs(v-expected) > 1e-9 {
					fit.WorstZ = math.Inf(1)
					fit.PValue = 0
					fit.Passed = false
					return fit, nil
				}
			}
			continue
		}

		if len(values) < minBlockSamples {
			continue
		}
		mean, err := mstats.Mean(values)
		if err != nil {
			return nil, fmt.Errorf("stats: reward factor %d: %w", factor.ID, err)
		}
		z := (mean - expected) / (stdDev / math.Sqrt(float64(len(values))))
		p := 2 * (1 - normal.CDF(math.Abs(z)))
		if p < fit.PValue {
			fit.PValue = p
			fit.WorstZ = z
		}
	}

	fit.Passed = fit.PValue >= f.alpha
	return fit, nil
}

// settingsFor resolves a factor domain against one outcome's recorded
// actions and states, in domain order.
func settingsFor(o *experiment.Outcome, d mdp.Domain) ([]int, error) {
	out := make([]int, len(d))
	for i, id := range d {
		v, ok := o.Setting(id)
		if !ok {
			return nil, fmt.Errorf("stats: outcome %d/%d does not record variable %d", o.Episode, o.Timestep, id)
		}
		out[i] = v
	}
	return out, nil
}

func rewardFor(o *experiment.Outcome, id int32) (float64, bool) {
	for _, r := range o.Rewards {
		if r.ID == id {
			return r.Value, true
		}
	}
	return 0, false
}
