package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/montanaflynn/stats"

	"gomdp/domain/experiment"
	"gomdp/ports"
)

// ResultsService turns recorded outcomes into summary statistics.
type ResultsService struct{}

// NewResultsService creates a results service.
func NewResultsService() *ResultsService {
	return &ResultsService{}
}

// Distribution summarizes one sample of values.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

// RunSummary aggregates one run's outcomes.
type RunSummary struct {
	Steps          int                    `json:"steps"`
	Episodes       int                    `json:"episodes"`
	TotalReward    float64                `json:"total_reward"`
	RewardPerStep  Distribution           `json:"reward_per_step"`
	RewardByFactor map[int32]Distribution `json:"reward_by_factor"`
	ActMs          Distribution           `json:"act_ms"`
	UpdateMs       Distribution           `json:"update_ms"`
	Complete       bool                   `json:"complete"`
}

// Summarize aggregates outcomes already in memory. The outcomes are treated
// as a complete run.
func (s *ResultsService) Summarize(outcomes []experiment.Outcome) (*RunSummary, error) {
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("no outcomes to summarize")
	}

	episodes := make(map[int]struct{})
	rewards := make([]float64, 0, len(outcomes))
	actMs := make([]float64, 0, len(outcomes))
	updateMs := make([]float64, 0, len(outcomes))
	byFactor := make(map[int32][]float64)
	total := 0.0

	for i := range outcomes {
		o := &outcomes[i]
		episodes[o.Episode] = struct{}{}

		step := o.TotalReward()
		total += step
		rewards = append(rewards, step)
		actMs = append(actMs, float64(o.ActTime.Nanoseconds())/1e6)
		updateMs = append(updateMs, float64(o.UpdateTime.Nanoseconds())/1e6)
		for _, r := range o.Rewards {
			byFactor[r.ID] = append(byFactor[r.ID], r.Value)
		}
	}

	summary := &RunSummary{
		Steps:          len(outcomes),
		Episodes:       len(episodes),
		TotalReward:    total,
		RewardPerStep:  describe(rewards),
		RewardByFactor: make(map[int32]Distribution, len(byFactor)),
		ActMs:          describe(actMs),
		UpdateMs:       describe(updateMs),
		Complete:       true,
	}
	for id, values := range byFactor {
		summary.RewardByFactor[id] = describe(values)
	}
	return summary, nil
}

// SummarizeStream drains a result source and aggregates it. Complete is
// false when the stream lacks its end marker, which means the producing run
// stopped before closing its recorder.
func (s *ResultsService) SummarizeStream(src ports.ResultSource) (*RunSummary, error) {
	var outcomes []experiment.Outcome
	for {
		outcome, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read result stream: %w", err)
		}
		outcomes = append(outcomes, *outcome)
	}

	summary, err := s.Summarize(outcomes)
	if err != nil {
		return nil, err
	}
	summary.Complete = src.Complete()
	return summary, nil
}

// describe computes the summary statistics of one sample.
func describe(data []float64) Distribution {
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	stdDev, _ := stats.StandardDeviation(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	p25, _ := stats.Percentile(data, 25)
	p75, _ := stats.Percentile(data, 75)
	p95, _ := stats.Percentile(data, 95)

	return Distribution{
		Count:  len(data),
		Mean:   mean,
		Median: median,
		StdDev: stdDev,
		Min:    min,
		Max:    max,
		P25:    p25,
		P75:    p75,
		P95:    p95,
	}
}
