package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/internal"
	"gomdp/ports"
)

// ExperimentService executes experiment setups: it builds an environment and
// a policy over the setup's problem, steps them for the configured budget,
// and reports every outcome. All randomness comes from named streams derived
// from the request seed, so a seed fully determines a run.
type ExperimentService struct {
	envs     ports.EnvironmentFactory
	policies ports.PolicyFactory
	rng      ports.RNG
	logger   *internal.Logger
}

// NewExperimentService creates an experiment service.
func NewExperimentService(envs ports.EnvironmentFactory, policies ports.PolicyFactory, rng ports.RNG) *ExperimentService {
	return &ExperimentService{
		envs:     envs,
		policies: policies,
		rng:      rng,
		logger:   internal.DefaultLogger.WithPrefix("[Experiments]"),
	}
}

// RunRequest defines the inputs for one deterministic run.
type RunRequest struct {
	Setup       *experiment.Setup
	Seed        int64
	RunID       core.RunID // optional, generated if empty
	ModelHash   core.ModelHash
	CodeVersion string
	Sink        ports.ResultWriter // optional, receives the setup and every outcome
}

// RunReport contains the complete output of one run.
type RunReport struct {
	RunID       core.RunID           `json:"run_id"`
	Manifest    *experiment.Manifest `json:"manifest"`
	Outcomes    []experiment.Outcome `json:"outcomes"`
	TotalReward float64              `json:"total_reward"`
	RuntimeMs   int64                `json:"runtime_ms"`
}

// Run executes one experiment to completion.
func (s *ExperimentService) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	startTime := time.Now()

	if req.Setup == nil {
		return nil, fmt.Errorf("run request has no setup")
	}
	if err := req.Setup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid setup: %w", err)
	}

	runID := req.RunID
	if runID == "" {
		runID = core.RunID(core.NewID())
	}
	manifest := experiment.NewManifest(runID, req.ModelHash, req.Setup, req.Seed, req.CodeVersion)

	envRNG, err := s.rng.SeededStream(ctx, "environment", req.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive environment stream: %w", err)
	}
	policyRNG, err := s.rng.SeededStream(ctx, "policy", req.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive policy stream: %w", err)
	}

	env, err := s.envs(req.Setup.Problem, envRNG)
	if err != nil {
		return nil, fmt.Errorf("failed to build environment: %w", err)
	}
	policy, err := s.policies(req.Setup.Learner, policyRNG)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy: %w", err)
	}

	if req.Sink != nil {
		if err := req.Sink.WriteSetup(req.Setup); err != nil {
			return nil, fmt.Errorf("failed to record setup: %w", err)
		}
	}

	reg := req.Setup.Problem.Variables
	outcomes := make([]experiment.Outcome, 0, req.Setup.Steps())
	totalReward := 0.0

	for episode := 0; episode < req.Setup.Episodes; episode++ {
		if err := env.Reset(nil); err != nil {
			return nil, fmt.Errorf("failed to reset environment for episode %d: %w", episode, err)
		}

		for timestep := 0; timestep < req.Setup.Timesteps; timestep++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			actStart := time.Now()
			actions := policy.ChooseActions(reg)
			actTime := time.Since(actStart)

			result, err := env.Act(actions)
			if err != nil {
				return nil, fmt.Errorf("act failed at %d/%d: %w", episode, timestep, err)
			}

			updateStart := time.Now()
			if err := policy.Observe(result); err != nil {
				return nil, fmt.Errorf("observe failed at %d/%d: %w", episode, timestep, err)
			}
			updateTime := time.Since(updateStart)

			// States records the joint state the actions were taken in, so a
			// stored run replays as (state, action, reward) triples.
			outcome := experiment.Outcome{
				Episode:    episode,
				Timestep:   timestep,
				ActTime:    actTime,
				UpdateTime: updateTime,
				Actions:    actions,
				States:     result.State,
				Rewards:    result.Rewards,
			}
			if req.Sink != nil {
				if err := req.Sink.WriteOutcome(outcome); err != nil {
					return nil, fmt.Errorf("failed to record outcome %d/%d: %w", episode, timestep, err)
				}
			}
			outcomes = append(outcomes, outcome)
			totalReward += outcome.TotalReward()
		}
	}

	elapsed := time.Since(startTime)
	s.logger.Info("Run %s completed: %d steps in %.2fs (total reward %.4f)",
		runID, len(outcomes), elapsed.Seconds(), totalReward)

	return &RunReport{
		RunID:       runID,
		Manifest:    manifest,
		Outcomes:    outcomes,
		TotalReward: totalReward,
		RuntimeMs:   elapsed.Milliseconds(),
	}, nil
}

// BatchRequest defines a batch of runs over one setup, one run per seed.
type BatchRequest struct {
	Setup       *experiment.Setup
	Seeds       []int64
	ModelHash   core.ModelHash
	CodeVersion string
	Concurrency int64 // maximum runs in flight, defaults to GOMAXPROCS
}

// RunBatch executes one run per seed, bounded by the requested concurrency.
// Reports come back in seed order. Failed runs leave a nil report and their
// errors are joined into the returned error.
func (s *ExperimentService) RunBatch(ctx context.Context, req BatchRequest) ([]*RunReport, error) {
	if req.Setup == nil {
		return nil, fmt.Errorf("batch request has no setup")
	}
	if err := req.Setup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid setup: %w", err)
	}
	if len(req.Seeds) == 0 {
		return nil, fmt.Errorf("batch request has no seeds")
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = int64(runtime.GOMAXPROCS(0))
	}
	sem := semaphore.NewWeighted(concurrency)

	reports := make([]*RunReport, len(req.Seeds))
	errs := make([]error, len(req.Seeds))

	var wg sync.WaitGroup
	for i, seed := range req.Seeds {
		wg.Add(1)
		go func(idx int, seed int64) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				errs[idx] = fmt.Errorf("seed %d: %w", seed, err)
				return
			}
			defer sem.Release(1)

			report, err := s.Run(ctx, RunRequest{
				Setup:       req.Setup,
				Seed:        seed,
				ModelHash:   req.ModelHash,
				CodeVersion: req.CodeVersion,
			})
			if err != nil {
				errs[idx] = fmt.Errorf("seed %d: %w", seed, err)
				return
			}
			reports[idx] = report
		}(i, seed)
	}
	wg.Wait()

	return reports, errors.Join(errs...)
}
