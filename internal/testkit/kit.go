// Package testkit provides shared fixtures and in-memory port
// implementations so service and handler tests run without a database.
package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gomdp/adapters/sim"
	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
	"gomdp/models"
	"gomdp/ports"
)

// TestKit wires in-memory adapters behind the same ports the production
// container fills with PostgreSQL and the simulator.
type TestKit struct {
	models *MemoryModelRepository
	runs   *MemoryRunRepository
}

// NewTestKit creates a kit with empty storage.
func NewTestKit() *TestKit {
	return &TestKit{
		models: NewMemoryModelRepository(),
		runs:   NewMemoryRunRepository(),
	}
}

// ModelRepository returns the shared in-memory model store.
func (t *TestKit) ModelRepository() ports.ModelRepository { return t.models }

// RunRepository returns the shared in-memory run store.
func (t *TestKit) RunRepository() ports.RunRepository { return t.runs }

// RNGAdapter returns the production stream deriver; determinism makes it as
// good in tests as any stub.
func (t *TestKit) RNGAdapter() ports.RNG { return sim.NewSeededStreams() }

// EnvironmentFactory returns the sampling simulator factory.
func (t *TestKit) EnvironmentFactory() ports.EnvironmentFactory { return sim.NewEnvironment }

// PolicyFactory returns the learner factory.
func (t *TestKit) PolicyFactory() ports.PolicyFactory { return sim.PolicyFor }

// CanonicalModel builds the reference model used across tests and demos:
// two state variables of sizes 2 and 3, two action variables of sizes 2 and
// 3, one reward factor per state/action pair with a value ramp and unit
// uncertainty, and one ramp CPT per state conditioned on both states.
func CanonicalModel() (*mdp.Model, error) {
	b := mdp.NewBuilder()
	b.SetName("Simple Test MDP")
	b.SetDescription("My first factored MDP in protocol buffers")
	b.SetGamma(0.9)

	type variable struct {
		id   mdp.VarID
		size int
	}
	states := []variable{{1, 2}, {2, 3}}
	actions := []variable{{3, 2}, {4, 3}}

	for _, s := range states {
		if err := b.AddStateVariable(s.id, s.size); err != nil {
			return nil, err
		}
	}
	for _, a := range actions {
		if err := b.AddActionVariable(a.id, a.size); err != nil {
			return nil, err
		}
	}

	for i := range states {
		size := states[i].size * actions[i].size
		values := make([]float64, size)
		stdDev := make([]float64, size)
		for v := range values {
			values[v] = float64(v)
			stdDev[v] = 1
		}
		if err := b.AddReward(int32(i+1), mdp.Domain{states[i].id, actions[i].id}, values, stdDev); err != nil {
			return nil, err
		}
	}

	condSize := states[0].size * states[1].size
	for _, s := range states {
		values := make([]float64, condSize*s.size)
		for k := 0; k < condSize; k++ {
			sum := 0.0
			for v := 0; v < s.size; v++ {
				sum += float64(v*condSize + k)
			}
			for v := 0; v < s.size; v++ {
				values[k*s.size+v] = float64(v*condSize+k) / sum
			}
		}
		if err := b.AddTransition(s.id, mdp.Domain{states[0].id, states[1].id}, values); err != nil {
			return nil, err
		}
	}

	return b.Finalize()
}

// CanonicalSetup wraps the canonical model in the reference experiment:
// a random baseline over 10 episodes of 100 timesteps.
func CanonicalSetup() (*experiment.Setup, error) {
	model, err := CanonicalModel()
	if err != nil {
		return nil, err
	}
	return &experiment.Setup{
		Name:        "Test Experiment",
		Description: "My first experimental setup",
		Learner:     experiment.LearnerRandom,
		Episodes:    10,
		Timesteps:   100,
		Problem:     model,
	}, nil
}

// MemoryModelRepository implements ports.ModelRepository over maps.
type MemoryModelRepository struct {
	mu     sync.RWMutex
	byID   map[core.ModelID]*models.ModelRecord
	byHash map[core.ModelHash]core.ModelID
}

var _ ports.ModelRepository = (*MemoryModelRepository)(nil)

// NewMemoryModelRepository creates an empty model store.
func NewMemoryModelRepository() *MemoryModelRepository {
	return &MemoryModelRepository{
		byID:   make(map[core.ModelID]*models.ModelRecord),
		byHash: make(map[core.ModelHash]core.ModelID),
	}
}

func (r *MemoryModelRepository) Save(ctx context.Context, record *models.ModelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[record.Hash]; exists {
		return fmt.Errorf("%w: model with hash %s", core.ErrAlreadyExists, record.Hash.Short())
	}
	if _, exists := r.byID[record.ID]; exists {
		return fmt.Errorf("%w: model %s", core.ErrAlreadyExists, record.ID)
	}

	clone := *record
	clone.Payload = append([]byte(nil), record.Payload...)
	r.byID[record.ID] = &clone
	r.byHash[record.Hash] = record.ID
	return nil
}

func (r *MemoryModelRepository) GetByID(ctx context.Context, id core.ModelID) (*models.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byID[id]
	if !ok {
		return nil, core.NewNotFoundError("model", id.String())
	}
	clone := *record
	clone.Payload = append([]byte(nil), record.Payload...)
	return &clone, nil
}

func (r *MemoryModelRepository) GetByHash(ctx context.Context, hash core.ModelHash) (*models.ModelRecord, error) {
	r.mu.RLock()
	id, ok := r.byHash[hash]
	r.mu.RUnlock()
	if !ok {
		return nil, core.NewNotFoundError("model", hash.Short())
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryModelRepository) List(ctx context.Context, limit int) ([]*models.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*models.ModelRecord, 0, len(r.byID))
	for _, record := range r.byID {
		clone := *record
		clone.Payload = nil
		records = append(records, &clone)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *MemoryModelRepository) Delete(ctx context.Context, id core.ModelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok {
		return core.NewNotFoundError("model", id.String())
	}
	delete(r.byHash, record.Hash)
	delete(r.byID, id)
	return nil
}

// MemoryRunRepository implements ports.RunRepository over maps.
type MemoryRunRepository struct {
	mu       sync.RWMutex
	runs     map[core.RunID]*models.RunRecord
	outcomes map[core.RunID][]experiment.Outcome
}

var _ ports.RunRepository = (*MemoryRunRepository)(nil)

// NewMemoryRunRepository creates an empty run store.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{
		runs:     make(map[core.RunID]*models.RunRecord),
		outcomes: make(map[core.RunID][]experiment.Outcome),
	}
}

func (r *MemoryRunRepository) CreateRun(ctx context.Context, record *models.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[record.ID]; exists {
		return fmt.Errorf("%w: run %s", core.ErrAlreadyExists, record.ID)
	}
	clone := *record
	r.runs[record.ID] = &clone
	return nil
}

func (r *MemoryRunRepository) FinishRun(ctx context.Context, id core.RunID, status models.RunStatus, errorMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run: status %q is not terminal", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.runs[id]
	if !ok {
		return core.NewNotFoundError("run", id.String())
	}
	if record.Status.Terminal() {
		return fmt.Errorf("%w: run %s", core.ErrRunFinished, id)
	}

	record.Status = status
	record.Error.String = errorMsg
	record.Error.Valid = errorMsg != ""
	now := time.Now()
	record.FinishedAt = &now
	return nil
}

func (r *MemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*models.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.runs[id]
	if !ok {
		return nil, core.NewNotFoundError("run", id.String())
	}
	clone := *record
	return &clone, nil
}

func (r *MemoryRunRepository) ListRuns(ctx context.Context, modelID core.ModelID, limit int) ([]*models.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := []*models.RunRecord{}
	for _, record := range r.runs {
		if record.ModelID != modelID {
			continue
		}
		clone := *record
		records = append(records, &clone)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *MemoryRunRepository) AppendOutcomes(ctx context.Context, id core.RunID, outcomes []experiment.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return core.NewNotFoundError("run", id.String())
	}
	r.outcomes[id] = append(r.outcomes[id], outcomes...)
	return nil
}

func (r *MemoryRunRepository) ListOutcomes(ctx context.Context, id core.RunID) ([]experiment.Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.runs[id]; !ok {
		return nil, core.NewNotFoundError("run", id.String())
	}
	outcomes := append([]experiment.Outcome(nil), r.outcomes[id]...)
	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].Episode != outcomes[j].Episode {
			return outcomes[i].Episode < outcomes[j].Episode
		}
		return outcomes[i].Timestep < outcomes[j].Timestep
	})
	return outcomes, nil
}

// MemoryResultSink implements ports.ResultWriter by keeping everything in
// memory, for asserting on what a run recorded.
type MemoryResultSink struct {
	mu       sync.Mutex
	setup    *experiment.Setup
	outcomes []experiment.Outcome
	closed   bool
}

var _ ports.ResultWriter = (*MemoryResultSink)(nil)

// NewMemoryResultSink creates an empty sink.
func NewMemoryResultSink() *MemoryResultSink {
	return &MemoryResultSink{}
}

func (s *MemoryResultSink) WriteSetup(setup *experiment.Setup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sink is closed")
	}
	if s.setup != nil {
		return fmt.Errorf("setup already written")
	}
	s.setup = setup
	return nil
}

func (s *MemoryResultSink) WriteOutcome(outcome experiment.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sink is closed")
	}
	if s.setup == nil {
		return fmt.Errorf("setup not written")
	}
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *MemoryResultSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Setup returns the recorded setup, nil until WriteSetup.
func (s *MemoryResultSink) Setup() *experiment.Setup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setup
}

// Outcomes returns a copy of the recorded outcomes.
func (s *MemoryResultSink) Outcomes() []experiment.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]experiment.Outcome(nil), s.outcomes...)
}

// Closed reports whether the sink was closed.
func (s *MemoryResultSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
