package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

// ModelRecord is the catalog row for one stored model. The encoded payload
// is the source of truth; the scalar columns are derived from it at save
// time so listings never decode.
type ModelRecord struct {
	ID                core.ModelID   `json:"id" db:"id"`
	Name              string         `json:"name" db:"name"`
	Description       string         `json:"description" db:"description"`
	Gamma             float64        `json:"gamma" db:"gamma"`
	StateVars         int            `json:"state_vars" db:"state_vars"`
	ActionVars        int            `json:"action_vars" db:"action_vars"`
	RewardFactors     int            `json:"reward_factors" db:"reward_factors"`
	TransitionFactors int            `json:"transition_factors" db:"transition_factors"`
	Hash              core.ModelHash `json:"content_hash" db:"content_hash"`
	Payload           []byte         `json:"-" db:"payload"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// NewModelRecord derives a catalog row from a finalized model and its
// encoded payload.
func NewModelRecord(m *mdp.Model, payload []byte) *ModelRecord {
	return &ModelRecord{
		ID:                core.ModelID(core.NewID()),
		Name:              m.Name,
		Description:       m.Description,
		Gamma:             m.Gamma,
		StateVars:         m.Variables.NumState(),
		ActionVars:        m.Variables.NumAction(),
		RewardFactors:     len(m.Rewards),
		TransitionFactors: len(m.Transitions),
		Hash:              core.NewModelHash(payload),
		Payload:           payload,
		CreatedAt:         time.Now(),
	}
}

// RunStatus tracks the lifecycle of a run record.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// RunRecord is the catalog row for one run of a stored model.
type RunRecord struct {
	ID          core.RunID     `json:"id" db:"id"`
	ModelID     core.ModelID   `json:"model_id" db:"model_id"`
	Learner     string         `json:"learner" db:"learner"`
	Seed        int64          `json:"seed" db:"seed"`
	Episodes    int            `json:"episodes" db:"episodes"`
	Timesteps   int            `json:"timesteps" db:"timesteps"`
	Status      RunStatus      `json:"status" db:"status"`
	Error       sql.NullString `json:"error,omitempty" db:"error_message"`
	Fingerprint string         `json:"fingerprint" db:"fingerprint"`
	StartedAt   time.Time      `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty" db:"finished_at"`
}

// NewRunRecord creates a running record from a manifest.
func NewRunRecord(modelID core.ModelID, manifest *experiment.Manifest) *RunRecord {
	return &RunRecord{
		ID:          manifest.RunID,
		ModelID:     modelID,
		Learner:     manifest.Learner.String(),
		Seed:        manifest.Seed,
		Episodes:    manifest.Episodes,
		Timesteps:   manifest.Timesteps,
		Status:      RunStatusRunning,
		Fingerprint: manifest.Fingerprint.String(),
		StartedAt:   manifest.CreatedAt.Time(),
	}
}

// OutcomeDetail is the JSONB payload carrying the factored view of one step:
// which actions were taken, in which state, and what each factor paid.
type OutcomeDetail struct {
	Actions []experiment.VarSetting   `json:"actions"`
	States  []experiment.VarSetting   `json:"states"`
	Rewards []experiment.FactorReward `json:"rewards"`
}

// Value implements driver.Valuer interface
func (d OutcomeDetail) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner interface
func (d *OutcomeDetail) Scan(value interface{}) error {
	if value == nil {
		*d = OutcomeDetail{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("outcome detail: cannot scan %T", value)
	}

	if len(bytes) == 0 {
		*d = OutcomeDetail{}
		return nil
	}
	return json.Unmarshal(bytes, d)
}

// OutcomeRecord is the stored form of one step outcome. Timings and the
// reward total are lifted into columns for aggregation; the factored detail
// rides along as JSONB.
type OutcomeRecord struct {
	RunID       core.RunID    `json:"run_id" db:"run_id"`
	Episode     int           `json:"episode" db:"episode"`
	Timestep    int           `json:"timestep" db:"timestep"`
	ActNanos    int64         `json:"act_ns" db:"act_ns"`
	UpdateNanos int64         `json:"update_ns" db:"update_ns"`
	TotalReward float64       `json:"total_reward" db:"total_reward"`
	Detail      OutcomeDetail `json:"detail" db:"detail"`
}

// NewOutcomeRecord converts a step outcome into its stored form.
func NewOutcomeRecord(runID core.RunID, o experiment.Outcome) *OutcomeRecord {
	return &OutcomeRecord{
		RunID:       runID,
		Episode:     o.Episode,
		Timestep:    o.Timestep,
		ActNanos:    o.ActTime.Nanoseconds(),
		UpdateNanos: o.UpdateTime.Nanoseconds(),
		TotalReward: o.TotalReward(),
		Detail: OutcomeDetail{
			Actions: o.Actions,
			States:  o.States,
			Rewards: o.Rewards,
		},
	}
}

// Outcome reconstructs the domain outcome from the stored form.
func (r *OutcomeRecord) Outcome() experiment.Outcome {
	return experiment.Outcome{
		Episode:    r.Episode,
		Timestep:   r.Timestep,
		ActTime:    time.Duration(r.ActNanos),
		UpdateTime: time.Duration(r.UpdateNanos),
		Actions:    r.Detail.Actions,
		States:     r.Detail.States,
		Rewards:    r.Detail.Rewards,
	}
}
