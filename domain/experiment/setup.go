package experiment

import (
	"fmt"
	"strings"

	"gomdp/domain/core"
	"gomdp/domain/mdp"
)

// LearnerKind identifies the action-selection strategy driving a run.
type LearnerKind int32

const (
	LearnerRandom LearnerKind = iota
	LearnerQ
	LearnerBayesQ
	LearnerBayesModel
)

var learnerNames = map[LearnerKind]string{
	LearnerRandom:     "random",
	LearnerQ:          "q",
	LearnerBayesQ:     "bayes-q",
	LearnerBayesModel: "bayes-model",
}

func (k LearnerKind) String() string {
	if name, ok := learnerNames[k]; ok {
		return name
	}
	return fmt.Sprintf("learner(%d)", int32(k))
}

// Valid reports whether k names a known learner.
func (k LearnerKind) Valid() bool {
	_, ok := learnerNames[k]
	return ok
}

// ParseLearner resolves a learner name as accepted on the command line.
func ParseLearner(name string) (LearnerKind, error) {
	for kind, n := range learnerNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return kind, nil
		}
	}
	return 0, core.NewValidationError("learner", fmt.Sprintf("unknown learner %q", name))
}

// Setup describes one experiment: the problem to run, the learner driving
// it, and the episode/timestep budget. A Setup is written as the leading
// record of every result stream so a stream is interpretable on its own.
type Setup struct {
	Name        string
	Description string
	Learner     LearnerKind
	Episodes    int
	Timesteps   int
	Problem     *mdp.Model
}

// Validate checks the setup is runnable. The problem model carries its own
// guarantees from Finalize, so only the experiment parameters are checked.
func (s *Setup) Validate() error {
	if s.Name == "" {
		return core.NewValidationError("name", "must not be empty")
	}
	if !s.Learner.Valid() {
		return core.NewValidationError("learner", s.Learner.String())
	}
	if s.Episodes <= 0 {
		return core.NewValidationError("episodes", fmt.Sprintf("must be positive, got %d", s.Episodes))
	}
	if s.Timesteps <= 0 {
		return core.NewValidationError("timesteps", fmt.Sprintf("must be positive, got %d", s.Timesteps))
	}
	if s.Problem == nil {
		return core.NewValidationError("problem", "must not be nil")
	}
	return nil
}

// Steps returns the total number of timesteps the setup will execute.
func (s *Setup) Steps() int {
	return s.Episodes * s.Timesteps
}
