package mdp

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// populatedBuilder returns a builder carrying a small two-machine model:
// states {1:2, 2:3}, actions {3:2, 4:3}, one reward over [1,3] and one
// transition factor per state variable. Gamma is left unset.
func populatedBuilder(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	mustAdd := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("builder setup failed: %v", err)
		}
	}
	mustAdd(b.AddStateVariable(1, 2))
	mustAdd(b.AddStateVariable(2, 3))
	mustAdd(b.AddActionVariable(3, 2))
	mustAdd(b.AddActionVariable(4, 3))
	mustAdd(b.AddReward(1, Domain{1, 3}, []float64{1, 2, 3, 4}, nil))
	mustAdd(b.AddTransition(1, Domain{1, 2}, uniformCPT(2, 6)))
	mustAdd(b.AddTransition(2, Domain{2}, uniformCPT(3, 3)))
	return b
}

func TestBuilderEndToEnd(t *testing.T) {
	b := populatedBuilder(t)
	b.SetName("two-machine line")
	b.SetDescription("toy maintenance problem")
	b.SetGamma(0.9)

	m, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if m.Name != "two-machine line" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Gamma != 0.9 {
		t.Errorf("Gamma = %v, want 0.9", m.Gamma)
	}
	if got := m.Variables.NumState(); got != 2 {
		t.Errorf("NumState = %d, want 2", got)
	}
	if got := m.Variables.NumAction(); got != 2 {
		t.Errorf("NumAction = %d, want 2", got)
	}

	states := m.Variables.StateVariables()
	if states[0].ID != 1 || states[1].ID != 2 {
		t.Errorf("state order = %v", states)
	}
	actions := m.Variables.ActionVariables()
	if actions[0].ID != 3 || actions[1].ID != 4 {
		t.Errorf("action order = %v", actions)
	}

	tf, ok := m.TransitionFor(1)
	if !ok {
		t.Fatalf("TransitionFor(1) missing")
	}
	if len(tf.Values) != 12 {
		t.Errorf("transition for 1 has %d values, want 12", len(tf.Values))
	}
	if _, ok := m.TransitionFor(9); ok {
		t.Errorf("TransitionFor(9) found a factor")
	}

	rf, ok := m.RewardFor(1)
	if !ok {
		t.Fatalf("RewardFor(1) missing")
	}
	if len(rf.Values) != 4 || len(rf.StdDev) != 4 {
		t.Errorf("reward shape = %d/%d values, want 4/4", len(rf.Values), len(rf.StdDev))
	}
	if _, ok := m.RewardFor(9); ok {
		t.Errorf("RewardFor(9) found a factor")
	}
}

func TestFinalizeGamma(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		b := populatedBuilder(t)
		_, err := b.Finalize()
		if !errors.Is(err, ErrInvalidModel) {
			t.Errorf("error = %v, want ErrInvalidModel", err)
		}
	})

	tests := []struct {
		gamma float64
		ok    bool
	}{
		{-0.1, false},
		{0, true},
		{0.5, true},
		{DefaultGamma, true},
		{1, false},
		{1.5, false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("gamma=%v", tc.gamma), func(t *testing.T) {
			b := populatedBuilder(t)
			b.SetGamma(tc.gamma)
			_, err := b.Finalize()
			if tc.ok && err != nil {
				t.Errorf("Finalize failed: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidModel) {
				t.Errorf("error = %v, want ErrInvalidModel", err)
			}
		})
	}
}

func TestFinalizeRequiresStructure(t *testing.T) {
	t.Run("no state variables", func(t *testing.T) {
		b := NewBuilder()
		b.SetGamma(0.9)
		if err := b.AddActionVariable(3, 2); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := b.AddReward(1, Domain{3}, []float64{1, 2}, nil); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if _, err := b.Finalize(); !errors.Is(err, ErrInvalidModel) {
			t.Errorf("error = %v, want ErrInvalidModel", err)
		}
	})

	t.Run("no action variables", func(t *testing.T) {
		b := NewBuilder()
		b.SetGamma(0.9)
		if err := b.AddStateVariable(1, 2); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := b.AddReward(1, Domain{1}, []float64{1, 2}, nil); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if _, err := b.Finalize(); !errors.Is(err, ErrInvalidModel) {
			t.Errorf("error = %v, want ErrInvalidModel", err)
		}
	})

	t.Run("no rewards", func(t *testing.T) {
		b := NewBuilder()
		b.SetGamma(0.9)
		if err := b.AddStateVariable(1, 2); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := b.AddActionVariable(3, 2); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := b.AddTransition(1, Domain{1, 3}, uniformCPT(2, 4)); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if _, err := b.Finalize(); !errors.Is(err, ErrInvalidModel) {
			t.Errorf("error = %v, want ErrInvalidModel", err)
		}
	})
}

func TestFinalizeRequiresTransitionCover(t *testing.T) {
	b := NewBuilder()
	b.SetGamma(0.9)
	for _, err := range []error{
		b.AddStateVariable(1, 2),
		b.AddStateVariable(2, 3),
		b.AddActionVariable(3, 2),
		b.AddReward(1, Domain{1}, []float64{0, 1}, nil),
		b.AddTransition(1, Domain{1}, uniformCPT(2, 2)),
	} {
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	_, err := b.Finalize()
	if !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("error = %v, want ErrInvalidModel", err)
	}
	if !strings.Contains(err.Error(), "variable 2") {
		t.Errorf("error %q does not name the uncovered variable", err)
	}
}

func TestBuilderRejectsDuplicateFactors(t *testing.T) {
	t.Run("reward id", func(t *testing.T) {
		b := populatedBuilder(t)
		err := b.AddReward(1, Domain{2}, []float64{1, 2, 3}, nil)
		var dup *DuplicateIDError
		if !errors.As(err, &dup) {
			t.Fatalf("error = %v, want DuplicateIDError", err)
		}
		if dup.ID != 1 {
			t.Errorf("duplicate id = %d, want 1", dup.ID)
		}
	})

	t.Run("transition target", func(t *testing.T) {
		b := populatedBuilder(t)
		err := b.AddTransition(1, Domain{3}, uniformCPT(2, 2))
		var dup *DuplicateIDError
		if !errors.As(err, &dup) {
			t.Fatalf("error = %v, want DuplicateIDError", err)
		}
		if dup.ID != 1 {
			t.Errorf("duplicate id = %d, want 1", dup.ID)
		}
	})
}

func TestBuilderFactorBeforeVariables(t *testing.T) {
	b := NewBuilder()

	if err := b.AddReward(1, Domain{1}, []float64{1, 2}, nil); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("AddReward error = %v, want ErrUnknownVariable", err)
	}
	if err := b.AddTransition(1, Domain{1}, uniformCPT(2, 2)); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("AddTransition error = %v, want ErrUnknownVariable", err)
	}

	// The failed adds leave the builder usable.
	if err := b.AddStateVariable(1, 2); err != nil {
		t.Fatalf("AddStateVariable failed: %v", err)
	}
	if err := b.AddReward(1, Domain{1}, []float64{1, 2}, nil); err != nil {
		t.Errorf("AddReward after registering the variable failed: %v", err)
	}
}

func TestModelDetachedFromBuilder(t *testing.T) {
	b := populatedBuilder(t)
	b.SetGamma(0.9)
	m, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// Growing the builder afterwards must not show up in the model.
	if err := b.AddStateVariable(9, 4); err != nil {
		t.Fatalf("AddStateVariable failed: %v", err)
	}
	if got := m.Variables.NumState(); got != 2 {
		t.Errorf("model NumState = %d after builder mutation, want 2", got)
	}

	// Variable 9 has no transition factor, so a second Finalize fails
	// without invalidating the first model.
	if _, err := b.Finalize(); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("second Finalize error = %v, want ErrInvalidModel", err)
	}
	if _, ok := m.TransitionFor(1); !ok {
		t.Errorf("first model lost its transition factor")
	}
}
