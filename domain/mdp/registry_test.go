package mdp

import (
	"errors"
	"testing"
)

func TestRegistryAddAndLookup(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddStateVariable(1, 2); err != nil {
		t.Fatalf("AddStateVariable failed: %v", err)
	}
	if err := reg.AddActionVariable(3, 4); err != nil {
		t.Fatalf("AddActionVariable failed: %v", err)
	}

	v, kind, err := reg.Lookup(1)
	if err != nil {
		t.Fatalf("Lookup(1) failed: %v", err)
	}
	if v.Size != 2 || kind != KindState {
		t.Errorf("Lookup(1) = %+v kind %v, want size 2 state", v, kind)
	}

	v, kind, err = reg.Lookup(3)
	if err != nil {
		t.Fatalf("Lookup(3) failed: %v", err)
	}
	if v.Size != 4 || kind != KindAction {
		t.Errorf("Lookup(3) = %+v kind %v, want size 4 action", v, kind)
	}

	if _, _, err := reg.Lookup(99); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("Lookup(99) error = %v, want ErrUnknownVariable", err)
	}
}

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	tests := []struct {
		name string
		add  func(r *Registry) error
	}{
		{"same namespace", func(r *Registry) error { return r.AddStateVariable(1, 3) }},
		{"across namespaces", func(r *Registry) error { return r.AddActionVariable(1, 3) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			if err := reg.AddStateVariable(1, 2); err != nil {
				t.Fatalf("setup failed: %v", err)
			}
			err := tc.add(reg)
			var dup *DuplicateIDError
			if !errors.As(err, &dup) {
				t.Fatalf("error = %v, want DuplicateIDError", err)
			}
			if dup.ID != 1 {
				t.Errorf("duplicate id = %d, want 1", dup.ID)
			}
		})
	}
}

func TestRegistryRejectsInvalidVariables(t *testing.T) {
	tests := []struct {
		name string
		id   VarID
		size int
	}{
		{"zero id", 0, 2},
		{"negative id", -1, 2},
		{"zero size", 5, 0},
		{"negative size", 5, -3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			err := reg.AddStateVariable(tc.id, tc.size)
			if !errors.Is(err, ErrInvalidVariable) {
				t.Errorf("error = %v, want ErrInvalidVariable", err)
			}
		})
	}
}

func TestRegistryNamespaceLookup(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddStateVariable(1, 2); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := reg.AddActionVariable(2, 3); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, err := reg.StateVariable(1); err != nil {
		t.Errorf("StateVariable(1) failed: %v", err)
	}
	if _, err := reg.StateVariable(2); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("StateVariable(2) error = %v, want ErrUnknownVariable", err)
	}
	if _, err := reg.ActionVariable(2); err != nil {
		t.Errorf("ActionVariable(2) failed: %v", err)
	}
	if _, err := reg.ActionVariable(1); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("ActionVariable(1) error = %v, want ErrUnknownVariable", err)
	}
}

func TestRegistryPreservesInsertionOrder(t *testing.T) {
	reg := NewRegistry()
	// Deliberately out of numeric order.
	for _, id := range []VarID{5, 2, 9} {
		if err := reg.AddStateVariable(id, 2); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	for _, id := range []VarID{7, 3} {
		if err := reg.AddActionVariable(id, 2); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	states := reg.StateVariables()
	wantStates := []VarID{5, 2, 9}
	if len(states) != len(wantStates) {
		t.Fatalf("got %d state variables, want %d", len(states), len(wantStates))
	}
	for i, v := range states {
		if v.ID != wantStates[i] {
			t.Errorf("state[%d].ID = %d, want %d", i, v.ID, wantStates[i])
		}
	}

	actions := reg.ActionVariables()
	wantActions := []VarID{7, 3}
	for i, v := range actions {
		if v.ID != wantActions[i] {
			t.Errorf("action[%d].ID = %d, want %d", i, v.ID, wantActions[i])
		}
	}
}
