package mdp

// Registry owns the state and action variables of one model. Insertion order
// is preserved per namespace because it is observable through iteration and
// the wire format. Ids are unique across both namespaces: the wire format
// would let a state id collide with an action id, but factor domains carry
// bare ids with no namespace tag, so a collision would make every domain
// reference ambiguous. Registration rejects such ids outright.
type Registry struct {
	vars        map[VarID]Variable
	kinds       map[VarID]VarKind
	stateOrder  []VarID
	actionOrder []VarID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		vars:  make(map[VarID]Variable),
		kinds: make(map[VarID]VarKind),
	}
}

// AddStateVariable registers a state variable.
func (r *Registry) AddStateVariable(id VarID, size int) error {
	return r.add(KindState, id, size)
}

// AddActionVariable registers an action variable.
func (r *Registry) AddActionVariable(id VarID, size int) error {
	return r.add(KindAction, id, size)
}

func (r *Registry) add(kind VarKind, id VarID, size int) error {
	v, err := NewVariable(id, size)
	if err != nil {
		return err
	}
	if existing, ok := r.kinds[id]; ok {
		return &DuplicateIDError{ID: int32(id), What: existing.String() + " variable"}
	}
	r.vars[id] = v
	r.kinds[id] = kind
	if kind == KindState {
		r.stateOrder = append(r.stateOrder, id)
	} else {
		r.actionOrder = append(r.actionOrder, id)
	}
	return nil
}

// Lookup resolves an id in either namespace.
func (r *Registry) Lookup(id VarID) (Variable, VarKind, error) {
	v, ok := r.vars[id]
	if !ok {
		return Variable{}, 0, &UnknownVariableError{ID: id}
	}
	return v, r.kinds[id], nil
}

// StateVariable resolves an id in the state namespace only.
func (r *Registry) StateVariable(id VarID) (Variable, error) {
	v, ok := r.vars[id]
	if !ok || r.kinds[id] != KindState {
		return Variable{}, &UnknownVariableError{ID: id, Want: KindState}
	}
	return v, nil
}

// ActionVariable resolves an id in the action namespace only.
func (r *Registry) ActionVariable(id VarID) (Variable, error) {
	v, ok := r.vars[id]
	if !ok || r.kinds[id] != KindAction {
		return Variable{}, &UnknownVariableError{ID: id, Want: KindAction}
	}
	return v, nil
}

// StateVariables returns the state variables in insertion order.
func (r *Registry) StateVariables() []Variable {
	return r.ordered(r.stateOrder)
}

// ActionVariables returns the action variables in insertion order.
func (r *Registry) ActionVariables() []Variable {
	return r.ordered(r.actionOrder)
}

func (r *Registry) ordered(order []VarID) []Variable {
	out := make([]Variable, len(order))
	for i, id := range order {
		out[i] = r.vars[id]
	}
	return out
}

// NumState returns the count of state variables.
func (r *Registry) NumState() int { return len(r.stateOrder) }

// NumAction returns the count of action variables.
func (r *Registry) NumAction() int { return len(r.actionOrder) }

// clone deep-copies the registry so a finalized model owns its variables
// exclusively.
func (r *Registry) clone() *Registry {
	c := NewRegistry()
	for id, v := range r.vars {
		c.vars[id] = v
		c.kinds[id] = r.kinds[id]
	}
	c.stateOrder = append([]VarID(nil), r.stateOrder...)
	c.actionOrder = append([]VarID(nil), r.actionOrder...)
	return c
}
