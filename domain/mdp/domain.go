package mdp

import "fmt"

// Domain is the ordered list of variables a factor depends on. Every id must
// resolve in the owning model's registry, and the order is load-bearing: flat
// value arrays are indexed in mixed radix with the FIRST domain entry as the
// most significant digit (row-major). Previously serialized models depend on
// this convention, so treat it as a compatibility contract.
type Domain []VarID

// Size returns the product of the referenced cardinalities in domain order.
// An empty domain has no well-defined size and is rejected.
func (d Domain) Size(reg *Registry) (int, error) {
	if len(d) == 0 {
		return 0, fmt.Errorf("%w: domain must reference at least one variable", ErrShapeMismatch)
	}
	size := 1
	for _, id := range d {
		v, _, err := reg.Lookup(id)
		if err != nil {
			return 0, err
		}
		size *= v.Size
	}
	return size, nil
}

// FlatIndex maps one value per domain variable to a linear index into a flat
// array of Size elements. The inverse is Unflatten.
func (d Domain) FlatIndex(reg *Registry, assignment []int) (int, error) {
	if len(assignment) != len(d) {
		return 0, &ShapeMismatchError{What: "domain assignment", Want: len(d), Got: len(assignment)}
	}
	idx := 0
	for i, id := range d {
		v, _, err := reg.Lookup(id)
		if err != nil {
			return 0, err
		}
		val := assignment[i]
		if val < 0 || val >= v.Size {
			return 0, &IndexOutOfRangeError{Variable: id, Value: val, Size: v.Size}
		}
		idx = idx*v.Size + val
	}
	return idx, nil
}

// Unflatten recovers the assignment encoded by FlatIndex.
func (d Domain) Unflatten(reg *Registry, index int) ([]int, error) {
	size, err := d.Size(reg)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= size {
		return nil, &IndexOutOfRangeError{Value: index, Size: size}
	}
	out := make([]int, len(d))
	for i := len(d) - 1; i >= 0; i-- {
		v, _, _ := reg.Lookup(d[i])
		out[i] = index % v.Size
		index /= v.Size
	}
	return out, nil
}

// contains reports whether id appears in the domain.
func (d Domain) contains(id VarID) bool {
	for _, v := range d {
		if v == id {
			return true
		}
	}
	return false
}
