package augment

import (
	"fmt"

	"leaffliction/internal/opencv/safe"
)

// Func is a pure image transform. The input is never modified and the
// result is owned by the caller.
type Func func(src *safe.Mat) (*safe.Mat, error)

type Operator struct {
	Name  string
	Apply Func
}

// Registry is the fixed, ordered operator table. Index order drives the
// deterministic cycling used by class balancing, so it must not change.
type Registry struct {
	operators []Operator
	byName    map[string]int
}

// NewRegistry builds the operator table in its canonical order:
// Flip, Rotate, Blur, Contrast, Crop, Deform, Wave.
func NewRegistry(params Params) (*Registry, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid augmentation parameters: %w", err)
	}

	ops := []Operator{
		{Name: "Flip", Apply: Flip},
		{Name: "Rotate", Apply: func(src *safe.Mat) (*safe.Mat, error) { return Rotate(src, params) }},
		{Name: "Blur", Apply: func(src *safe.Mat) (*safe.Mat, error) { return Blur(src, params) }},
		{Name: "Contrast", Apply: func(src *safe.Mat) (*safe.Mat, error) { return Contrast(src, params) }},
		{Name: "Crop", Apply: func(src *safe.Mat) (*safe.Mat, error) { return Crop(src, params) }},
		{Name: "Deform", Apply: func(src *safe.Mat) (*safe.Mat, error) { return Deform(src, params) }},
		{Name: "Wave", Apply: func(src *safe.Mat) (*safe.Mat, error) { return Wave(src, params) }},
	}

	r := &Registry{
		operators: ops,
		byName:    make(map[string]int, len(ops)),
	}
	for i, op := range ops {
		r.byName[op.Name] = i
	}
	return r, nil
}

func (r *Registry) Len() int {
	return len(r.operators)
}

// At returns the operator at position i modulo the registry size.
func (r *Registry) At(i int) Operator {
	n := len(r.operators)
	return r.operators[((i%n)+n)%n]
}

func (r *Registry) Lookup(name string) (Operator, error) {
	if i, ok := r.byName[name]; ok {
		return r.operators[i], nil
	}
	return Operator{}, fmt.Errorf("unknown augmentation: %s", name)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.operators))
	for i, op := range r.operators {
		names[i] = op.Name
	}
	return names
}

// Operators returns a copy of the table in canonical order.
func (r *Registry) Operators() []Operator {
	out := make([]Operator, len(r.operators))
	copy(out, r.operators)
	return out
}
