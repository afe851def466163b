package hpo

import (
	"fmt"
	"math"
	"sort"
)

//////
// Const, vars, types.
//////

// Space is a hierarchical configuration space: a set of parameters plus the
// conditions that activate child parameters depending on their parents.
//
// A Space is built once with NewSpace and is read-only afterwards, so a single
// instance may be shared by several strategies.
type Space struct {
	params     map[string]Parameter
	order      []string
	conditions []Condition
	byChild    map[string][]Condition
}

//////
// Factory.
//////

// NewSpace validates the declarations and builds a Space.
//
// Parameters:
// - params: The parameters of the space; names must be unique
// - conditions: Parent -> child activation rules
//
// Returns:
// - *Space: The read-only space
// - error: ErrInvalidSpace or ErrUnknownParameterKind, wrapped with details
//
// Usage example:
//
//	space, err := NewSpace(
//	    []Parameter{
//	        Categorical{Name: "optimizer", Choices: []any{"sgd", "adam"}},
//	        Continuous{Name: "momentum", Lower: 0, Upper: 0.99},
//	        Continuous{Name: "lr", Lower: 1e-4, Upper: 1e-1, Log: true},
//	    },
//	    EqualsCondition("momentum", "optimizer", "sgd"),
//	)
//
// Important notes:
// - Conditions must not form cycles
// - The canonical order (Names) lists parents before children
func NewSpace(params []Parameter, conditions ...Condition) (*Space, error) {
	s := &Space{
		params:     make(map[string]Parameter, len(params)),
		conditions: append([]Condition(nil), conditions...),
		byChild:    make(map[string][]Condition),
	}

	for _, p := range params {
		if p == nil {
			return nil, fmt.Errorf("%w: nil parameter", ErrInvalidSpace)
		}

		name := p.ParamName()
		if name == "" {
			return nil, fmt.Errorf("%w: parameter without a name", ErrInvalidSpace)
		}

		if _, exists := s.params[name]; exists {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidSpace, name)
		}

		if err := checkParameter(p); err != nil {
			return nil, err
		}

		s.params[name] = p
	}

	for _, c := range s.conditions {
		if _, ok := s.params[c.Child]; !ok {
			return nil, fmt.Errorf("%w: condition on unknown child %q", ErrInvalidSpace, c.Child)
		}

		if _, ok := s.params[c.Parent]; !ok {
			return nil, fmt.Errorf("%w: condition on unknown parent %q", ErrInvalidSpace, c.Parent)
		}

		switch c.Kind {
		case Equals, In, LessThan, GreaterThan:
		case Generic:
			if c.Evaluate == nil {
				return nil, fmt.Errorf("%w: generic condition on %q without an evaluator", ErrInvalidSpace, c.Child)
			}
		default:
			return nil, fmt.Errorf("%w: unknown condition kind %q", ErrInvalidSpace, c.Kind)
		}

		s.byChild[c.Child] = append(s.byChild[c.Child], c)
	}

	order, err := topologicalOrder(s.params, s.conditions)
	if err != nil {
		return nil, err
	}

	s.order = order

	return s, nil
}

// checkParameter rejects parameters whose domain is empty or unusable.
func checkParameter(p Parameter) error {
	switch p := p.(type) {
	case Categorical:
		if len(p.Choices) == 0 {
			return fmt.Errorf("%w: categorical %q has no choices", ErrInvalidSpace, p.Name)
		}
	case Ordinal:
		if len(p.Sequence) == 0 {
			return fmt.Errorf("%w: ordinal %q has an empty sequence", ErrInvalidSpace, p.Name)
		}
	case Constant:
	case Continuous:
		if math.IsNaN(p.Lower) || math.IsNaN(p.Upper) || p.Lower > p.Upper {
			return fmt.Errorf("%w: continuous %q has bounds [%v, %v]", ErrInvalidSpace, p.Name, p.Lower, p.Upper)
		}

		if math.IsInf(p.Lower, 0) || math.IsInf(p.Upper, 0) {
			return fmt.Errorf("%w: continuous %q has an infinite bound", ErrInvalidSpace, p.Name)
		}

		if p.Log && p.Lower <= 0 {
			return fmt.Errorf("%w: log-scaled %q needs a positive lower bound", ErrInvalidSpace, p.Name)
		}
	case Integer:
		if p.Lower > p.Upper {
			return fmt.Errorf("%w: integer %q has bounds [%d, %d]", ErrInvalidSpace, p.Name, p.Lower, p.Upper)
		}

		// Draws pick one of span+1 values with Int63n.
		if span := uint64(p.Upper) - uint64(p.Lower); span >= math.MaxInt64 {
			return fmt.Errorf("%w: integer %q spans more than %d values", ErrInvalidSpace, p.Name, int64(math.MaxInt64))
		}

		if p.Log && p.Lower <= 0 {
			return fmt.Errorf("%w: log-scaled %q needs a positive lower bound", ErrInvalidSpace, p.Name)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownParameterKind, p)
	}

	return nil
}

// topologicalOrder lists parents before children, breaking ties by name.
func topologicalOrder(params map[string]Parameter, conditions []Condition) ([]string, error) {
	indegree := make(map[string]int, len(params))
	children := make(map[string][]string)
	seen := make(map[[2]string]bool)

	for name := range params {
		indegree[name] = 0
	}

	for _, c := range conditions {
		edge := [2]string{c.Parent, c.Child}
		if seen[edge] {
			continue
		}

		seen[edge] = true
		children[c.Parent] = append(children[c.Parent], c.Child)
		indegree[c.Child]++
	}

	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(params))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, child := range children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(params) {
		return nil, fmt.Errorf("%w: conditions form a cycle", ErrInvalidSpace)
	}

	return order, nil
}

//////
// Methods.
//////

// Names returns the parameter names in canonical order: parents before
// children, otherwise alphabetical. Vectorize uses the same order.
func (s *Space) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of parameters.
func (s *Space) Len() int {
	return len(s.order)
}

// Parameter returns the parameter called name.
func (s *Space) Parameter(name string) (Parameter, bool) {
	p, ok := s.params[name]

	return p, ok
}

// Parameters returns the parameters in canonical order.
func (s *Space) Parameters() []Parameter {
	out := make([]Parameter, len(s.order))
	for i, name := range s.order {
		out[i] = s.params[name]
	}

	return out
}

// Conditions returns a copy of the declared conditions.
func (s *Space) Conditions() []Condition {
	return append([]Condition(nil), s.conditions...)
}

// IsSatisfied reports whether every condition on name holds against the
// partial assignment. Parameters without conditions are always satisfied.
//
// Predicate semantics:
// - Equals, In: the parent must be assigned and match
// - LessThan, GreaterThan: the parent must be assigned and compare; ordinal
//   parents compare by position in their sequence
// - Generic: the evaluator's verdict; an error or panic counts as satisfied
func (s *Space) IsSatisfied(name string, partial Configuration) bool {
	for _, c := range s.byChild[name] {
		if !s.holds(c, partial) {
			return false
		}
	}

	return true
}

func (s *Space) holds(c Condition, partial Configuration) bool {
	value, assigned := partial[c.Parent]

	switch c.Kind {
	case Equals:
		return assigned && valuesEqual(value, c.Value)
	case In:
		return assigned && indexOf(c.Values, value) >= 0
	case LessThan:
		if !assigned {
			return false
		}

		cmp, ok := s.compare(c.Parent, value, c.Value)

		return ok && cmp < 0
	case GreaterThan:
		if !assigned {
			return false
		}

		cmp, ok := s.compare(c.Parent, value, c.Value)

		return ok && cmp > 0
	default:
		if !assigned {
			value = nil
		}

		return evaluateGeneric(c.Evaluate, value)
	}
}

// evaluateGeneric runs a generic predicate. Failures are treated as
// satisfied: the condition is skipped rather than rejecting the child.
func evaluateGeneric(fn func(any) (bool, error), value any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = true
		}
	}()

	result, err := fn(value)
	if err != nil {
		return true
	}

	return result
}

// compare orders a parent value against a condition operand.
func (s *Space) compare(parent string, value, target any) (int, bool) {
	if p, ok := s.params[parent].(Ordinal); ok {
		i, j := indexOf(p.Sequence, value), indexOf(p.Sequence, target)
		if i >= 0 && j >= 0 {
			return i - j, true
		}
	}

	a, okA := toFloat64(value)
	b, okB := toFloat64(target)
	if !okA || !okB {
		return 0, false
	}

	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	default:
		return 0, true
	}
}

// Validate checks that config holds exactly the active parameters, each with
// a value inside its domain.
//
// Returns:
// - error: nil, or an error wrapping ErrInvalidConfiguration
func (s *Space) Validate(config Configuration) error {
	for name := range config {
		if _, ok := s.params[name]; !ok {
			return fmt.Errorf("%w: unknown parameter %q", ErrInvalidConfiguration, name)
		}
	}

	for _, name := range s.order {
		value, present := config[name]
		active := s.IsSatisfied(name, config)

		switch {
		case active && !present:
			return fmt.Errorf("%w: active parameter %q is missing", ErrInvalidConfiguration, name)
		case !active && present:
			return fmt.Errorf("%w: inactive parameter %q is set", ErrInvalidConfiguration, name)
		case present:
			if err := checkValue(s.params[name], value); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkValue verifies that v lies in the domain of p.
func checkValue(p Parameter, v any) error {
	switch p := p.(type) {
	case Categorical:
		if indexOf(p.Choices, v) < 0 {
			return fmt.Errorf("%w: %v is not a choice of %q", ErrInvalidConfiguration, v, p.Name)
		}
	case Ordinal:
		if indexOf(p.Sequence, v) < 0 {
			return fmt.Errorf("%w: %v is not in the sequence of %q", ErrInvalidConfiguration, v, p.Name)
		}
	case Constant:
		if !valuesEqual(p.Value, v) {
			return fmt.Errorf("%w: %q must be %v", ErrInvalidConfiguration, p.Name, p.Value)
		}
	case Continuous:
		f, ok := toFloat64(v)
		if !ok || math.IsNaN(f) || f < p.Lower || f > p.Upper {
			return fmt.Errorf("%w: %v is outside [%v, %v] for %q", ErrInvalidConfiguration, v, p.Lower, p.Upper, p.Name)
		}
	case Integer:
		f, ok := toFloat64(v)
		if !ok || f != math.Trunc(f) || f < float64(p.Lower) || f > float64(p.Upper) {
			return fmt.Errorf("%w: %v is outside [%d, %d] for %q", ErrInvalidConfiguration, v, p.Lower, p.Upper, p.Name)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownParameterKind, p)
	}

	return nil
}
