package hpo

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Parameter type names used in space files.
const (
	TypeCategorical = "categorical"
	TypeOrdinal     = "ordinal"
	TypeConstant    = "constant"
	TypeContinuous  = "continuous"
	TypeInteger     = "integer"
)

// SpaceFile is the YAML description of a configuration space.
//
// Example:
//
//	parameters:
//	  - name: optimizer
//	    type: categorical
//	    choices: [sgd, adam]
//	  - name: momentum
//	    type: continuous
//	    lower: 0
//	    upper: 0.99
//	  - name: lr
//	    type: continuous
//	    lower: 0.0001
//	    upper: 0.1
//	    log: true
//	conditions:
//	  - child: momentum
//	    parent: optimizer
//	    type: equals
//	    value: sgd
type SpaceFile struct {
	Parameters []ParameterSpec `yaml:"parameters" validate:"required,min=1,dive"`
	Conditions []ConditionSpec `yaml:"conditions,omitempty" validate:"dive"`
}

// ParameterSpec describes one parameter. Which fields apply depends on Type.
type ParameterSpec struct {
	Name     string   `yaml:"name" validate:"required"`
	Type     string   `yaml:"type" validate:"required"`
	Choices  []any    `yaml:"choices,omitempty"`
	Sequence []any    `yaml:"sequence,omitempty"`
	Value    any      `yaml:"value,omitempty"`
	Lower    *float64 `yaml:"lower,omitempty"`
	Upper    *float64 `yaml:"upper,omitempty"`
	Log      bool     `yaml:"log,omitempty"`
}

// ConditionSpec describes one condition. Generic conditions need code and
// cannot be declared in a file.
type ConditionSpec struct {
	Child  string `yaml:"child" validate:"required"`
	Parent string `yaml:"parent" validate:"required"`
	Type   string `yaml:"type" validate:"required,oneof=equals in less_than greater_than"`
	Value  any    `yaml:"value,omitempty"`
	Values []any  `yaml:"values,omitempty"`
}

// LoadSpace reads a space file from disk.
func LoadSpace(path string) (*Space, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read space file: %w", err)
	}

	return ParseSpace(data)
}

// ParseSpace decodes and builds a space from YAML.
//
// Returns:
// - error: Decoding errors, ErrInvalidSpace for failed validation and
//   ErrUnknownParameterKind for an unrecognised parameter type
func ParseSpace(data []byte) (*Space, error) {
	var file SpaceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode space file: %w", err)
	}

	return file.Build()
}

// Build validates the description and builds the space.
func (f SpaceFile) Build() (*Space, error) {
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpace, err)
	}

	params := make([]Parameter, 0, len(f.Parameters))
	for _, spec := range f.Parameters {
		p, err := spec.parameter()
		if err != nil {
			return nil, err
		}

		params = append(params, p)
	}

	conditions := make([]Condition, 0, len(f.Conditions))
	for _, spec := range f.Conditions {
		conditions = append(conditions, Condition{
			Child:  spec.Child,
			Parent: spec.Parent,
			Kind:   ConditionKind(spec.Type),
			Value:  spec.Value,
			Values: spec.Values,
		})
	}

	return NewSpace(params, conditions...)
}

func (spec ParameterSpec) parameter() (Parameter, error) {
	switch spec.Type {
	case TypeCategorical:
		return Categorical{Name: spec.Name, Choices: spec.Choices}, nil
	case TypeOrdinal:
		return Ordinal{Name: spec.Name, Sequence: spec.Sequence}, nil
	case TypeConstant:
		return Constant{Name: spec.Name, Value: spec.Value}, nil
	case TypeContinuous:
		if spec.Lower == nil || spec.Upper == nil {
			return nil, fmt.Errorf("%w: continuous %q needs lower and upper", ErrInvalidSpace, spec.Name)
		}

		return Continuous{Name: spec.Name, Lower: *spec.Lower, Upper: *spec.Upper, Log: spec.Log}, nil
	case TypeInteger:
		if spec.Lower == nil || spec.Upper == nil {
			return nil, fmt.Errorf("%w: integer %q needs lower and upper", ErrInvalidSpace, spec.Name)
		}

		if *spec.Lower != math.Trunc(*spec.Lower) || *spec.Upper != math.Trunc(*spec.Upper) {
			return nil, fmt.Errorf("%w: integer %q needs integral bounds", ErrInvalidSpace, spec.Name)
		}

		return Integer{Name: spec.Name, Lower: int(*spec.Lower), Upper: int(*spec.Upper), Log: spec.Log}, nil
	default:
		return nil, fmt.Errorf("%w: %q for parameter %q", ErrUnknownParameterKind, spec.Type, spec.Name)
	}
}

// Describe returns the file form of the space, parameters in canonical
// order. Generic conditions are listed with their type only.
func (s *Space) Describe() SpaceFile {
	var f SpaceFile

	for _, p := range s.Parameters() {
		spec := ParameterSpec{Name: p.ParamName()}

		switch p := p.(type) {
		case Categorical:
			spec.Type, spec.Choices = TypeCategorical, p.Choices
		case Ordinal:
			spec.Type, spec.Sequence = TypeOrdinal, p.Sequence
		case Constant:
			spec.Type, spec.Value = TypeConstant, p.Value
		case Continuous:
			lower, upper := p.Lower, p.Upper
			spec.Type, spec.Lower, spec.Upper, spec.Log = TypeContinuous, &lower, &upper, p.Log
		case Integer:
			lower, upper := float64(p.Lower), float64(p.Upper)
			spec.Type, spec.Lower, spec.Upper, spec.Log = TypeInteger, &lower, &upper, p.Log
		}

		f.Parameters = append(f.Parameters, spec)
	}

	for _, c := range s.conditions {
		f.Conditions = append(f.Conditions, ConditionSpec{
			Child:  c.Child,
			Parent: c.Parent,
			Type:   string(c.Kind),
			Value:  c.Value,
			Values: c.Values,
		})
	}

	return f
}

// MarshalYAML renders the space as a space file.
func (s *Space) MarshalYAML() (any, error) {
	return s.Describe(), nil
}
