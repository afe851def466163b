package hpo

import (
	"context"
	"math/rand"

	"github.com/go-logr/logr"
)

//////
// Configuration space.
//////

// Configuration maps parameter names to values. A valid configuration holds
// exactly the parameters that are active given its own values: no inactive
// parameter is present and no active parameter is missing.
//
// Value types:
//   - Continuous: float64
//   - Integer: int
//   - Categorical, Ordinal, Constant: whatever the space declared
type Configuration map[string]any

// Clone returns a shallow copy of the configuration. Values are scalars, so
// the copy is independent of the original.
func (c Configuration) Clone() Configuration {
	if c == nil {
		return nil
	}

	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}

	return out
}

// Parameter is one hyperparameter of a configuration space. It is a closed set
// of kinds: Categorical, Ordinal, Constant, Continuous and Integer. Every
// switch over parameters in this package handles all five and reports
// ErrUnknownParameterKind otherwise.
type Parameter interface {
	// ParamName returns the unique name of the parameter.
	ParamName() string

	parameter()
}

// Categorical is an unordered choice between values.
type Categorical struct {
	Name    string
	Choices []any
}

// Ordinal is an ordered sequence of values. Comparison conditions on an
// ordinal parent compare positions within Sequence.
type Ordinal struct {
	Name     string
	Sequence []any
}

// Constant always takes Value.
type Constant struct {
	Name  string
	Value any
}

// Continuous is a float64 in [Lower, Upper], drawn uniformly in log space when
// Log is set.
type Continuous struct {
	Name         string
	Lower, Upper float64
	Log          bool
}

// Integer is an int in [Lower, Upper], drawn uniformly in log space when Log
// is set.
type Integer struct {
	Name         string
	Lower, Upper int
	Log          bool
}

func (p Categorical) ParamName() string { return p.Name }
func (p Ordinal) ParamName() string     { return p.Name }
func (p Constant) ParamName() string    { return p.Name }
func (p Continuous) ParamName() string  { return p.Name }
func (p Integer) ParamName() string     { return p.Name }

func (Categorical) parameter() {}
func (Ordinal) parameter()     {}
func (Constant) parameter()    {}
func (Continuous) parameter()  {}
func (Integer) parameter()     {}

// ConditionKind is the predicate of a Condition.
type ConditionKind string

const (
	// Equals holds when the parent value equals Value.
	Equals ConditionKind = "equals"

	// In holds when the parent value is one of Values.
	In ConditionKind = "in"

	// LessThan holds when the parent is present and below Value.
	LessThan ConditionKind = "less_than"

	// GreaterThan holds when the parent is present and above Value.
	GreaterThan ConditionKind = "greater_than"

	// Generic delegates to Condition.Evaluate. A failing evaluation counts as
	// satisfied.
	Generic ConditionKind = "generic"
)

// Condition activates Child depending on the value assigned to Parent. All
// conditions sharing a child are ANDed.
type Condition struct {
	Parent string
	Child  string
	Kind   ConditionKind

	// Value is the operand of Equals, LessThan and GreaterThan.
	Value any

	// Values is the operand of In.
	Values []any

	// Evaluate is called for Generic conditions with the parent value, or nil
	// when the parent is unassigned.
	Evaluate func(parent any) (bool, error)
}

// EqualsCondition activates child when parent == value.
func EqualsCondition(child, parent string, value any) Condition {
	return Condition{Child: child, Parent: parent, Kind: Equals, Value: value}
}

// InCondition activates child when parent is one of values.
func InCondition(child, parent string, values ...any) Condition {
	return Condition{Child: child, Parent: parent, Kind: In, Values: values}
}

// LessThanCondition activates child when parent < value.
func LessThanCondition(child, parent string, value any) Condition {
	return Condition{Child: child, Parent: parent, Kind: LessThan, Value: value}
}

// GreaterThanCondition activates child when parent > value.
func GreaterThanCondition(child, parent string, value any) Condition {
	return Condition{Child: child, Parent: parent, Kind: GreaterThan, Value: value}
}

// GenericCondition activates child when fn returns true, or when fn fails.
func GenericCondition(child, parent string, fn func(parent any) (bool, error)) Condition {
	return Condition{Child: child, Parent: parent, Kind: Generic, Evaluate: fn}
}

//////
// Acquisition.
//////

// AcquisitionFunc scores a candidate from the surrogate's predicted mean and
// standard deviation. Higher values indicate more promising candidates.
//
// Built-in acquisition functions:
// - ExpectedImprovement (default)
// - ProbabilityOfImprovement
// - UCB
// - ThompsonSampling
//
// Implementation notes for custom acquisition functions:
// - Must return a finite value when std is zero
// - Should be deterministic unless they draw from params.RandomState
type AcquisitionFunc func(mean, std float64, params AcquisitionParams) float64

// AcquisitionParams holds the knobs used by the acquisition functions.
type AcquisitionParams struct {
	// Beta controls exploration in UCB. Typical values range from 0.1 to 5.0.
	Beta float64

	// Xi is the minimum improvement over BestSoFar sought by PI and EI.
	// Zero reproduces the plain Expected Improvement formula.
	Xi float64

	// BestSoFar is the best (highest) result observed so far. It is updated by
	// the optimiser before every acquisition round.
	BestSoFar float64

	// RandomState is used by ThompsonSampling. The optimiser fills it with its
	// own generator when nil.
	RandomState *rand.Rand
}

//////
// Strategy configuration.
//////

// Config holds the settings shared by every search strategy. Fields that a
// strategy does not use are ignored.
//
// Usage example:
//
//	config := DefaultConfig()
//	config.TotalBudget = 10000
//	config.MinBudget = 1
//	config.MaxBudget = 52
//	config.RandomState = rand.New(rand.NewSource(42))
//
//	sh, err := NewSuccessiveHalving(space, config)
//
// Note:
// - Create a separate Config (and RandomState) for every strategy instance.
type Config struct {
	// TotalBudget is the overall evaluation budget, expressed in units of
	// MinBudget-sized evaluations.
	TotalBudget float64 `validate:"gt=0"`

	// MinBudget is the lowest fidelity a single evaluation may run at.
	MinBudget float64 `validate:"gt=0"`

	// MaxBudget is the highest fidelity a single evaluation may run at.
	MaxBudget float64 `validate:"gtefield=MinBudget"`

	// Eta is the halving factor of successive halving.
	Eta float64 `validate:"gt=1"`

	// GridSteps is the number of values per numeric parameter in grid search.
	GridSteps int `validate:"gte=1"`

	// InitialSamples is the size of the random pool Bayesian optimisation
	// starts from.
	InitialSamples int `validate:"gte=1"`

	// NumCandidates is the number of random candidates scored by the
	// acquisition function per Bayesian step.
	NumCandidates int `validate:"gte=1"`

	// RandomState drives every random draw of the strategy. A nil value is
	// replaced by a generator seeded from the clock; pass
	// rand.New(rand.NewSource(seed)) for reproducible runs.
	RandomState *rand.Rand `validate:"-"`

	// Surrogate is the regression model of Bayesian optimisation. Nil means a
	// fresh GaussianProcess.
	Surrogate Surrogate `validate:"-"`

	// AcquisitionFunc selects the next Bayesian candidate. Nil means
	// ExpectedImprovement.
	AcquisitionFunc AcquisitionFunc `validate:"-"`

	// AcqParams holds the acquisition function parameters.
	AcqParams AcquisitionParams `validate:"-"`

	// Logger receives strategy-level diagnostics.
	Logger logr.Logger `validate:"-"`
}

//////
// Evaluation.
//////

// Evaluator is the external objective: it returns a scalar, higher-is-better
// metric for a configuration evaluated at the given budget (fidelity).
type Evaluator interface {
	Evaluate(ctx context.Context, config Configuration, budget float64) (float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
//
// Usage example:
//
//	eval := EvaluatorFunc(func(ctx context.Context, cfg Configuration, budget float64) (float64, error) {
//	    return trainAndScore(ctx, cfg, int(budget))
//	})
type EvaluatorFunc func(ctx context.Context, config Configuration, budget float64) (float64, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, config Configuration, budget float64) (float64, error) {
	return f(ctx, config, budget)
}

// ProgressUpdate represents the current state of a run.
type ProgressUpdate struct {
	// RunID identifies the run emitting the update.
	RunID string

	// Strategy is the name of the strategy being driven.
	Strategy string

	// Evaluation is the 1-based index of the evaluation just completed.
	Evaluation int

	// Budget is the fidelity the last configuration was evaluated at.
	Budget float64

	// Spent is the total budget consumed so far.
	Spent float64

	// TotalBudget is the budget the run may consume.
	TotalBudget float64

	// CurrentConfig holds the configuration just evaluated.
	CurrentConfig Configuration

	// LastResult holds the result of the last evaluation.
	LastResult float64

	// BestConfig holds the best configuration found so far.
	BestConfig Configuration

	// BestResult holds the best result found so far.
	BestResult float64
}
