package hpo

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
)

//////
// Const, vars, types.
//////

// Strategy is the ask/tell protocol every search strategy implements.
//
// Protocol:
//  1. Ask proposes a configuration and the budget to evaluate it at
//  2. The caller evaluates it and reports the result with Tell
//  3. Repeat until Ask returns a nil configuration (paired with the maximum
//     budget), which is the strategy's only termination signal
//
// Ask and Tell must strictly alternate; a second Ask before Tell, or a Tell
// without a pending Ask, returns ErrProtocolViolation and changes nothing.
// Strategies are not safe for concurrent use: one evaluation is in flight at a
// time.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Ask returns the next configuration and its budget. A nil configuration
	// means the strategy is done; asking again keeps returning it.
	Ask() (Configuration, float64, error)

	// Tell records the result of the configuration returned by the last Ask.
	Tell(result float64) error
}

// validate is shared by every struct validation in the package; validator
// instances cache struct metadata and are safe for concurrent use.
var validate = validator.New()

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration. Budgets still have to be
// set by the caller.
func DefaultConfig() Config {
	return Config{
		Eta:             2,
		GridSteps:       2,
		InitialSamples:  5,
		NumCandidates:   100,
		AcquisitionFunc: ExpectedImprovement,
		AcqParams: AcquisitionParams{
			Beta: 2.0,
		},
		Logger: logr.Discard(),
	}
}

// InitialCount returns the number of configurations a strategy can afford at
// full fidelity: floor(TotalBudget / (MaxBudget / MinBudget)).
func InitialCount(cfg Config) int {
	if cfg.MinBudget <= 0 || cfg.MaxBudget <= 0 {
		return 0
	}

	ratio := cfg.MaxBudget / cfg.MinBudget

	return int(math.Floor(cfg.TotalBudget / ratio))
}

//////
// Base.
//////

// searchBase holds the pool, the results in arrival order and the cursor
// shared by every strategy.
type searchBase struct {
	space *Space
	cfg   Config
	rng   *rand.Rand
	log   logr.Logger

	pool    []Configuration
	results []float64
	cursor  int
	pending bool
}

// newSearchBase fills in defaults, validates the configuration and sets up
// the random source.
func newSearchBase(name string, space *Space, cfg Config) (searchBase, error) {
	if space == nil {
		return searchBase{}, fmt.Errorf("%w: nil space", ErrInvalidSpace)
	}

	cfg = withDefaults(cfg)
	if err := validate.Struct(cfg); err != nil {
		return searchBase{}, fmt.Errorf("%w: %v", ErrInvalidBudget, err)
	}

	rng := cfg.RandomState
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return searchBase{
		space: space,
		cfg:   cfg,
		rng:   rng,
		log:   cfg.Logger.WithName(name),
	}, nil
}

// withDefaults replaces zero values with the DefaultConfig ones.
func withDefaults(cfg Config) Config {
	def := DefaultConfig()

	if cfg.Eta == 0 {
		cfg.Eta = def.Eta
	}

	if cfg.GridSteps == 0 {
		cfg.GridSteps = def.GridSteps
	}

	if cfg.InitialSamples == 0 {
		cfg.InitialSamples = def.InitialSamples
	}

	if cfg.NumCandidates == 0 {
		cfg.NumCandidates = def.NumCandidates
	}

	if cfg.AcquisitionFunc == nil {
		cfg.AcquisitionFunc = def.AcquisitionFunc
	}

	if cfg.Logger.GetSink() == nil {
		cfg.Logger = def.Logger
	}

	return cfg
}

// exhausted reports whether every pooled configuration has been handed out.
func (b *searchBase) exhausted() bool {
	return b.cursor >= len(b.pool)
}

// issue hands out the configuration under the cursor at budget.
func (b *searchBase) issue(budget float64) (Configuration, float64, error) {
	config := b.pool[b.cursor].Clone()
	b.cursor++
	b.pending = true

	return config, budget, nil
}

// done is the terminal answer of Ask.
func (b *searchBase) done() (Configuration, float64, error) {
	return nil, b.cfg.MaxBudget, nil
}

// checkAsk rejects an Ask while a Tell is outstanding.
func (b *searchBase) checkAsk() error {
	if b.pending {
		return fmt.Errorf("%w: ask called before the previous result was told", ErrProtocolViolation)
	}

	return nil
}

// record stores the result of the pending configuration.
func (b *searchBase) record(result float64) error {
	if !b.pending {
		return fmt.Errorf("%w: tell called without a pending ask", ErrProtocolViolation)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidResult, result)
	}

	b.results = append(b.results, result)
	b.pending = false

	return nil
}

// Pool returns a copy of the current configuration pool.
func (b *searchBase) Pool() []Configuration {
	out := make([]Configuration, len(b.pool))
	for i, c := range b.pool {
		out[i] = c.Clone()
	}

	return out
}

// Results returns a copy of the results reported for the current pool, in
// arrival order.
func (b *searchBase) Results() []float64 {
	return append([]float64(nil), b.results...)
}

// Tell records the result of the configuration returned by the last Ask.
func (b *searchBase) Tell(result float64) error {
	return b.record(result)
}
