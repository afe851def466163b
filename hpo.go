package hpo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

//////
// Const, vars, types.
//////

// RunConfig controls a run of Run.
type RunConfig struct {
	// TotalBudget is the budget the run may consume, in MinBudget units.
	TotalBudget float64 `validate:"gt=0"`

	// MinBudget is the unit evaluation costs are measured in.
	MinBudget float64 `validate:"gt=0"`

	// FailureResult is told to the strategy when an evaluation fails or
	// returns a non-finite value.
	FailureResult float64

	// ProgressChan receives an update after every evaluation. Sends never
	// block: updates are dropped when the channel is full. Nil disables them.
	ProgressChan chan<- ProgressUpdate `validate:"-"`

	// Logger receives run lifecycle messages and evaluation failures.
	Logger logr.Logger `validate:"-"`

	// Metrics records evaluations; nil disables it.
	Metrics *Metrics `validate:"-"`
}

// Trial is one evaluation of a run.
type Trial struct {
	Config Configuration
	Budget float64
	Result float64

	// Failed is set when the evaluator returned an error or a non-finite
	// value and FailureResult was reported instead.
	Failed bool

	// SpentBefore and SpentAfter bracket the budget consumed by the trial.
	SpentBefore float64
	SpentAfter  float64
}

// RunResult summarises a run.
type RunResult struct {
	// ID uniquely identifies the run.
	ID string

	// Strategy is the name of the strategy that was driven.
	Strategy string

	// BestConfig and BestResult describe the best trial; BestConfig is nil
	// when nothing was evaluated.
	BestConfig Configuration
	BestResult float64

	// Spent is the budget consumed.
	Spent float64

	// InitialCount is the number of configurations evaluated at the first
	// budget level the strategy used.
	InitialCount int

	// Terminated is set when the strategy ended the run itself rather than
	// running out of budget.
	Terminated bool

	// Trials lists every evaluation in order.
	Trials []Trial
}

//////
// Exported functionalities.
//////

// Strategy identifiers accepted by NewStrategy.
const (
	StrategyRandom   = "random"
	StrategyGrid     = "grid"
	StrategyHalving  = "halving"
	StrategyBayesian = "bayesian"
)

// StrategyNames lists the identifiers accepted by NewStrategy.
func StrategyNames() []string {
	return []string{StrategyRandom, StrategyGrid, StrategyHalving, StrategyBayesian}
}

// NewStrategy builds the strategy identified by name.
func NewStrategy(name string, space *Space, cfg Config) (Strategy, error) {
	switch name {
	case StrategyRandom:
		return NewRandomSearch(space, cfg)
	case StrategyGrid:
		return NewGridSearch(space, cfg)
	case StrategyHalving:
		return NewSuccessiveHalving(space, cfg)
	case StrategyBayesian:
		return NewBayesianOptimisation(space, cfg)
	default:
		return nil, fmt.Errorf("unknown strategy %q, expected one of %v", name, StrategyNames())
	}
}

// Run drives strategy against evaluator until the strategy terminates or the
// total budget is consumed.
//
// Parameters:
// - ctx: Cancels the run between evaluations; it is also passed to evaluator
// - strategy: The search strategy to drive
// - evaluator: The objective
// - config: Budget and reporting settings
//
// Returns:
// - *RunResult: The trials so far, also on error
// - error: Validation, Ask/Tell and context errors
//
// Budget accounting:
//
// The budget levels handed out by the strategy are recorded in first-seen
// order, starting from 0. Every evaluation costs the difference between the
// two most recent levels divided by MinBudget. Evaluations at a single level
// therefore cost MaxBudget/MinBudget each, and a successive-halving round pays
// only for the increment over the previous round.
//
// Usage example:
//
//	strategy, _ := NewSuccessiveHalving(space, config)
//
//	result, err := Run(ctx, strategy, evaluator, RunConfig{
//	    TotalBudget: config.TotalBudget,
//	    MinBudget:   config.MinBudget,
//	})
//	fmt.Println(result.BestConfig, result.BestResult)
//
// Important notes:
// - Evaluator errors are logged and reported to the strategy as FailureResult
// - Run never evaluates concurrently; one configuration is in flight at a time
func Run(ctx context.Context, strategy Strategy, evaluator Evaluator, config RunConfig) (*RunResult, error) {
	if strategy == nil || evaluator == nil {
		return nil, errors.New("strategy and evaluator are required")
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBudget, err)
	}

	log := config.Logger
	name := strategy.Name()

	result := &RunResult{
		ID:         uuid.NewString(),
		Strategy:   name,
		BestResult: math.Inf(-1),
	}

	log = log.WithValues("run", result.ID, "strategy", name)
	log.Info("run started", "totalBudget", config.TotalBudget)

	levels := []float64{0}

	for result.Spent < config.TotalBudget {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		candidate, budget, err := strategy.Ask()
		if err != nil {
			return result, fmt.Errorf("ask: %w", err)
		}

		if !containsLevel(levels, budget) {
			levels = append(levels, budget)
		}

		if candidate == nil {
			result.Terminated = true

			break
		}

		if len(levels) == 2 {
			result.InitialCount++
		}

		start := time.Now()
		value, evalErr := evaluator.Evaluate(ctx, candidate.Clone(), budget)
		took := time.Since(start)

		if evalErr != nil && ctx.Err() != nil {
			return result, ctx.Err()
		}

		failed := evalErr != nil || math.IsNaN(value) || math.IsInf(value, 0)
		if failed {
			log.Error(evalErr, "evaluation failed", "budget", budget, "value", value)

			value = config.FailureResult
		}

		if err := strategy.Tell(value); err != nil {
			return result, fmt.Errorf("tell: %w", err)
		}

		cost := (levels[len(levels)-1] - levels[len(levels)-2]) / config.MinBudget

		trial := Trial{
			Config:      candidate,
			Budget:      budget,
			Result:      value,
			Failed:      failed,
			SpentBefore: result.Spent,
			SpentAfter:  result.Spent + cost,
		}

		result.Spent = trial.SpentAfter
		result.Trials = append(result.Trials, trial)

		if !failed && (result.BestConfig == nil || value > result.BestResult) {
			result.BestResult = value
			result.BestConfig = candidate
		}

		config.Metrics.observeEvaluation(name, took, failed)
		config.Metrics.observeProgress(name, result.Spent, result.BestResult)

		sendProgress(config, result, trial)
	}

	if result.Spent >= config.TotalBudget {
		log.Info("budget exhausted", "spent", result.Spent, "evaluations", len(result.Trials))
	} else {
		log.Info("strategy finished", "spent", result.Spent, "evaluations", len(result.Trials))
	}

	return result, nil
}

// Best returns the n best trials, highest result first. Failed trials are
// excluded.
func (r *RunResult) Best(n int) []Trial {
	trials := make([]Trial, 0, len(r.Trials))
	for _, t := range r.Trials {
		if !t.Failed {
			trials = append(trials, t)
		}
	}

	sort.SliceStable(trials, func(i, j int) bool {
		return trials[i].Result > trials[j].Result
	})

	if n < len(trials) {
		trials = trials[:n]
	}

	return trials
}

//////
// Helpers.
//////

func containsLevel(levels []float64, budget float64) bool {
	for _, l := range levels {
		if l == budget {
			return true
		}
	}

	return false
}

// sendProgress emits an update without blocking.
func sendProgress(config RunConfig, result *RunResult, trial Trial) {
	if config.ProgressChan == nil {
		return
	}

	update := ProgressUpdate{
		RunID:         result.ID,
		Strategy:      result.Strategy,
		Evaluation:    len(result.Trials),
		Budget:        trial.Budget,
		Spent:         result.Spent,
		TotalBudget:   config.TotalBudget,
		CurrentConfig: trial.Config.Clone(),
		LastResult:    trial.Result,
		BestConfig:    result.BestConfig.Clone(),
		BestResult:    result.BestResult,
	}

	select {
	case config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}
