// Package hpo provides a budget-aware hyperparameter search harness. Four
// search strategies share one ask/tell protocol so they can be benchmarked
// against the same fidelity-aware objective under a fixed total budget.
//
// # Features
//
// The package includes the following key features:
//
//   - Conditional configuration spaces: categorical, ordinal, constant,
//     continuous and integer parameters (optionally log-scaled) with
//     parent -> child activation conditions
//   - Constrained random sampling, conditional grid expansion and
//     vectorization of configurations
//   - Random Search, Grid Search, Successive Halving and Bayesian
//     Optimisation behind the Strategy interface
//   - A pluggable Surrogate with a Gaussian Process default and Expected
//     Improvement, Probability of Improvement, UCB and Thompson Sampling
//     acquisition functions
//   - A Run driver with incremental-fidelity budget accounting, progress
//     updates via channels and Prometheus metrics
//
// # Ask/Tell
//
// A driver owns the budget and calls Ask and Tell in strict alternation:
//
//	config := DefaultConfig()
//	config.TotalBudget, config.MinBudget, config.MaxBudget = 1000, 1, 8
//	config.RandomState = rand.New(rand.NewSource(42))
//
//	strategy, err := NewSuccessiveHalving(space, config)
//	if err != nil {
//	    return err
//	}
//
//	for {
//	    cfg, budget, err := strategy.Ask()
//	    if err != nil {
//	        return err
//	    }
//	    if cfg == nil {
//	        break // the strategy is done
//	    }
//	    if err := strategy.Tell(evaluate(cfg, budget)); err != nil {
//	        return err
//	    }
//	}
//
// Run implements this loop together with budget accounting.
//
// # Strategies
//
// All strategies size themselves from the budgets. With
// n_init = floor(TotalBudget / (MaxBudget / MinBudget)):
//
//   - RandomSearch samples n_init configurations and evaluates them at
//     MaxBudget
//   - GridSearch evaluates at most n_init grid points at MaxBudget
//   - SuccessiveHalving starts many configurations at MinBudget and promotes
//     the best 1/Eta of them to Eta times the budget until MaxBudget
//   - BayesianOptimisation starts from InitialSamples random configurations
//     and adds one surrogate-selected configuration at a time, up to n_init
//     evaluations at MaxBudget
//
// # Reproducibility
//
// Every random draw comes from Config.RandomState. Passing
// rand.New(rand.NewSource(seed)) makes pools identical across runs with the
// same inputs. Strategies are not safe for concurrent use.
package hpo
