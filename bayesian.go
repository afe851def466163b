package hpo

import (
	"fmt"
	"math"
)

// BayesianOptimisation is a surrogate-guided sequential search. It starts
// from InitialSamples random configurations and, whenever every pooled
// configuration has a result, fits the surrogate on them and appends the
// candidate with the highest acquisition value. Every configuration is
// evaluated at the maximum budget.
//
// How it works:
//  1. Ask returns the terminal marker once InitialCount configurations were
//     handed out
//  2. When all pooled configurations have results:
//     - the pool is vectorized and the surrogate is fitted on the results
//     - NumCandidates random candidates are scored by the acquisition
//       function with BestSoFar = max(results)
//     - the best candidate is appended to the pool
//  3. The next pooled configuration is returned at MaxBudget
type BayesianOptimisation struct {
	searchBase

	nInit       int
	surrogate   Surrogate
	acquisition AcquisitionFunc
	params      AcquisitionParams
	bestHistory []float64
}

// NewBayesianOptimisation samples the initial pool.
//
// Returns:
// - error: ErrInvalidBudget for bad settings, ErrSamplingExhausted when the
//   space holds fewer than InitialSamples distinct configurations
func NewBayesianOptimisation(space *Space, cfg Config) (*BayesianOptimisation, error) {
	base, err := newSearchBase("bayesian-optimisation", space, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := space.Sample(base.rng, base.cfg.InitialSamples)
	if err != nil {
		return nil, err
	}

	base.pool = pool

	surrogate := base.cfg.Surrogate
	if surrogate == nil {
		surrogate = NewGaussianProcess()
	}

	params := base.cfg.AcqParams
	if params.RandomState == nil {
		params.RandomState = base.rng
	}

	return &BayesianOptimisation{
		searchBase:  base,
		nInit:       InitialCount(base.cfg),
		surrogate:   surrogate,
		acquisition: base.cfg.AcquisitionFunc,
		params:      params,
	}, nil
}

// Name implements Strategy.
func (b *BayesianOptimisation) Name() string { return "BayesianOptimisation" }

// BestHistory returns the best observed result recorded at every surrogate
// fit, oldest first. It never decreases.
func (b *BayesianOptimisation) BestHistory() []float64 {
	return append([]float64(nil), b.bestHistory...)
}

// Ask implements Strategy. Surrogate and sampling failures are returned as
// errors and leave the strategy unchanged, so Ask may be retried.
func (b *BayesianOptimisation) Ask() (Configuration, float64, error) {
	if err := b.checkAsk(); err != nil {
		return nil, 0, err
	}

	if b.cursor >= b.nInit {
		return b.done()
	}

	if len(b.results) == len(b.pool) {
		if err := b.propose(); err != nil {
			return nil, 0, err
		}
	}

	return b.issue(b.cfg.MaxBudget)
}

// propose fits the surrogate and appends the argmax-acquisition candidate as
// a new pool snapshot. Candidates already in the pool are passed over unless
// nothing else was drawn.
func (b *BayesianOptimisation) propose() error {
	X := b.space.VectorizeAll(b.pool)
	if err := b.surrogate.Fit(X, b.results); err != nil {
		return fmt.Errorf("fit surrogate: %w", err)
	}

	candidates, err := b.space.Sample(b.rng, b.cfg.NumCandidates, WithDuplicates())
	if err != nil {
		return fmt.Errorf("sample candidates: %w", err)
	}

	mean, std, err := b.surrogate.Predict(b.space.VectorizeAll(candidates))
	if err != nil {
		return fmt.Errorf("predict candidates: %w", err)
	}

	best := math.Inf(-1)
	for _, r := range b.results {
		best = math.Max(best, r)
	}

	b.params.BestSoFar = best
	b.bestHistory = append(b.bestHistory, best)

	pooled := make(map[string]bool, len(b.pool))
	for _, c := range b.pool {
		pooled[configKey(c)] = true
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = b.acquisition(mean[i], std[i], b.params)
	}

	chosen := -1
	for i, c := range candidates {
		if pooled[configKey(c)] {
			continue
		}

		if chosen < 0 || scores[i] > scores[chosen] {
			chosen = i
		}
	}

	// Every candidate was evaluated before: re-evaluate the best of them.
	if chosen < 0 {
		chosen = 0
		for i := range scores {
			if scores[i] > scores[chosen] {
				chosen = i
			}
		}

		b.log.V(1).Info("no unevaluated candidate, repeating one", "pool", len(b.pool))
	}

	chosenScore := scores[chosen]

	next := make([]Configuration, len(b.pool), len(b.pool)+1)
	copy(next, b.pool)
	b.pool = append(next, candidates[chosen])

	b.log.V(1).Info("candidate proposed",
		"pool", len(b.pool),
		"best", best,
		"acquisition", chosenScore,
	)

	return nil
}
