package hpo

import (
	"math"
	"sort"
)

// roundingSlack absorbs floating point error in floor(log(ratio)/log(eta)),
// e.g. log(1000)/log(10) = 2.9999999999999996.
const roundingSlack = 1e-9

// Round is the immutable record of one completed successive-halving round.
type Round struct {
	// Index is the 0-based round number.
	Index int

	// Budget is the fidelity every configuration of the round ran at.
	Budget float64

	// Configs is the round's pool.
	Configs []Configuration

	// Results holds one result per entry of Configs, in the same order.
	Results []float64
}

// SuccessiveHalving evaluates many configurations cheaply and promotes the
// best 1/eta of them to eta times the budget, round after round, until the
// survivors have been evaluated at the maximum budget.
type SuccessiveHalving struct {
	searchBase

	rungs    int
	budget   float64
	rounds   []Round
	finished bool
}

// NewSuccessiveHalving sizes the ladder from the budgets and samples the
// first round at MinBudget.
//
// Sizing:
//
//	ratio    = MaxBudget / MinBudget
//	n_rounds = floor(log(ratio) / log(eta)) + 1
//	n_init   = floor(TotalBudget / (n_rounds/eta + ratio/eta^n_rounds))
//
// Example: eta = 2, budgets 1..8 and TotalBudget = 40 give 4 rounds of
// 16, 8, 4 and 2 configurations at budgets 1, 2, 4 and 8.
func NewSuccessiveHalving(space *Space, cfg Config) (*SuccessiveHalving, error) {
	base, err := newSearchBase("successive-halving", space, cfg)
	if err != nil {
		return nil, err
	}

	eta := base.cfg.Eta
	ratio := base.cfg.MaxBudget / base.cfg.MinBudget
	nRounds := int(math.Floor(math.Log(ratio)/math.Log(eta)+roundingSlack)) + 1
	nInit := int(math.Floor(base.cfg.TotalBudget / (float64(nRounds)/eta + ratio/math.Pow(eta, float64(nRounds)))))

	pool, err := space.Sample(base.rng, nInit)
	if err != nil {
		return nil, err
	}

	rungs := ladderLength(base.cfg.MinBudget, base.cfg.MaxBudget, eta)

	base.pool = pool
	base.log.V(1).Info("ladder sized", "rounds", rungs, "sizingRounds", nRounds, "initial", nInit, "eta", eta)

	return &SuccessiveHalving{
		searchBase: base,
		rungs:      rungs,
		budget:     base.cfg.MinBudget,
	}, nil
}

// ladderLength counts the budgets from lo, each eta times the previous one and
// capped at hi, up to and including hi.
func ladderLength(lo, hi, eta float64) int {
	n := 1
	for b := lo; b < hi; n++ {
		b = math.Min(b*eta, hi)
	}

	return n
}

// Name implements Strategy.
func (s *SuccessiveHalving) Name() string { return "SuccessiveHalving" }

// NumRounds returns the number of budgets on the ladder, MaxBudget included.
// It can exceed the n_rounds of the sizing formula when MaxBudget is not a
// power of eta times MinBudget (eta 3 over 1..8 climbs 1, 3, 8). A round left
// with a single survivor jumps to MaxBudget, so a search may close fewer.
func (s *SuccessiveHalving) NumRounds() int { return s.rungs }

// Budget returns the budget of the current round.
func (s *SuccessiveHalving) Budget() float64 { return s.budget }

// Rounds returns the completed rounds, oldest first.
func (s *SuccessiveHalving) Rounds() []Round {
	out := make([]Round, len(s.rounds))
	for i, r := range s.rounds {
		configs := make([]Configuration, len(r.Configs))
		for j, c := range r.Configs {
			configs[j] = c.Clone()
		}

		out[i] = Round{
			Index:   r.Index,
			Budget:  r.Budget,
			Configs: configs,
			Results: append([]float64(nil), r.Results...),
		}
	}

	return out
}

// Ask implements Strategy. When every configuration of the round has a
// result, the round is closed: at the maximum budget the search ends,
// otherwise the survivors are promoted.
func (s *SuccessiveHalving) Ask() (Configuration, float64, error) {
	if err := s.checkAsk(); err != nil {
		return nil, 0, err
	}

	if s.finished || len(s.pool) == 0 {
		return s.done()
	}

	if s.exhausted() {
		s.closeRound()

		if s.budget >= s.cfg.MaxBudget {
			s.finished = true
			s.log.V(1).Info("ladder finished", "rounds", len(s.rounds))

			return s.done()
		}

		s.promote()
	}

	return s.issue(s.budget)
}

// closeRound snapshots the current pool and its results.
func (s *SuccessiveHalving) closeRound() {
	s.rounds = append(s.rounds, Round{
		Index:   len(s.rounds),
		Budget:  s.budget,
		Configs: s.pool,
		Results: s.results,
	})
}

// promote keeps the top floor(n/eta) configurations (at least one) as a new
// pool snapshot and raises the budget by eta, capped at MaxBudget. A single
// survivor goes straight to MaxBudget.
func (s *SuccessiveHalving) promote() {
	order := make([]int, len(s.pool))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return s.results[order[a]] > s.results[order[b]]
	})

	keep := int(math.Floor(float64(len(s.pool)) / s.cfg.Eta))
	if keep < 1 {
		keep = 1
	}

	survivors := make([]Configuration, keep)
	for i := range survivors {
		survivors[i] = s.pool[order[i]]
	}

	next := math.Min(s.budget*s.cfg.Eta, s.cfg.MaxBudget)
	if keep == 1 {
		next = s.cfg.MaxBudget
	}

	s.log.V(1).Info("promoting", "from", len(s.pool), "to", keep, "budget", next)

	s.pool = survivors
	s.results = nil
	s.cursor = 0
	s.budget = next
}
