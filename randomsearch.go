package hpo

// RandomSearch evaluates a fixed pool of uniformly sampled configurations at
// the maximum budget.
type RandomSearch struct {
	searchBase
}

// NewRandomSearch samples InitialCount(cfg) distinct configurations once.
//
// Returns:
// - error: ErrInvalidBudget for bad settings, ErrSamplingExhausted when the
//   space cannot provide enough distinct valid configurations
//
// Usage example:
//
//	config := DefaultConfig()
//	config.TotalBudget, config.MinBudget, config.MaxBudget = 10000, 1, 52
//	config.RandomState = rand.New(rand.NewSource(0))
//
//	rs, err := NewRandomSearch(space, config)
//	for {
//	    cfg, budget, _ := rs.Ask()
//	    if cfg == nil {
//	        break
//	    }
//	    _ = rs.Tell(evaluate(cfg, budget))
//	}
func NewRandomSearch(space *Space, cfg Config) (*RandomSearch, error) {
	base, err := newSearchBase("random-search", space, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := space.Sample(base.rng, InitialCount(base.cfg))
	if err != nil {
		return nil, err
	}

	base.pool = pool
	base.log.V(1).Info("pool sampled", "size", len(pool))

	return &RandomSearch{searchBase: base}, nil
}

// Name implements Strategy.
func (r *RandomSearch) Name() string { return "RandomSearch" }

// Ask implements Strategy.
func (r *RandomSearch) Ask() (Configuration, float64, error) {
	if err := r.checkAsk(); err != nil {
		return nil, 0, err
	}

	if r.exhausted() {
		return r.done()
	}

	return r.issue(r.cfg.MaxBudget)
}
