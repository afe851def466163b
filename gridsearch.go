package hpo

// GridSearch evaluates a conditional grid, bounded to InitialCount
// configurations, at the maximum budget.
type GridSearch struct {
	searchBase
}

// NewGridSearch builds the grid with Space.Grid(InitialCount(cfg), GridSteps)
// and truncates it to InitialCount entries.
func NewGridSearch(space *Space, cfg Config) (*GridSearch, error) {
	base, err := newSearchBase("grid-search", space, cfg)
	if err != nil {
		return nil, err
	}

	n := InitialCount(base.cfg)

	grid, err := space.Grid(base.rng, n, base.cfg.GridSteps)
	if err != nil {
		return nil, err
	}

	if len(grid) > n {
		grid = grid[:n]
	}

	base.pool = grid
	base.log.V(1).Info("grid built", "size", len(grid), "target", n, "steps", base.cfg.GridSteps)

	return &GridSearch{searchBase: base}, nil
}

// Name implements Strategy.
func (g *GridSearch) Name() string { return "GridSearch" }

// Ask implements Strategy.
func (g *GridSearch) Ask() (Configuration, float64, error) {
	if err := g.checkAsk(); err != nil {
		return nil, 0, err
	}

	if g.exhausted() {
		return g.done()
	}

	return g.issue(g.cfg.MaxBudget)
}
