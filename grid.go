package hpo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// GridValues returns the representative values of p used by grid search.
//
// Per kind:
// - Categorical: every choice
// - Ordinal: every sequence value
// - Constant: the single value
// - Continuous: steps values spaced linearly, or logarithmically when Log is set
// - Integer: as Continuous, rounded and de-duplicated
//
// Example: Continuous{Lower: 0, Upper: 10} with steps = 2 yields 0.0 and 10.0.
func GridValues(p Parameter, steps int) ([]any, error) {
	if steps < 1 {
		steps = 1
	}

	switch p := p.(type) {
	case Categorical:
		return append([]any(nil), p.Choices...), nil
	case Ordinal:
		return append([]any(nil), p.Sequence...), nil
	case Constant:
		return []any{p.Value}, nil
	case Continuous:
		var points []float64
		if p.Log {
			points = linspace(math.Log(p.Lower), math.Log(p.Upper), steps)
			for i := range points {
				points[i] = clamp(math.Exp(points[i]), p.Lower, p.Upper)
			}
		} else {
			points = linspace(p.Lower, p.Upper, steps)
		}

		out := make([]any, len(points))
		for i, v := range points {
			out[i] = v
		}

		return out, nil
	case Integer:
		var points []float64
		if p.Log {
			points = linspace(math.Log(float64(p.Lower)), math.Log(float64(p.Upper)), steps)
			for i := range points {
				points[i] = math.Exp(points[i])
			}
		} else {
			points = linspace(p.Lower, p.Upper, steps)
		}

		out := make([]any, 0, len(points))
		last := 0
		for i, v := range points {
			n := clamp(int(math.Round(v)), p.Lower, p.Upper)
			if i > 0 && n == last {
				continue
			}

			out = append(out, n)
			last = n
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownParameterKind, p)
	}
}

// Grid builds a conditional Cartesian product of the parameters' grid values.
//
// Starting from the empty assignment, every partial assignment is extended by
// each value of the next parameter in canonical order, but only when that
// parameter is active for the partial assignment; inactive parameters are left
// unset on that branch. Whenever an expansion step yields more than
// targetCount candidates they are subsampled uniformly (keeping their order)
// down to targetCount. Candidates that fail validation are dropped at the end.
//
// Parameters:
// - rng: Random source for subsampling
// - targetCount: Upper bound on the number of candidates at every step
// - steps: Values per continuous or integer parameter
//
// Returns:
// - []Configuration: At most targetCount valid configurations
// - error: ErrUnknownParameterKind for a malformed space
func (s *Space) Grid(rng *rand.Rand, targetCount, steps int) ([]Configuration, error) {
	if rng == nil {
		return nil, ErrNoRandomState
	}

	if targetCount <= 0 {
		return []Configuration{}, nil
	}

	partials := []Configuration{{}}

	for _, name := range s.order {
		values, err := GridValues(s.params[name], steps)
		if err != nil {
			return nil, err
		}

		next := make([]Configuration, 0, len(partials)*len(values))
		for _, partial := range partials {
			if !s.IsSatisfied(name, partial) {
				next = append(next, partial)

				continue
			}

			for _, v := range values {
				extended := partial.Clone()
				extended[name] = v
				next = append(next, extended)
			}
		}

		if len(next) > targetCount {
			next = subsample(rng, next, targetCount)
		}

		partials = next
	}

	grid := make([]Configuration, 0, len(partials))
	for _, candidate := range partials {
		if s.Validate(candidate) == nil {
			grid = append(grid, candidate)
		}
	}

	return grid, nil
}

// subsample keeps n uniformly chosen elements of configs in their original
// order.
func subsample(rng *rand.Rand, configs []Configuration, n int) []Configuration {
	picked := rng.Perm(len(configs))[:n]
	sort.Ints(picked)

	out := make([]Configuration, n)
	for i, idx := range picked {
		out[i] = configs[idx]
	}

	return out
}
