package hpo

import (
	"fmt"
	"math"
	"math/rand"
)

// maxFailuresPerSample bounds the failed draws Sample may make per requested
// configuration.
const maxFailuresPerSample = 100

// SampleOption tunes Sample.
type SampleOption func(*sampleOptions)

type sampleOptions struct {
	duplicates bool
}

// WithDuplicates lets Sample return the same configuration more than once.
// Acquisition candidates use it: they are scored, never evaluated, so repeats
// are harmless and small spaces do not exhaust.
func WithDuplicates() SampleOption {
	return func(o *sampleOptions) {
		o.duplicates = true
	}
}

// Sample draws count valid configurations independently and uniformly.
//
// Each candidate is assigned by repeated passes over the unassigned parameters:
// a parameter whose conditions hold against the partial assignment is drawn and
// marked assigned, until a pass makes no progress (at most one pass per
// parameter). The result is validated against the space; invalid candidates,
// and by default candidates equal to one already accepted, count as failed
// draws.
//
// Parameters:
// - rng: Random source; every draw comes from it
// - count: Number of configurations wanted
// - opts: WithDuplicates to disable de-duplication
//
// Returns:
// - []Configuration: Exactly count configurations
// - error: ErrSamplingExhausted after count × 100 failed draws
func (s *Space) Sample(rng *rand.Rand, count int, opts ...SampleOption) ([]Configuration, error) {
	if rng == nil {
		return nil, ErrNoRandomState
	}

	if count <= 0 {
		return []Configuration{}, nil
	}

	var o sampleOptions
	for _, opt := range opts {
		opt(&o)
	}

	accepted := make([]Configuration, 0, count)
	seen := make(map[string]struct{}, count)
	maxFailures := count * maxFailuresPerSample
	failures := 0

	for len(accepted) < count {
		config, err := s.draw(rng)
		if err != nil {
			return nil, err
		}

		ok := s.Validate(config) == nil
		if ok && !o.duplicates {
			key := configKey(config)
			if _, dup := seen[key]; dup {
				ok = false
			} else {
				seen[key] = struct{}{}
			}
		}

		if ok {
			accepted = append(accepted, config)

			continue
		}

		failures++
		if failures >= maxFailures {
			return nil, fmt.Errorf(
				"%w: found %d of %d configurations after %d failed draws",
				ErrSamplingExhausted, len(accepted), count, failures,
			)
		}
	}

	return accepted, nil
}

// draw assigns one candidate by fixed-point iteration over the conditions.
func (s *Space) draw(rng *rand.Rand) (Configuration, error) {
	config := make(Configuration, len(s.order))

	for pass := 0; pass < len(s.order); pass++ {
		progressed := false

		for _, name := range s.order {
			if _, done := config[name]; done {
				continue
			}

			if !s.IsSatisfied(name, config) {
				continue
			}

			v, err := drawValue(rng, s.params[name])
			if err != nil {
				return nil, err
			}

			config[name] = v
			progressed = true
		}

		if !progressed {
			break
		}
	}

	return config, nil
}

// drawValue draws one value from the domain of p.
func drawValue(rng *rand.Rand, p Parameter) (any, error) {
	switch p := p.(type) {
	case Categorical:
		return p.Choices[rng.Intn(len(p.Choices))], nil
	case Ordinal:
		return p.Sequence[rng.Intn(len(p.Sequence))], nil
	case Constant:
		return p.Value, nil
	case Continuous:
		if p.Log {
			lo, hi := math.Log(p.Lower), math.Log(p.Upper)

			return clamp(math.Exp(lo+rng.Float64()*(hi-lo)), p.Lower, p.Upper), nil
		}

		return p.Lower + rng.Float64()*(p.Upper-p.Lower), nil
	case Integer:
		if p.Log {
			lo, hi := math.Log(float64(p.Lower)), math.Log(float64(p.Upper))
			v := int(math.Round(math.Exp(lo + rng.Float64()*(hi-lo))))

			return clamp(v, p.Lower, p.Upper), nil
		}

		return p.Lower + int(rng.Int63n(int64(p.Upper-p.Lower)+1)), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownParameterKind, p)
	}
}
