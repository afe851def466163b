// Package benchmark provides synthetic, multi-fidelity objectives that stand
// in for a real training job. Scores are deterministic for a given seed,
// configuration and budget, lie in [0, 1] and rise with the budget along a
// learning curve.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/thalesfsp/hpo"
)

//////
// Const, vars, types.
//////

// Benchmark names accepted by Lookup.
const (
	NameMLP    = "mlp"
	NameBranin = "branin"
)

// braninMinimum is the global minimum of the Branin function.
const braninMinimum = 0.397887

// Benchmark pairs a configuration space with an objective over it and the
// fidelity range the objective supports.
type Benchmark struct {
	Name      string
	Space     *hpo.Space
	Evaluator hpo.Evaluator

	// MinBudget and MaxBudget bound the fidelity, e.g. training epochs.
	MinBudget float64
	MaxBudget float64
}

// Curve is the shared learning-curve and noise model.
type Curve struct {
	// Tau is the budget at which a configuration reaches ~63% of its final
	// score.
	Tau float64

	// Noise is the standard deviation of the additive Gaussian noise.
	Noise float64

	// Seed selects the noise realisation.
	Seed int64

	// Delay simulates training time per budget unit. Zero means no delay.
	Delay time.Duration
}

// MLP scores a simulated neural network training run over MLPSpace.
type MLP struct {
	Curve
}

// Branin scores the negated Branin function over BraninSpace.
type Branin struct {
	Curve
}

//////
// Exported functionalities.
//////

// Names lists the benchmarks accepted by Lookup.
func Names() []string {
	return []string{NameMLP, NameBranin}
}

// Lookup builds the benchmark called name with noise seeded by seed.
func Lookup(name string, seed int64) (*Benchmark, error) {
	switch name {
	case NameMLP:
		space, err := MLPSpace()
		if err != nil {
			return nil, err
		}

		return &Benchmark{
			Name:      name,
			Space:     space,
			Evaluator: &MLP{Curve: Curve{Tau: 10, Noise: 0.01, Seed: seed}},
			MinBudget: 1,
			MaxBudget: 52,
		}, nil
	case NameBranin:
		space, err := BraninSpace()
		if err != nil {
			return nil, err
		}

		return &Benchmark{
			Name:      name,
			Space:     space,
			Evaluator: &Branin{Curve: Curve{Tau: 0.2, Noise: 0.01, Seed: seed}},
			MinBudget: 0.03,
			MaxBudget: 1,
		}, nil
	default:
		return nil, fmt.Errorf("unknown benchmark %q, expected one of %v", name, Names())
	}
}

// MLPSpace is a small conditional network-training space: momentum only
// exists for sgd.
func MLPSpace() (*hpo.Space, error) {
	return hpo.NewSpace(
		[]hpo.Parameter{
			hpo.Categorical{Name: "optimizer", Choices: []any{"sgd", "adam"}},
			hpo.Continuous{Name: "momentum", Lower: 0, Upper: 0.99},
			hpo.Continuous{Name: "learning_rate", Lower: 1e-5, Upper: 1, Log: true},
			hpo.Integer{Name: "num_layers", Lower: 1, Upper: 8},
			hpo.Ordinal{Name: "width", Sequence: []any{16, 32, 64, 128, 256}},
			hpo.Constant{Name: "activation", Value: "relu"},
		},
		hpo.EqualsCondition("momentum", "optimizer", "sgd"),
	)
}

// BraninSpace is the usual Branin domain.
func BraninSpace() (*hpo.Space, error) {
	return hpo.NewSpace([]hpo.Parameter{
		hpo.Continuous{Name: "x1", Lower: -5, Upper: 10},
		hpo.Continuous{Name: "x2", Lower: 0, Upper: 15},
	})
}

// Evaluate implements hpo.Evaluator.
func (m *MLP) Evaluate(ctx context.Context, config hpo.Configuration, budget float64) (float64, error) {
	optimizer, ok := config["optimizer"].(string)
	if !ok {
		return 0, errors.New("optimizer missing or not a string")
	}

	lr, err := number(config, "learning_rate")
	if err != nil {
		return 0, err
	}

	layers, err := number(config, "num_layers")
	if err != nil {
		return 0, err
	}

	width, err := number(config, "width")
	if err != nil {
		return 0, err
	}

	// Each optimiser has its own best learning rate, one decade apart.
	bestLR := -3.0
	quality := 0.95

	if optimizer == "sgd" {
		bestLR = -2.0

		momentum, err := number(config, "momentum")
		if err != nil {
			return 0, err
		}

		quality = 0.8 + 0.15*momentum
	}

	d := math.Log10(lr) - bestLR
	quality *= math.Exp(-d * d / 2)
	quality *= 1 - 0.04*math.Abs(layers-3)
	quality *= 1 - 0.1*math.Abs(math.Log2(width/128))/3

	return m.score(ctx, config, budget, quality)
}

// Evaluate implements hpo.Evaluator.
func (b *Branin) Evaluate(ctx context.Context, config hpo.Configuration, budget float64) (float64, error) {
	x1, err := number(config, "x1")
	if err != nil {
		return 0, err
	}

	x2, err := number(config, "x2")
	if err != nil {
		return 0, err
	}

	quality := 1 / (1 + BraninFunc(x1, x2) - braninMinimum)

	return b.score(ctx, config, budget, quality)
}

// BraninFunc is the Branin-Hoo function. Its three global minima take the
// value 0.397887.
func BraninFunc(x1, x2 float64) float64 {
	const (
		a = 1.0
		r = 6.0
		s = 10.0
	)

	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)

	u := x2 - b*x1*x1 + c*x1 - r

	return a*u*u + s*(1-t)*math.Cos(x1) + s
}

//////
// Helpers.
//////

// score applies the learning curve and noise to quality, after the
// simulated training delay.
func (c Curve) score(ctx context.Context, config hpo.Configuration, budget, quality float64) (float64, error) {
	if budget <= 0 {
		return 0, fmt.Errorf("budget must be positive, got %v", budget)
	}

	if c.Delay > 0 {
		timer := time.NewTimer(time.Duration(budget * float64(c.Delay)))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return 0, err
	}

	tau := c.Tau
	if tau <= 0 {
		tau = 1
	}

	value := quality * (1 - math.Exp(-budget/tau))

	if c.Noise > 0 {
		rng := rand.New(rand.NewSource(noiseSeed(c.Seed, config, budget)))
		value += c.Noise * rng.NormFloat64()
	}

	return math.Min(math.Max(value, 0), 1), nil
}

// noiseSeed derives a seed from the run seed, the configuration and the
// budget so that repeated evaluations agree.
func noiseSeed(seed int64, config hpo.Configuration, budget float64) int64 {
	names := make([]string, 0, len(config))
	for name := range config {
		names = append(names, name)
	}

	sort.Strings(names)

	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%v|", seed, budget)

	for _, name := range names {
		fmt.Fprintf(h, "%s=%v;", name, config[name])
	}

	return int64(h.Sum64())
}

func number(config hpo.Configuration, name string) (float64, error) {
	switch v := config[name].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s missing or not numeric: %v", name, config[name])
	}
}
