package benchmark

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalesfsp/hpo"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			b, err := Lookup(name, 1)
			require.NoError(t, err)

			assert.Equal(t, name, b.Name)
			assert.NotNil(t, b.Space)
			assert.NotNil(t, b.Evaluator)
			assert.Less(t, b.MinBudget, b.MaxBudget)
		})
	}

	_, err := Lookup("rosenbrock", 1)
	assert.Error(t, err)
}

func TestScoresAreBoundedAndDeterministic(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			b, err := Lookup(name, 42)
			require.NoError(t, err)

			configs, err := b.Space.Sample(rand.New(rand.NewSource(1)), 50)
			require.NoError(t, err)

			for _, c := range configs {
				for _, budget := range []float64{b.MinBudget, b.MaxBudget} {
					first, err := b.Evaluator.Evaluate(context.Background(), c, budget)
					require.NoError(t, err)

					second, err := b.Evaluator.Evaluate(context.Background(), c, budget)
					require.NoError(t, err)

					assert.Equal(t, first, second)
					assert.GreaterOrEqual(t, first, 0.0)
					assert.LessOrEqual(t, first, 1.0)
				}
			}
		})
	}
}

func TestScoresRiseWithBudget(t *testing.T) {
	mlp := &MLP{Curve: Curve{Tau: 10}}

	config := hpo.Configuration{
		"optimizer":     "adam",
		"learning_rate": 1e-3,
		"num_layers":    3,
		"width":         128,
		"activation":    "relu",
	}

	low, err := mlp.Evaluate(context.Background(), config, 1)
	require.NoError(t, err)

	high, err := mlp.Evaluate(context.Background(), config, 52)
	require.NoError(t, err)

	assert.Less(t, low, high)
	assert.InDelta(t, 0.95, high, 0.01)
}

func TestMLPPrefersGoodLearningRates(t *testing.T) {
	mlp := &MLP{Curve: Curve{Tau: 10}}

	score := func(lr float64) float64 {
		v, err := mlp.Evaluate(context.Background(), hpo.Configuration{
			"optimizer":     "sgd",
			"momentum":      0.9,
			"learning_rate": lr,
			"num_layers":    3,
			"width":         64,
			"activation":    "relu",
		}, 52)
		require.NoError(t, err)

		return v
	}

	assert.Greater(t, score(1e-2), score(1e-4))
	assert.Greater(t, score(1e-2), score(1))
}

func TestMLPRejectsIncompleteConfigurations(t *testing.T) {
	mlp := &MLP{}

	_, err := mlp.Evaluate(context.Background(), hpo.Configuration{"optimizer": "adam"}, 1)
	assert.Error(t, err)

	_, err = mlp.Evaluate(context.Background(), hpo.Configuration{
		"optimizer":     "sgd",
		"learning_rate": 1e-3,
		"num_layers":    3,
		"width":         64,
	}, 1)
	assert.Error(t, err)
}

func TestBranin(t *testing.T) {
	assert.InDelta(t, braninMinimum, BraninFunc(-3.14159, 12.275), 1e-4)
	assert.InDelta(t, braninMinimum, BraninFunc(3.14159, 2.275), 1e-4)
	assert.InDelta(t, braninMinimum, BraninFunc(9.42478, 2.475), 1e-4)

	branin := &Branin{Curve: Curve{Tau: 0.2}}

	best, err := branin.Evaluate(context.Background(), hpo.Configuration{"x1": 3.14159, "x2": 2.275}, 1)
	require.NoError(t, err)

	worse, err := branin.Evaluate(context.Background(), hpo.Configuration{"x1": -5.0, "x2": 0.0}, 1)
	require.NoError(t, err)

	assert.Greater(t, best, worse)
	assert.InDelta(t, 0.99, best, 0.01)

	_, err = branin.Evaluate(context.Background(), hpo.Configuration{"x1": 0.0, "x2": 0.0}, 0)
	assert.Error(t, err)
}

func TestDelayHonoursContext(t *testing.T) {
	branin := &Branin{Curve: Curve{Tau: 1, Delay: time.Hour}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := branin.Evaluate(ctx, hpo.Configuration{"x1": 0.0, "x2": 0.0}, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBenchmarksDriveEveryStrategy(t *testing.T) {
	b, err := Lookup(NameMLP, 0)
	require.NoError(t, err)

	for _, name := range hpo.StrategyNames() {
		t.Run(name, func(t *testing.T) {
			config := hpo.DefaultConfig()
			config.TotalBudget = 520
			config.MinBudget = b.MinBudget
			config.MaxBudget = b.MaxBudget
			config.RandomState = rand.New(rand.NewSource(0))

			s, err := hpo.NewStrategy(name, b.Space, config)
			require.NoError(t, err)

			result, err := hpo.Run(context.Background(), s, b.Evaluator, hpo.RunConfig{
				TotalBudget: config.TotalBudget,
				MinBudget:   config.MinBudget,
			})
			require.NoError(t, err)

			assert.NotEmpty(t, result.Trials)
			assert.LessOrEqual(t, result.Spent, config.TotalBudget+config.MaxBudget/config.MinBudget)
			assert.Greater(t, result.BestResult, 0.0)
		})
	}
}
