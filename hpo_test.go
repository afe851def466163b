package hpo

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadEvaluator scores quadScore scaled by a learning curve over budget.
var quadEvaluator = EvaluatorFunc(func(_ context.Context, c Configuration, budget float64) (float64, error) {
	return quadScore(c) * (1 - math.Exp(-budget/4)), nil
})

func runConfig(t *testing.T, config Config) RunConfig {
	t.Helper()

	return RunConfig{
		TotalBudget: config.TotalBudget,
		MinBudget:   config.MinBudget,
		Logger:      testr.New(t),
	}
}

func TestRunRandomSearchAccounting(t *testing.T) {
	config := testConfig(42, 44, 1, 8)

	rs, err := NewRandomSearch(quadSpace(t), config)
	require.NoError(t, err)

	result, err := Run(context.Background(), rs, quadEvaluator, runConfig(t, config))
	require.NoError(t, err)

	assert.Equal(t, "RandomSearch", result.Strategy)
	assert.NotEmpty(t, result.ID)
	assert.Len(t, result.Trials, 5)
	assert.Equal(t, 40.0, result.Spent)
	assert.Equal(t, 5, result.InitialCount)
	assert.True(t, result.Terminated)

	for i, trial := range result.Trials {
		assert.Equal(t, 8.0, trial.Budget)
		assert.Equal(t, float64(i)*8, trial.SpentBefore)
		assert.Equal(t, float64(i+1)*8, trial.SpentAfter)
	}

	best := result.Best(1)
	require.Len(t, best, 1)
	assert.Equal(t, result.BestResult, best[0].Result)
	assert.Equal(t, result.BestConfig, best[0].Config)
}

func TestRunSuccessiveHalvingAccounting(t *testing.T) {
	config := testConfig(42, 40, 1, 8)

	sh, err := NewSuccessiveHalving(quadSpace(t), config)
	require.NoError(t, err)

	result, err := Run(context.Background(), sh, quadEvaluator, runConfig(t, config))
	require.NoError(t, err)

	// Rounds of 16, 8, 4 and 2 pay 1, 1, 2 and 4 units per configuration.
	assert.Len(t, result.Trials, 30)
	assert.Equal(t, 40.0, result.Spent)
	assert.Equal(t, 16, result.InitialCount)
	assert.False(t, result.Terminated)

	assert.Equal(t, 16.0, result.Trials[15].SpentAfter)
	assert.Equal(t, 24.0, result.Trials[23].SpentAfter)
	assert.Equal(t, 32.0, result.Trials[27].SpentAfter)
}

func TestRunStopsAtTotalBudget(t *testing.T) {
	// The strategy could go on, but the run may only spend 16.
	strategyConfig := testConfig(1, 80, 1, 8)

	rs, err := NewRandomSearch(quadSpace(t), strategyConfig)
	require.NoError(t, err)

	result, err := Run(context.Background(), rs, quadEvaluator, RunConfig{
		TotalBudget: 16,
		MinBudget:   1,
	})
	require.NoError(t, err)

	assert.Len(t, result.Trials, 2)
	assert.Equal(t, 16.0, result.Spent)
	assert.False(t, result.Terminated)
}

func TestRunEvaluatorFailures(t *testing.T) {
	config := testConfig(3, 40, 1, 8)

	rs, err := NewRandomSearch(quadSpace(t), config)
	require.NoError(t, err)

	calls := 0
	evaluator := EvaluatorFunc(func(_ context.Context, c Configuration, _ float64) (float64, error) {
		calls++

		switch calls {
		case 2:
			return 0, errors.New("training diverged")
		case 3:
			return math.NaN(), nil
		default:
			return quadScore(c), nil
		}
	})

	rc := runConfig(t, config)
	rc.FailureResult = -1

	result, err := Run(context.Background(), rs, evaluator, rc)
	require.NoError(t, err)
	require.Len(t, result.Trials, 5)

	assert.True(t, result.Trials[1].Failed)
	assert.Equal(t, -1.0, result.Trials[1].Result)
	assert.True(t, result.Trials[2].Failed)
	assert.Equal(t, -1.0, result.Trials[2].Result)
	assert.False(t, result.Trials[0].Failed)

	assert.Equal(t, []float64{result.Trials[0].Result, -1, -1, result.Trials[3].Result, result.Trials[4].Result}, rs.Results())
	assert.Len(t, result.Best(10), 3)
}

func TestRunCancelled(t *testing.T) {
	config := testConfig(3, 40, 1, 8)

	rs, err := NewRandomSearch(quadSpace(t), config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	evaluator := EvaluatorFunc(func(ctx context.Context, c Configuration, _ float64) (float64, error) {
		cancel()

		return 0, ctx.Err()
	})

	result, err := Run(ctx, rs, evaluator, runConfig(t, config))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Trials)
}

func TestRunRejectsBadInput(t *testing.T) {
	config := testConfig(3, 40, 1, 8)

	rs, err := NewRandomSearch(quadSpace(t), config)
	require.NoError(t, err)

	_, err = Run(context.Background(), nil, quadEvaluator, runConfig(t, config))
	assert.Error(t, err)

	_, err = Run(context.Background(), rs, nil, runConfig(t, config))
	assert.Error(t, err)

	_, err = Run(context.Background(), rs, quadEvaluator, RunConfig{TotalBudget: 10})
	assert.ErrorIs(t, err, ErrInvalidBudget)
}

func TestRunProgressUpdates(t *testing.T) {
	config := testConfig(5, 64, 1, 8)

	bo, err := NewBayesianOptimisation(quadSpace(t), config)
	require.NoError(t, err)

	progressChan := make(chan ProgressUpdate, 100)

	var (
		count      int32
		lastUpdate ProgressUpdate
		mu         sync.Mutex
		wg         sync.WaitGroup
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		for update := range progressChan {
			atomic.AddInt32(&count, 1)

			mu.Lock()
			lastUpdate = update
			mu.Unlock()

			assert.NotNil(t, update.CurrentConfig)
			assert.GreaterOrEqual(t, update.BestResult, update.LastResult)
		}
	}()

	rc := runConfig(t, config)
	rc.ProgressChan = progressChan

	result, err := Run(context.Background(), bo, quadEvaluator, rc)
	require.NoError(t, err)

	close(progressChan)
	wg.Wait()

	assert.Equal(t, int32(8), atomic.LoadInt32(&count))

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, result.ID, lastUpdate.RunID)
	assert.Equal(t, 8, lastUpdate.Evaluation)
	assert.Equal(t, 64.0, lastUpdate.Spent)
	assert.Equal(t, result.BestResult, lastUpdate.BestResult)
	assert.Equal(t, result.BestConfig, lastUpdate.BestConfig)
}

func TestRunProgressNeverBlocks(t *testing.T) {
	config := testConfig(5, 40, 1, 8)

	rs, err := NewRandomSearch(quadSpace(t), config)
	require.NoError(t, err)

	// Nobody reads; a full channel drops updates instead of stalling the run.
	progressChan := make(chan ProgressUpdate, 1)

	rc := runConfig(t, config)
	rc.ProgressChan = progressChan

	result, err := Run(context.Background(), rs, quadEvaluator, rc)
	require.NoError(t, err)

	assert.Len(t, result.Trials, 5)
	assert.Len(t, progressChan, 1)
}

func TestRunMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	config := testConfig(5, 40, 1, 8)

	rs, err := NewRandomSearch(quadSpace(t), config)
	require.NoError(t, err)

	calls := 0
	evaluator := EvaluatorFunc(func(_ context.Context, c Configuration, _ float64) (float64, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("out of memory")
		}

		return quadScore(c), nil
	})

	rc := runConfig(t, config)
	rc.Metrics = metrics

	result, err := Run(context.Background(), rs, evaluator, rc)
	require.NoError(t, err)

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.evaluations.WithLabelValues("RandomSearch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("RandomSearch")))
	assert.Equal(t, 40.0, testutil.ToFloat64(metrics.spent.WithLabelValues("RandomSearch")))
	assert.Equal(t, result.BestResult, testutil.ToFloat64(metrics.best.WithLabelValues("RandomSearch")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.duration))
}

func TestRunIsReproducible(t *testing.T) {
	run := func(name string) *RunResult {
		config := testConfig(2024, 64, 1, 8)

		s, err := NewStrategy(name, mlpSpace(t), config)
		require.NoError(t, err)

		score := EvaluatorFunc(func(_ context.Context, c Configuration, budget float64) (float64, error) {
			return c["lr"].(float64) * budget, nil
		})

		result, err := Run(context.Background(), s, score, runConfig(t, config))
		require.NoError(t, err)

		return result
	}

	for _, name := range StrategyNames() {
		t.Run(name, func(t *testing.T) {
			first, second := run(name), run(name)

			assert.Equal(t, first.Trials, second.Trials)
			assert.Equal(t, first.BestConfig, second.BestConfig)
			assert.NotEqual(t, first.ID, second.ID)
		})
	}
}
