package hpo

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessiveHalvingLadder(t *testing.T) {
	config := testConfig(42, 40, 1, 8)

	sh, err := NewSuccessiveHalving(quadSpace(t), config)
	require.NoError(t, err)
	assert.Equal(t, "SuccessiveHalving", sh.Name())
	assert.Equal(t, 4, sh.NumRounds())
	assert.Equal(t, 1.0, sh.Budget())
	require.Len(t, sh.Pool(), 16)

	budgets := drive(t, sh, quadScore)
	require.Len(t, budgets, 16+8+4+2)

	rounds := sh.Rounds()
	require.Len(t, rounds, 4)

	wantSizes := []int{16, 8, 4, 2}
	wantBudgets := []float64{1, 2, 4, 8}

	for i, r := range rounds {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, wantBudgets[i], r.Budget)
		assert.Len(t, r.Configs, wantSizes[i])
		assert.Len(t, r.Results, wantSizes[i])
	}

	// The final round runs at the maximum budget.
	assert.Equal(t, config.MaxBudget, rounds[3].Budget)

	// Budget spent by a driver that pays only the increment of each round.
	spent, prev := 0.0, 0.0
	for _, r := range rounds {
		spent += float64(len(r.Configs)) * (r.Budget - prev) / config.MinBudget
		prev = r.Budget
	}

	assert.Equal(t, 40.0, spent)
}

func TestSuccessiveHalvingPromotesTheBest(t *testing.T) {
	sh, err := NewSuccessiveHalving(quadSpace(t), testConfig(7, 40, 1, 8))
	require.NoError(t, err)

	drive(t, sh, quadScore)

	rounds := sh.Rounds()
	for i := 1; i < len(rounds); i++ {
		prev, cur := rounds[i-1], rounds[i]

		ranked := append([]float64(nil), prev.Results...)
		sort.Sort(sort.Reverse(sort.Float64Slice(ranked)))
		threshold := ranked[len(cur.Configs)-1]

		prevKeys := map[string]float64{}
		for j, c := range prev.Configs {
			prevKeys[configKey(c)] = prev.Results[j]
		}

		for _, c := range cur.Configs {
			result, ok := prevKeys[configKey(c)]
			require.True(t, ok, "survivor %v was not in the previous round", c)
			assert.GreaterOrEqual(t, result, threshold)
		}
	}
}

func TestSuccessiveHalvingSingleSurvivorJumpsToMax(t *testing.T) {
	config := testConfig(3, 5, 1, 9)
	config.Eta = 3

	sh, err := NewSuccessiveHalving(quadSpace(t), config)
	require.NoError(t, err)
	assert.Equal(t, 3, sh.NumRounds())
	require.Len(t, sh.Pool(), 3)

	budgets := drive(t, sh, quadScore)
	assert.Equal(t, []float64{1, 1, 1, 9}, budgets)

	rounds := sh.Rounds()
	require.Len(t, rounds, 2)
	assert.Equal(t, 9.0, rounds[1].Budget)
}

func TestSuccessiveHalvingBudgetCappedAtMax(t *testing.T) {
	// ratio 10 with eta 3: budgets 1, 3, 9 and then 10 instead of 27.
	config := testConfig(5, 200, 1, 10)
	config.Eta = 3

	sh, err := NewSuccessiveHalving(quadSpace(t), config)
	require.NoError(t, err)
	assert.Equal(t, 4, sh.NumRounds())

	budgets := drive(t, sh, quadScore)

	for _, b := range budgets {
		assert.LessOrEqual(t, b, config.MaxBudget)
	}

	rounds := sh.Rounds()
	assert.Equal(t, config.MaxBudget, rounds[len(rounds)-1].Budget)
}

func TestSuccessiveHalvingRoundsAreSnapshots(t *testing.T) {
	sh, err := NewSuccessiveHalving(quadSpace(t), testConfig(1, 40, 1, 8))
	require.NoError(t, err)

	drive(t, sh, quadScore)

	rounds := sh.Rounds()
	rounds[0].Configs[0]["x"] = -1.0
	rounds[0].Results[0] = -1

	fresh := sh.Rounds()
	assert.NotEqual(t, -1.0, fresh[0].Configs[0]["x"])
	assert.NotEqual(t, -1.0, fresh[0].Results[0])
}

func TestSuccessiveHalvingFloatSlack(t *testing.T) {
	// log(1000)/log(10) is just below 3 in floating point.
	config := testConfig(1, 50, 1, 1000)
	config.Eta = 10

	sh, err := NewSuccessiveHalving(quadSpace(t), config)
	require.NoError(t, err)
	assert.Equal(t, 4, sh.NumRounds())

	// Four sizing rounds: 50 / (4/10 + 1000/10^4).
	assert.Len(t, sh.Pool(), 100)
}

func TestSuccessiveHalvingNumRoundsMatchesLadder(t *testing.T) {
	// floor(log 8 / log 3) + 1 is 2, but the ladder climbs 1, 3 and 8.
	config := testConfig(2, 100, 1, 8)
	config.Eta = 3

	sh, err := NewSuccessiveHalving(quadSpace(t), config)
	require.NoError(t, err)
	assert.Equal(t, 3, sh.NumRounds())
	require.Len(t, sh.Pool(), 64)

	drive(t, sh, quadScore)

	rounds := sh.Rounds()
	require.Len(t, rounds, sh.NumRounds())

	wantSizes := []int{64, 21, 7}
	wantBudgets := []float64{1, 3, 8}

	for i, r := range rounds {
		assert.Equal(t, wantBudgets[i], r.Budget)
		assert.Len(t, r.Configs, wantSizes[i])
	}
}

func TestLadderLength(t *testing.T) {
	assert.Equal(t, 1, ladderLength(4, 4, 2))
	assert.Equal(t, 4, ladderLength(1, 8, 2))
	assert.Equal(t, 3, ladderLength(1, 9, 3))
	assert.Equal(t, 4, ladderLength(1, 10, 3))
	assert.Equal(t, 4, ladderLength(1, 1000, 10))
}
