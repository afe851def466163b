package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/thalesfsp/hpo"
)

// CompareOptions are the options for comparing every strategy over several
// seeds.
type CompareOptions struct {
	*GlobalOptions
	BudgetOptions

	Seeds      []int
	Strategies []string
}

// NewCompareCommand creates a new command for comparing strategies.
func NewCompareCommand(o *CompareOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare search strategies",
		Long: "Run every strategy once per seed against the same benchmark and budget " +
			"and print the best result, spent budget and run time of each.",

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.compare(cmd.Context())
		},
	}

	o.addFlags(cmd)
	cmd.Flags().IntSliceVar(&o.Seeds, "seeds", []int{0, 42, 1234, 2025, 4321}, "random seeds, one run per strategy each")
	cmd.Flags().StringSliceVar(&o.Strategies, "strategies", hpo.StrategyNames(), "strategies to compare")

	return cmd
}

func (o *CompareOptions) compare(ctx context.Context) error {
	log := o.Logger()

	tw := tabwriter.NewWriter(o.Out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "SEED\tSTRATEGY\tBEST RESULT\tSPENT\tEVALUATIONS\tINITIAL\tRUN TIME")

	for _, seed := range o.Seeds {
		for _, name := range o.Strategies {
			bench, err := o.setup(int64(seed))
			if err != nil {
				return err
			}

			strategy, err := hpo.NewStrategy(name, bench.Space, o.strategyConfig(bench, int64(seed), log))
			if err != nil {
				return fmt.Errorf("%s, seed %d: %w", name, seed, err)
			}

			start := time.Now()

			result, err := hpo.Run(ctx, strategy, bench.Evaluator, hpo.RunConfig{
				TotalBudget: o.TotalBudget,
				MinBudget:   bench.MinBudget,
				Logger:      log,
			})
			if err != nil {
				return fmt.Errorf("%s, seed %d: %w", name, seed, err)
			}

			fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.2f\t%d\t%d\t%s\n",
				seed, result.Strategy, result.BestResult, result.Spent,
				len(result.Trials), result.InitialCount, time.Since(start).Round(time.Microsecond))
		}
	}

	return tw.Flush()
}
