package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/thalesfsp/hpo"
	"gopkg.in/yaml.v3"
)

// RunOptions are the options for a single search run.
type RunOptions struct {
	*GlobalOptions
	BudgetOptions

	Strategy    string
	Seed        int64
	MetricsAddr string
	Output      string
}

// Report is the file form of a run written by --output.
type Report struct {
	ID           string            `yaml:"id"`
	Strategy     string            `yaml:"strategy"`
	Benchmark    string            `yaml:"benchmark"`
	Seed         int64             `yaml:"seed"`
	TotalBudget  float64           `yaml:"totalBudget"`
	Spent        float64           `yaml:"spent"`
	InitialCount int               `yaml:"initialCount"`
	BestResult   float64           `yaml:"bestResult"`
	BestConfig   hpo.Configuration `yaml:"bestConfig"`
	Trials       []ReportTrial     `yaml:"trials"`
}

// ReportTrial is one evaluation of a Report.
type ReportTrial struct {
	Config    hpo.Configuration `yaml:"config"`
	Budget    float64           `yaml:"budget"`
	Result    float64           `yaml:"result"`
	Failed    bool              `yaml:"failed,omitempty"`
	StartTime float64           `yaml:"startTime"`
	EndTime   float64           `yaml:"endTime"`
}

// NewRunCommand creates a new command for running one strategy.
func NewRunCommand(o *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one search strategy",
		Long:  "Run one search strategy against a benchmark and report the best configuration found.",

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context())
		},
	}

	o.addFlags(cmd)
	cmd.Flags().StringVarP(&o.Strategy, "strategy", "s", hpo.StrategyHalving, fmt.Sprintf("search strategy, one of %v", hpo.StrategyNames()))
	cmd.Flags().Int64Var(&o.Seed, "seed", 0, "random seed")
	cmd.Flags().StringVar(&o.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this `address` while running, e.g. :9090")
	cmd.Flags().StringVarP(&o.Output, "output", "o", "", "write every trial as YAML to this `file`")

	return cmd
}

func (o *RunOptions) run(ctx context.Context) error {
	log := o.Logger()

	bench, err := o.setup(o.Seed)
	if err != nil {
		return err
	}

	strategy, err := hpo.NewStrategy(o.Strategy, bench.Space, o.strategyConfig(bench, o.Seed, log))
	if err != nil {
		return err
	}

	runConfig := hpo.RunConfig{
		TotalBudget: o.TotalBudget,
		MinBudget:   bench.MinBudget,
		Logger:      log,
	}

	if o.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		runConfig.Metrics = hpo.NewMetrics(reg)

		stop := serveMetrics(o.MetricsAddr, reg, o.ErrOut)
		defer stop()
	}

	result, err := hpo.Run(ctx, strategy, bench.Evaluator, runConfig)
	if err != nil {
		return err
	}

	if o.Output != "" {
		if err := o.writeReport(bench.Name, result); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(o.Out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTRATEGY\tBEST RESULT\tSPENT\tEVALUATIONS\tINITIAL")
	fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.2f / %.0f\t%d\t%d\n",
		result.ID, result.Strategy, result.BestResult, result.Spent, o.TotalBudget, len(result.Trials), result.InitialCount)

	if err := tw.Flush(); err != nil {
		return err
	}

	if result.BestConfig == nil {
		return nil
	}

	fmt.Fprintln(o.Out)

	enc := yaml.NewEncoder(o.Out)
	enc.SetIndent(2)

	if err := enc.Encode(map[string]hpo.Configuration{"best": result.BestConfig}); err != nil {
		return err
	}

	return enc.Close()
}

func (o *RunOptions) writeReport(benchmarkName string, result *hpo.RunResult) error {
	report := Report{
		ID:           result.ID,
		Strategy:     result.Strategy,
		Benchmark:    benchmarkName,
		Seed:         o.Seed,
		TotalBudget:  o.TotalBudget,
		Spent:        result.Spent,
		InitialCount: result.InitialCount,
		BestResult:   result.BestResult,
		BestConfig:   result.BestConfig,
	}

	for _, t := range result.Trials {
		report.Trials = append(report.Trials, ReportTrial{
			Config:    t.Config,
			Budget:    t.Budget,
			Result:    t.Result,
			Failed:    t.Failed,
			StartTime: t.SpentBefore,
			EndTime:   t.SpentAfter,
		})
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return err
	}

	return os.WriteFile(o.Output, data, 0o644)
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, errOut io.Writer) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(errOut, "metrics server: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}
}
