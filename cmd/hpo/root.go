package main

import (
	"io"
	"math/rand"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/thalesfsp/hpo"
	"github.com/thalesfsp/hpo/internal/benchmark"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// IOStreams are the process streams a command writes to.
type IOStreams struct {
	Out    io.Writer
	ErrOut io.Writer
}

// GlobalOptions are shared by every command.
type GlobalOptions struct {
	IOStreams

	// Verbosity raises the log level; each step enables one more V level.
	Verbosity int
}

// BudgetOptions select the benchmark and size the search.
type BudgetOptions struct {
	Benchmark   string
	SpaceFile   string
	TotalBudget float64
	MinBudget   float64
	MaxBudget   float64
	Eta         float64
	GridSteps   int
}

// NewRootCommand creates the hpo command tree.
func NewRootCommand() *cobra.Command {
	globals := &GlobalOptions{}

	root := &cobra.Command{
		Use:   "hpo",
		Short: "Budget-aware hyperparameter search",
		Long: "Run random search, grid search, successive halving and Bayesian " +
			"optimisation against synthetic fidelity-aware benchmarks.",

		SilenceUsage: true,

		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			globals.Out = cmd.OutOrStdout()
			globals.ErrOut = cmd.ErrOrStderr()
		},
	}

	root.PersistentFlags().CountVarP(&globals.Verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	root.AddCommand(
		NewRunCommand(&RunOptions{GlobalOptions: globals}),
		NewCompareCommand(&CompareOptions{GlobalOptions: globals}),
		NewSpaceCommand(&SpaceOptions{GlobalOptions: globals}),
	)

	return root
}

// Logger builds a console logger on ErrOut. Info is always enabled; V(n)
// messages need a verbosity of at least n.
func (o *GlobalOptions) Logger() logr.Logger {
	// zapr maps V(n) onto zap level -n.
	level := zapcore.Level(-o.Verbosity)

	return zapr.NewLogger(zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(
		zapcore.EncoderConfig{
			TimeKey:     "ts",
			MessageKey:  "msg",
			LevelKey:    "level",
			NameKey:     "logger",
			EncodeTime:  zapcore.ISO8601TimeEncoder,
			EncodeLevel: zapcore.LowercaseLevelEncoder,
			EncodeName:  zapcore.FullNameEncoder,
		}),
		zapcore.AddSync(o.ErrOut),
		level)))
}

func (o *BudgetOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Benchmark, "benchmark", "b", benchmark.NameMLP, "benchmark to optimise, one of mlp or branin")
	cmd.Flags().StringVar(&o.SpaceFile, "space", "", "`file` with a configuration space replacing the benchmark's own")
	cmd.Flags().Float64Var(&o.TotalBudget, "total-budget", 1000, "total budget in units of the minimum budget")
	cmd.Flags().Float64Var(&o.MinBudget, "min-budget", 0, "lowest fidelity; defaults to the benchmark's")
	cmd.Flags().Float64Var(&o.MaxBudget, "max-budget", 0, "highest fidelity; defaults to the benchmark's")
	cmd.Flags().Float64Var(&o.Eta, "eta", 2, "successive halving factor")
	cmd.Flags().IntVar(&o.GridSteps, "grid-steps", 2, "values per numeric parameter in grid search")

	_ = cmd.MarkFlagFilename("space", "yml", "yaml")
}

// setup resolves the benchmark and the space for seed.
func (o *BudgetOptions) setup(seed int64) (*benchmark.Benchmark, error) {
	bench, err := benchmark.Lookup(o.Benchmark, seed)
	if err != nil {
		return nil, err
	}

	if o.SpaceFile != "" {
		space, err := hpo.LoadSpace(o.SpaceFile)
		if err != nil {
			return nil, err
		}

		bench.Space = space
	}

	if o.MinBudget > 0 {
		bench.MinBudget = o.MinBudget
	}

	if o.MaxBudget > 0 {
		bench.MaxBudget = o.MaxBudget
	}

	return bench, nil
}

// strategyConfig builds the strategy settings for one run.
func (o *BudgetOptions) strategyConfig(bench *benchmark.Benchmark, seed int64, log logr.Logger) hpo.Config {
	config := hpo.DefaultConfig()
	config.TotalBudget = o.TotalBudget
	config.MinBudget = bench.MinBudget
	config.MaxBudget = bench.MaxBudget
	config.Eta = o.Eta
	config.GridSteps = o.GridSteps
	config.RandomState = rand.New(rand.NewSource(seed))
	config.Logger = log

	return config
}
