package main

import (
	"math/rand"

	"github.com/spf13/cobra"
	"github.com/thalesfsp/hpo"
	"github.com/thalesfsp/hpo/internal/benchmark"
	"gopkg.in/yaml.v3"
)

// SpaceOptions are the options for printing a configuration space.
type SpaceOptions struct {
	*GlobalOptions

	Benchmark string
	SpaceFile string
	Sample    int
	Seed      int64
}

// NewSpaceCommand creates a new command for inspecting a configuration space.
func NewSpaceCommand(o *SpaceOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "space",
		Short: "Print a configuration space",
		Long:  "Print a configuration space as YAML, optionally followed by random samples from it.",

		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return o.space()
		},
	}

	cmd.Flags().StringVarP(&o.Benchmark, "benchmark", "b", benchmark.NameMLP, "benchmark whose space to print")
	cmd.Flags().StringVar(&o.SpaceFile, "space", "", "`file` with a configuration space to print instead")
	cmd.Flags().IntVarP(&o.Sample, "sample", "n", 0, "number of random configurations to print")
	cmd.Flags().Int64Var(&o.Seed, "seed", 0, "random seed for sampling")

	_ = cmd.MarkFlagFilename("space", "yml", "yaml")

	return cmd
}

func (o *SpaceOptions) space() error {
	var (
		space *hpo.Space
		err   error
	)

	if o.SpaceFile != "" {
		space, err = hpo.LoadSpace(o.SpaceFile)
	} else {
		var bench *benchmark.Benchmark

		bench, err = benchmark.Lookup(o.Benchmark, o.Seed)
		if bench != nil {
			space = bench.Space
		}
	}

	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(o.Out)
	enc.SetIndent(2)

	if err := enc.Encode(space); err != nil {
		return err
	}

	if o.Sample > 0 {
		samples, err := space.Sample(rand.New(rand.NewSource(o.Seed)), o.Sample)
		if err != nil {
			return err
		}

		if err := enc.Encode(map[string][]hpo.Configuration{"samples": samples}); err != nil {
			return err
		}
	}

	return enc.Close()
}
