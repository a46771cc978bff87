package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/benbjohnson/refine"
	"github.com/spf13/cobra"
)

var analyzeCommand = &cobra.Command{
	Use:   "analyze <package>",
	Short: "iterate capture & solving to a fixpoint and report fixed integers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		d, err := runDriver(ctx, args[0])
		if d != nil {
			defer d.Close()
		}
		if err != nil {
			return err
		}
		return printAnalysis(d)
	},
}

// runDriver loads pattern & runs the driver to a fixpoint. The returned
// driver must be closed by the caller, even on error.
func runDriver(ctx context.Context, pattern string) (*refine.Driver, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	factory, err := newBackendFactory(config.Solver)
	if err != nil {
		return nil, err
	}

	prog, err := refine.LoadProgram("", pattern)
	if err != nil {
		return nil, err
	}

	d := refine.NewDriver(prog, config, factory)
	if err := d.Open(); err != nil {
		return nil, err
	}
	return d, d.Run(ctx)
}

func printAnalysis(d *refine.Driver) error {
	s := d.Solver()
	fmt.Printf("rounds:      %d\n", d.Rounds())
	fmt.Printf("fixed:       %d\n", d.Fixed().Len())
	fmt.Printf("constraints: %d\n", s.NumConstraints())
	fmt.Printf("fingerprint: %016x\n", s.Fingerprint())

	fmt.Println("")
	fmt.Println("fixed integers:")
	for _, v := range s.FixedIntegers() {
		if lit, ok := s.GetFixedValue(v); ok {
			fmt.Printf("\t%s = %d\n", refine.ValueName(v), lit.Int64())
		} else {
			fmt.Printf("\t%s\n", refine.ValueName(v))
		}
	}

	if o := d.RefinedOracle(); o != nil {
		stats := o.Stats()
		fmt.Println("")
		fmt.Printf("alias queries: %d (%s)\n", stats.N, stats.Time)
		for _, q := range stats.Slowest {
			fmt.Printf("\t%s %s: %s\n", q.A, q.B, q.Duration)
		}
	}
	return nil
}
