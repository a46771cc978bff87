package main

import (
	"context"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

var dumpCommand = &cobra.Command{
	Use:   "dump <package>",
	Short: "print the constraint set at the fixpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stderr, spew.Sdump(config))
		}

		d, err := runDriver(context.Background(), args[0])
		if d != nil {
			defer d.Close()
		}
		if err != nil {
			return err
		}

		for _, c := range d.Solver().Constraints() {
			fmt.Println(c)
		}

		if verbose {
			if o := d.RefinedOracle(); o != nil {
				fmt.Fprint(os.Stderr, spew.Sdump(o.Stats()))
			}
		}
		return nil
	},
}
