package main

import (
	"context"
	"fmt"

	"github.com/benbjohnson/refine"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var queryCommand = &cobra.Command{
	Use:   "query <package> <function> <a> <op> <b>",
	Short: "ask whether a comparison of two variables is satisfiable or provable",
	Long: `
Runs the analysis to a fixpoint, then compares the variables a & b of the
given function. Operators are Go comparisons (==, !=, <, <=, >, >=) or
predicate names (eq, ult, sge, ...). The operand b may be an integer literal.
`[1:],
	Args: cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := runDriver(context.Background(), args[0])
		if d != nil {
			defer d.Close()
		}
		if err != nil {
			return err
		}

		clause, err := parseQuery(d, args[1], args[2], args[3], args[4])
		if err != nil {
			return err
		}

		s := d.Solver()
		satisfiable, err := s.Satisfiable(clause)
		if err != nil {
			return err
		}
		provable, err := s.Provable(clause)
		if err != nil {
			return err
		}

		fmt.Println(clause)
		fmt.Printf("satisfiable: %v\n", satisfiable)
		fmt.Printf("provable:    %v\n", provable)

		if !provable {
			for name, value := range s.Counterexample() {
				fmt.Printf("\t%s = %d\n", name, value)
			}
		}
		return nil
	},
}

func parseQuery(d *refine.Driver, fnName, a, op, b string) (refine.Clause, error) {
	fn := d.Program().FindFunction(fnName)
	if fn == nil {
		return nil, fmt.Errorf("function not found: %s", fnName)
	}

	av, ok := refine.LookupValue(fn, a)
	if !ok {
		return nil, fmt.Errorf("variable not found: %s", a)
	}
	lhs, err := refine.NewValueExpr(av)
	if err != nil {
		return nil, err
	}

	pred, err := refine.ParsePredicate(op, refine.IsSigned(av.Type()))
	if err != nil {
		return nil, err
	}

	var rhs refine.Expr
	var n int64
	if _, err := fmt.Sscan(b, &n); err == nil {
		rhs = refine.NewSignedConstantExpr(n, refine.ExprWidth(lhs))
	} else if bv, ok := refine.LookupValue(fn, b); ok {
		if rhs, err = refine.NewValueExpr(bv); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("variable not found: %s", b)
	}

	clause, err := refine.NewBoolExpr(pred, lhs, rhs)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	return clause, nil
}
