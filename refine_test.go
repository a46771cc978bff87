package refine_test

import (
	"context"
	"testing"

	"github.com/benbjohnson/refine"
	"github.com/benbjohnson/refine/bitblast"
	"golang.org/x/tools/go/ssa"
)

// MustBuildProgram builds the program at the given path. Fatal on error.
func MustBuildProgram(tb testing.TB, path string) *refine.Program {
	tb.Helper()
	prog, err := refine.LoadProgram("", path)
	if err != nil {
		tb.Fatal(err)
	}
	return prog
}

// MustFindFunction returns the function with the given name. Fatal if not found.
func MustFindFunction(tb testing.TB, prog *refine.Program, name string) *ssa.Function {
	tb.Helper()
	fn := prog.FindFunction(name)
	if fn == nil {
		tb.Fatalf("function %q not found", name)
	}
	return fn
}

// MustVarValue returns the ssa.Value for a given variable name. Fatal if not found.
func MustVarValue(tb testing.TB, fn *ssa.Function, name string) ssa.Value {
	tb.Helper()
	v, ok := refine.LookupValue(fn, name)
	if !ok {
		tb.Fatalf("var %q not found in %s", name, fn)
	}
	return v
}

// MustOpenDriver returns an open driver over prog using the bit-blasting
// backend. The driver is closed when the test ends.
func MustOpenDriver(tb testing.TB, prog *refine.Program, config refine.Config) *refine.Driver {
	tb.Helper()
	d := refine.NewDriver(prog, config, bitblast.Factory(0))
	if err := d.Open(); err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := d.Close(); err != nil {
			tb.Fatal(err)
		}
	})
	return d
}

// MustAcquireSession returns a session over a bit-blasting backend. The
// session is released when the test ends.
func MustAcquireSession(tb testing.TB) *refine.Session {
	tb.Helper()
	s, err := refine.AcquireSession(bitblast.Factory(0))
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { s.Release() })
	return s
}

// MustValueExpr returns an expression referencing v. Panic on error.
func MustValueExpr(v ssa.Value) refine.Expr {
	e, err := refine.NewValueExpr(v)
	if err != nil {
		panic(err)
	}
	return e
}

// MustBoolExpr returns a new comparison. Panic on error.
func MustBoolExpr(pred refine.BinaryOp, lhs, rhs refine.Expr) *refine.BoolExpr {
	c, err := refine.NewBoolExpr(pred, lhs, rhs)
	if err != nil {
		panic(err)
	}
	return c
}

// MustBinaryExpr returns a new binary expression. Panic on error.
func MustBinaryExpr(op refine.BinaryOp, lhs, rhs refine.Expr) *refine.BinaryExpr {
	e, err := refine.NewBinaryExpr(op, lhs, rhs)
	if err != nil {
		panic(err)
	}
	return e
}

// MustCompare returns a comparison between a variable and a literal of the
// same width. Panic on error.
func MustCompare(v ssa.Value, op string, n int64) *refine.BoolExpr {
	lhs := MustValueExpr(v)
	pred, err := refine.ParsePredicate(op, refine.IsSigned(v.Type()))
	if err != nil {
		panic(err)
	}
	return MustBoolExpr(pred, lhs, refine.NewSignedConstantExpr(n, refine.ExprWidth(lhs)))
}

// MustProvable returns the result of a provability query. Fatal on error.
func MustProvable(tb testing.TB, s *refine.Solver, c refine.Clause) bool {
	tb.Helper()
	ok, err := s.Provable(c)
	if err != nil {
		tb.Fatal(err)
	}
	return ok
}

// MustSatisfiable returns the result of a satisfiability query. Fatal on error.
func MustSatisfiable(tb testing.TB, s *refine.Solver, c refine.Clause) bool {
	tb.Helper()
	ok, err := s.Satisfiable(c)
	if err != nil {
		tb.Fatal(err)
	}
	return ok
}

// MustRun opens a driver over the program at path & runs it to a fixpoint.
func MustRun(tb testing.TB, path string, config refine.Config) (*refine.Driver, *ssa.Function) {
	tb.Helper()
	prog := MustBuildProgram(tb, path)
	d := MustOpenDriver(tb, prog, config)
	if err := d.Run(context.Background()); err != nil {
		tb.Fatal(err)
	}
	return d, MustFindFunction(tb, prog, "main")
}
