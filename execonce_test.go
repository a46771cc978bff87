package refine_test

import (
	"testing"

	"github.com/benbjohnson/refine"
	"golang.org/x/tools/go/ssa"
)

func TestExecOnce(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/exec_once")
	main := MustFindFunction(t, prog, "main")
	o := refine.NewExecOnce(prog)

	t.Run("FunctionOnce", func(t *testing.T) {
		for name, exp := range map[string]bool{
			"main":   true,
			"once":   true,
			"inc":    true,
			"twice":  false,
			"looped": false,
			"never":  false,
		} {
			if got := o.FunctionOnce(MustFindFunction(t, prog, name)); got != exp {
				t.Fatalf("FunctionOnce(%s)=%v, expected %v", name, got, exp)
			}
		}

		if init := main.Pkg.Func("init"); init == nil {
			t.Fatal("expected package initializer")
		} else if !o.FunctionOnce(init) {
			t.Fatal("expected initializer to execute once")
		}
	})

	t.Run("BlockOnce", func(t *testing.T) {
		if !o.BlockOnce(main.Blocks[0]) {
			t.Fatal("expected entry block to execute once")
		}

		loop := callBlock(main, MustFindFunction(t, prog, "looped"))
		if loop == nil {
			t.Fatal("call to looped() not found")
		} else if o.BlockOnce(loop) {
			t.Fatal("expected loop body to execute more than once")
		}

		if o.BlockOnce(MustFindFunction(t, prog, "twice").Blocks[0]) {
			t.Fatal("expected block of twice() to execute more than once")
		} else if o.BlockOnce(nil) {
			t.Fatal("expected nil block to not execute once")
		}
	})
}

func TestClassify(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/exec_once")
	main := MustFindFunction(t, prog, "main")
	fixed := refine.Classify(prog, refine.NewExecOnce(prog))

	for _, name := range []string{"a", "b", "c", "d"} {
		if v := MustVarValue(t, main, name); !fixed.Contains(v) {
			t.Fatalf("expected %s to be fixed", name)
		}
	}

	// inc() has a single call site in a block that executes once.
	if inc := MustFindFunction(t, prog, "inc"); !fixed.Contains(inc.Params[0]) {
		t.Fatal("expected parameter of inc() to be fixed")
	}

	// Values in twice() are computed on each of its two calls.
	twice := MustFindFunction(t, prog, "twice")
	for _, b := range twice.Blocks {
		for _, instr := range b.Instrs {
			if v, ok := instr.(ssa.Value); ok && fixed.Contains(v) {
				t.Fatalf("unexpected fixed value in twice(): %s", v.Name())
			}
		}
	}
}

func TestFixedValueSet(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/store_load")
	main := MustFindFunction(t, prog, "main")
	x, y := MustVarValue(t, main, "x"), MustVarValue(t, main, "y")

	t.Run("Nil", func(t *testing.T) {
		var s *refine.FixedValueSet
		if s.Contains(x) {
			t.Fatal("expected nil set to be empty")
		} else if got := s.Len(); got != 0 {
			t.Fatalf("Len()=%d", got)
		}
	})

	t.Run("Values", func(t *testing.T) {
		s := refine.NewFixedValueSet(y, x)
		s.Add(x)
		if got, exp := s.Len(), 2; got != exp {
			t.Fatalf("Len()=%d, expected %d", got, exp)
		} else if !s.Contains(x) || !s.Contains(y) {
			t.Fatal("expected values to be contained")
		}

		values := s.Values()
		if len(values) != 2 {
			t.Fatalf("unexpected values: %v", values)
		} else if refine.ValueName(values[0]) > refine.ValueName(values[1]) {
			t.Fatal("expected values sorted by name")
		}
	})
}

// callBlock returns the block of fn containing a static call to callee.
func callBlock(fn *ssa.Function, callee *ssa.Function) *ssa.BasicBlock {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if call, ok := instr.(*ssa.Call); ok && call.Common().StaticCallee() == callee {
				return b
			}
		}
	}
	return nil
}
