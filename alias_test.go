package refine_test

import (
	"go/constant"
	"go/types"
	"testing"

	"github.com/benbjohnson/refine"
	"golang.org/x/tools/go/ssa"
)

func TestBaseOracle_Alias(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/fixpoint")
	fn := MustFindFunction(t, prog, "main")
	idx, arr := fn.Pkg.Var("idx"), fn.Pkg.Var("arr")
	constAddrs, varAddrs := indexAddrs(fn)
	if len(constAddrs) != 2 {
		t.Fatalf("expected two constant element addresses, got %d", len(constAddrs))
	} else if len(varAddrs) != 1 {
		t.Fatalf("expected one variable element address, got %d", len(varAddrs))
	}

	o := refine.NewBaseOracle()
	for _, tt := range []struct {
		name string
		a, b ssa.Value
		exp  refine.AliasResult
	}{
		{"Identical", idx, idx, refine.MustAlias},
		{"DifferentGlobals", idx, arr, refine.NoAlias},
		{"SameConstantIndex", constAddrs[0], constAddrs[1], refine.MustAlias},
		{"VariableIndex", varAddrs[0], constAddrs[0], refine.MayAlias},
		{"ElementAndGlobal", idx, varAddrs[0], refine.NoAlias},
		{"ElementAndArray", arr, constAddrs[0], refine.MayAlias},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.Alias(tt.a, tt.b); got != tt.exp {
				t.Fatalf("Alias()=%s, expected %s", got, tt.exp)
			} else if got := o.Alias(tt.b, tt.a); got != tt.exp {
				t.Fatalf("Alias() not symmetric: %s", got)
			}
		})
	}
}

func TestResolveAddr(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/fixpoint")
	fn := MustFindFunction(t, prog, "main")
	constAddrs, varAddrs := indexAddrs(fn)

	addr, ok := refine.ResolveAddr(constAddrs[0])
	if !ok {
		t.Fatal("expected resolved address")
	} else if got, exp := addr.Root, ssa.Value(fn.Pkg.Var("arr")); got != exp {
		t.Fatalf("unexpected root: %s", got)
	} else if got, exp := addr.String(), "arr[2:int]"; got != exp {
		t.Fatalf("String()=%q, expected %q", got, exp)
	}

	if _, ok := refine.ResolveAddr(varAddrs[0]); !ok {
		t.Fatal("expected resolved address")
	}
	if _, ok := refine.ResolveAddr(ssa.NewConst(constant.MakeInt64(1), types.Typ[types.Int])); ok {
		t.Fatal("expected unresolved address")
	}
}

func TestRefinedOracle_Alias(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/fixpoint")
	fn := MustFindFunction(t, prog, "main")
	constAddrs, varAddrs := indexAddrs(fn)
	a, b := varAddrs[0], constAddrs[0]

	t.Run("NoAlias", func(t *testing.T) {
		q := &querier{satisfiable: false}
		o := refine.NewRefinedOracle(refine.NewBaseOracle(), q)
		o.SetFixed(refine.NewFixedValueSet(a, b))

		if got := o.Alias(a, b); got != refine.NoAlias {
			t.Fatalf("unexpected result: %s", got)
		} else if got := o.Alias(b, a); got != refine.NoAlias {
			t.Fatalf("unexpected cached result: %s", got)
		} else if q.n != 1 {
			t.Fatalf("expected one solver query, got %d", q.n)
		} else if got, exp := o.CacheLen(), 1; got != exp {
			t.Fatalf("CacheLen()=%d, expected %d", got, exp)
		} else if got, exp := o.Stats().N, 1; got != exp {
			t.Fatalf("Stats().N=%d, expected %d", got, exp)
		}

		o.Recalculate()
		if got := o.CacheLen(); got != 0 {
			t.Fatalf("expected empty cache, got %d", got)
		}
		o.Alias(a, b)
		if q.n != 2 {
			t.Fatalf("expected requery after recalculation, got %d", q.n)
		}
	})

	t.Run("MustAlias", func(t *testing.T) {
		o := refine.NewRefinedOracle(refine.NewBaseOracle(), &querier{satisfiable: true, provable: true})
		o.SetFixed(refine.NewFixedValueSet(a, b))
		if got := o.Alias(a, b); got != refine.MustAlias {
			t.Fatalf("unexpected result: %s", got)
		}
	})

	t.Run("MayAlias", func(t *testing.T) {
		o := refine.NewRefinedOracle(refine.NewBaseOracle(), &querier{satisfiable: true})
		o.SetFixed(refine.NewFixedValueSet(a, b))
		if got := o.Alias(a, b); got != refine.MayAlias {
			t.Fatalf("unexpected result: %s", got)
		}
	})

	// Pointers that are not fixed are never sent to the solver.
	t.Run("NotFixed", func(t *testing.T) {
		q := &querier{}
		o := refine.NewRefinedOracle(refine.NewBaseOracle(), q)
		o.SetFixed(refine.NewFixedValueSet(a))
		if got := o.Alias(a, b); got != refine.MayAlias {
			t.Fatalf("unexpected result: %s", got)
		} else if q.n != 0 {
			t.Fatalf("unexpected solver queries: %d", q.n)
		}
	})

	// Definite base answers are returned as-is.
	t.Run("Definite", func(t *testing.T) {
		q := &querier{}
		o := refine.NewRefinedOracle(refine.NewBaseOracle(), q)
		o.SetFixed(refine.NewFixedValueSet(constAddrs...))
		if got := o.Alias(constAddrs[0], constAddrs[1]); got != refine.MustAlias {
			t.Fatalf("unexpected result: %s", got)
		} else if q.n != 0 {
			t.Fatalf("unexpected solver queries: %d", q.n)
		}
	})

	t.Run("SlowQueries", func(t *testing.T) {
		o := refine.NewRefinedOracle(refine.NewBaseOracle(), &querier{satisfiable: true})
		o.SlowQueries = 1
		o.SetFixed(refine.NewFixedValueSet(append(constAddrs, varAddrs...)...))
		o.Alias(varAddrs[0], constAddrs[0])
		o.Alias(varAddrs[0], constAddrs[1])

		if stats := o.Stats(); stats.N != 2 {
			t.Fatalf("unexpected query count: %d", stats.N)
		} else if len(stats.Slowest) != 1 {
			t.Fatalf("unexpected slow query count: %d", len(stats.Slowest))
		}
	})
}

func TestAliasResult_String(t *testing.T) {
	for r, exp := range map[refine.AliasResult]string{
		refine.NoAlias:   "NoAlias",
		refine.MayAlias:  "MayAlias",
		refine.MustAlias: "MustAlias",
	} {
		if got := r.String(); got != exp {
			t.Fatalf("String()=%q, expected %q", got, exp)
		}
	}
}

// querier is a stub solver returning fixed answers.
type querier struct {
	satisfiable bool
	provable    bool
	n           int
}

func (q *querier) Satisfiable(c refine.Clause) (bool, error) {
	q.n++
	return q.satisfiable, nil
}

func (q *querier) Provable(c refine.Clause) (bool, error) {
	return q.provable, nil
}

// indexAddrs returns the element addresses in fn split by whether the index
// is a literal.
func indexAddrs(fn *ssa.Function) (constAddrs, varAddrs []ssa.Value) {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			addr, ok := instr.(*ssa.IndexAddr)
			if !ok {
				continue
			}
			if c, ok := addr.Index.(*ssa.Const); ok && c.Value != nil && c.Value.Kind() == constant.Int {
				constAddrs = append(constAddrs, addr)
			} else {
				varAddrs = append(varAddrs, addr)
			}
		}
	}
	return constAddrs, varAddrs
}
