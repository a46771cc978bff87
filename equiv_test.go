package refine_test

import (
	"testing"

	"github.com/benbjohnson/refine"
)

func TestEquivalenceMap(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/store_load")
	fn := MustFindFunction(t, prog, "main")
	x, y := MustValueExpr(MustVarValue(t, fn, "x")), MustValueExpr(MustVarValue(t, fn, "y"))
	five := refine.NewConstantExpr(5, refine.ExprWidth(x))

	t.Run("ConstantRoot", func(t *testing.T) {
		m := refine.NewEquivalenceMap()
		m.Union(x, y)
		m.Union(y, five)

		if got := m.Root(x); refine.CompareExpr(got, five) != 0 {
			t.Fatalf("unexpected root: %s", got)
		} else if got := m.Root(y); refine.CompareExpr(got, five) != 0 {
			t.Fatalf("unexpected root: %s", got)
		} else if got, exp := m.Len(), 3; got != exp {
			t.Fatalf("Len()=%d, expected %d", got, exp)
		}
	})

	t.Run("ConflictingConstants", func(t *testing.T) {
		m := refine.NewEquivalenceMap()
		m.Union(x, five)
		m.Union(x, refine.NewConstantExpr(6, five.Width))
		if got := m.Root(x); refine.CompareExpr(got, five) != 0 {
			t.Fatalf("unexpected root: %s", got)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		m := refine.NewEquivalenceMap()
		if got := m.Root(x); refine.CompareExpr(got, x) != 0 {
			t.Fatalf("unexpected root: %s", got)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		m := refine.BuildEquivalenceMap(refine.ConstraintSet{
			MustBoolExpr(refine.EQ, x, five),
			MustBoolExpr(refine.ULT, y, five),
		})

		c := MustBoolExpr(refine.EQ, y, MustBinaryExpr(refine.ADD, x, refine.NewConstantExpr(2, five.Width)))
		other, truth := refine.SimplifyClause(m.Replace(c))
		if truth != refine.TruthUnknown {
			t.Fatalf("unexpected truth: %d", truth)
		} else if got, exp := other.String(), "(eq "+y.String()+" (const 7 64))"; got != exp {
			t.Fatalf("Replace()=%s, expected %s", got, exp)
		}
	})
}

func TestIsSimpleEq(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/store_load")
	fn := MustFindFunction(t, prog, "main")
	x, y := MustValueExpr(MustVarValue(t, fn, "x")), MustValueExpr(MustVarValue(t, fn, "y"))

	if _, _, ok := refine.IsSimpleEq(MustBoolExpr(refine.EQ, x, y)); !ok {
		t.Fatal("expected simple equality")
	} else if _, _, ok := refine.IsSimpleEq(MustBoolExpr(refine.ULE, x, y)); ok {
		t.Fatal("expected non-equality")
	} else if _, _, ok := refine.IsSimpleEq(MustBoolExpr(refine.EQ, x, MustBinaryExpr(refine.ADD, y, y))); ok {
		t.Fatal("expected non-leaf operand")
	} else if _, _, ok := refine.IsSimpleEq(refine.NewNotClause(MustBoolExpr(refine.EQ, x, y))); ok {
		t.Fatal("expected non-comparison")
	}
}
